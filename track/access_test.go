package track

import "testing"

func TestAccess_IsWrite(t *testing.T) {
	tests := []struct {
		name string
		a    Access
		want bool
	}{
		{"read is not write", AccessRead, false},
		{"write is write", AccessWrite, true},
		{"render target is write", AccessRenderTarget, true},
		{"input attachment is not write", AccessInputAttachment, false},
		{"blit src is not write", AccessBlitSrc, false},
		{"blit dst is write", AccessBlitDst, true},
		{"read+write is write", AccessRead | AccessWrite, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IsWrite(); got != tt.want {
				t.Errorf("Access(%v).IsWrite() = %v, want %v", tt.a, got, tt.want)
			}
		})
	}
}

func TestAccess_Contains(t *testing.T) {
	combined := AccessRead | AccessRenderTarget
	if !combined.Contains(AccessRead) {
		t.Error("combined should contain AccessRead")
	}
	if combined.Contains(AccessWrite) {
		t.Error("combined should not contain AccessWrite")
	}
}

func TestStage_Union(t *testing.T) {
	s := StageVertex.Union(StageFragment)
	if !s.Contains(StageVertex) || !s.Contains(StageFragment) {
		t.Fatalf("union missing a stage: %v", s)
	}
	if s.Contains(StageCompute) {
		t.Fatalf("union should not contain unrelated stage: %v", s)
	}
}
