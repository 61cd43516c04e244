package track

import (
	"testing"

	"github.com/gogpu/rendergraph/handle"
)

func testHandle(idx uint32) handle.Handle {
	return handle.NewHandle(handle.KindBuffer, handle.RegistryPersistent, 0, idx, 0)
}

func TestScope_DuplicateSetBufferCollapsesToOneBinding(t *testing.T) {
	s := NewScope()
	b := testHandle(1)

	s.SetBuffer(0, b, 0)
	s.SetBuffer(0, b, 0)

	usages, _, _ := s.Finish()
	if len(usages) != 1 {
		t.Fatalf("expected exactly one Usage, got %d", len(usages))
	}
	if usages[0].Resource != b {
		t.Fatalf("wrong resource recorded")
	}
}

func TestScope_RebindingSlotTracksNewResourceSeparately(t *testing.T) {
	s := NewScope()
	a, b := testHandle(1), testHandle(2)

	s.SetBuffer(0, a, 0)
	s.SetBuffer(0, b, 0) // different resource at same slot

	usages, _, _ := s.Finish()
	if len(usages) != 2 {
		t.Fatalf("expected two distinct Usage records, got %d", len(usages))
	}
}

func TestScope_ConsistentUsageFlag(t *testing.T) {
	s := NewScope()
	h := testHandle(1)

	s.UseResource(h, AccessRead, StageFragment, true)
	usages, _, _ := s.Finish()
	if !usages[0].ConsistentUsage {
		t.Fatalf("single use should be consistent")
	}

	s2 := NewScope()
	s2.UseResource(h, AccessRead, StageFragment, true)
	s2.UseResource(h, AccessWrite, StageCompute, true)
	usages2, _, _ := s2.Finish()
	if usages2[0].ConsistentUsage {
		t.Fatalf("differing access/stages across uses must clear ConsistentUsage")
	}
}

func TestScope_UseResourceReorderingBatchesByStagesAndAccess(t *testing.T) {
	s := NewScope()
	a, b := testHandle(1), testHandle(2)

	s.UseResource(a, AccessRead, StageFragment, true)
	s.UseResource(b, AccessRead, StageFragment, true)

	_, residency, _ := s.Finish()
	if len(residency) != 1 {
		t.Fatalf("expected one batched residency group, got %d", len(residency))
	}
	if len(residency[0].Resources) != 2 {
		t.Fatalf("expected both resources batched together, got %v", residency[0].Resources)
	}
}

func TestScope_UseResourceNoReorderingEmitsSingle(t *testing.T) {
	s := NewScope()
	a, b := testHandle(1), testHandle(2)

	s.UseResource(a, AccessRead, StageFragment, true)
	s.UseResource(b, AccessWrite, StageCompute, false)

	_, residency, _ := s.Finish()
	if len(residency) != 2 {
		t.Fatalf("expected one batched group + one single, got %d entries", len(residency))
	}

	found := false
	for _, r := range residency {
		if len(r.Resources) == 1 && r.Resources[0] == b {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a standalone residency entry for the non-reorderable resource")
	}
}

func TestScope_MemoryBarrierRecorded(t *testing.T) {
	s := NewScope()
	h := testHandle(1)
	s.UseResource(h, AccessWrite, StageCompute, true)
	s.MemoryBarrier([]handle.Handle{h}, StageCompute, StageFragment)

	_, _, barriers := s.Finish()
	if len(barriers) != 1 {
		t.Fatalf("expected one barrier, got %d", len(barriers))
	}
	if barriers[0].AfterStages != StageCompute || barriers[0].BeforeStages != StageFragment {
		t.Fatalf("barrier stage mismatch: %+v", barriers[0])
	}
}

func TestScope_SetBytesTracksNoResource(t *testing.T) {
	s := NewScope()
	s.SetBytes(16)
	usages, _, _ := s.Finish()
	if len(usages) != 0 {
		t.Fatalf("set_bytes must not produce a Usage record, got %d", len(usages))
	}
}
