package graph

import (
	"testing"

	"github.com/gogpu/rendergraph/handle"
	"github.com/gogpu/rendergraph/track"
)

func transientHandle(idx uint32) handle.Handle {
	return handle.NewHandle(handle.KindBuffer, handle.RegistryTransient, 0, idx, 0)
}

func TestBuildMatrix_RAWAcrossEncodersEmitsEdge(t *testing.T) {
	x := bufHandle(1)
	a := passWithUsages(0, PassCompute, 0, track.Usage{Resource: x, Access: track.AccessWrite, Stages: track.StageCompute, LastCommandIndex: 3})
	b := passWithUsages(1, PassDraw, 1, track.Usage{Resource: x, Access: track.AccessRead, Stages: track.StageFragment, FirstCommandIndex: 0})

	AssignEncoders([]*Pass{a, b}, SchedulerOptions{})
	m := BuildMatrix([]*Pass{a, b})

	d, ok := m.Dep(b.EncoderIndex, a.EncoderIndex)
	if !ok {
		t.Fatalf("expected a RAW dependency between the two encoders")
	}
	if !d.Signal.Stages.Contains(track.StageCompute) {
		t.Fatalf("signal stages should include Compute: %v", d.Signal.Stages)
	}
	if !d.Wait.Stages.Contains(track.StageFragment) {
		t.Fatalf("wait stages should include Fragment: %v", d.Wait.Stages)
	}
}

func TestBuildMatrix_SameEncoderHazardNotInMatrix(t *testing.T) {
	x := bufHandle(1)
	a := passWithUsages(0, PassCompute, 0,
		track.Usage{Resource: x, Access: track.AccessWrite, FirstCommandIndex: 0, LastCommandIndex: 0},
	)
	b := passWithUsages(1, PassCompute, 0,
		track.Usage{Resource: x, Access: track.AccessRead, FirstCommandIndex: 0, LastCommandIndex: 0},
	)
	AssignEncoders([]*Pass{a, b}, SchedulerOptions{})
	if a.EncoderIndex != b.EncoderIndex {
		t.Fatalf("test fixture assumes both passes share an encoder")
	}

	m := BuildMatrix([]*Pass{a, b})
	if len(m.Edges()) != 0 {
		t.Fatalf("same-encoder hazards must not appear in the dependency matrix, got %v", m.Edges())
	}
}

func TestBuildAliasPairs_NonOverlappingIntervalsAlias(t *testing.T) {
	t1, t2 := transientHandle(1), transientHandle(2)
	passes := []*Pass{
		passWithUsages(0, PassCompute, 0, track.Usage{Resource: t1}),
		passWithUsages(1, PassCompute, 0, track.Usage{Resource: t2}),
	}
	AssignEncoders(passes, SchedulerOptions{SoftCommandCap: 0})
	// Force distinct encoders to get distinct encoder indices for the interval test.
	passes[0].EncoderIndex = 0
	passes[1].EncoderIndex = 3

	sizes := map[handle.Handle]uint64{t1: 4 << 20, t2: 4 << 20}
	pairs := BuildAliasPairs(passes, sizes)
	if len(pairs) != 1 {
		t.Fatalf("expected one alias pair, got %d", len(pairs))
	}
	if pairs[0].Earlier != t1 || pairs[0].Later != t2 {
		t.Fatalf("unexpected pair: %+v", pairs[0])
	}
}

func TestBuildAliasPairs_AdjacentIntervalsDoNotAlias(t *testing.T) {
	t1, t2 := transientHandle(1), transientHandle(2)

	// t1's lifetime spans encoders [0,3]; t2's lifetime spans [3,5]. They
	// share endpoint encoder 3, which is still a live frame for both, so
	// they must not alias.
	t1Start := passWithUsages(0, PassCompute, 0, track.Usage{Resource: t1})
	t1Start.EncoderIndex = 0
	t1End := passWithUsages(1, PassCompute, 0, track.Usage{Resource: t1})
	t1End.EncoderIndex = 3
	t2Start := passWithUsages(2, PassCompute, 0, track.Usage{Resource: t2})
	t2Start.EncoderIndex = 3
	t2End := passWithUsages(3, PassCompute, 0, track.Usage{Resource: t2})
	t2End.EncoderIndex = 5

	passes := []*Pass{t1Start, t1End, t2Start, t2End}
	sizes := map[handle.Handle]uint64{t1: 1 << 20, t2: 1 << 20}
	pairs := BuildAliasPairs(passes, sizes)
	for _, p := range pairs {
		if p.Earlier == t1 && p.Later == t2 {
			t.Fatalf("adjacent intervals sharing an endpoint must not alias")
		}
	}
}
