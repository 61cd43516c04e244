package graph

import (
	"testing"

	"github.com/gogpu/rendergraph/handle"
	"github.com/gogpu/rendergraph/track"
)

func bufHandle(idx uint32) handle.Handle {
	return handle.NewHandle(handle.KindBuffer, handle.RegistryPersistent, 0, idx, 0)
}

func passWithUsages(id uint32, kind PassKind, queue uint32, usages ...track.Usage) *Pass {
	p := NewPass(id, kind, queue, "p", func(*track.Scope) {})
	p.Usages = usages
	p.CommandCount = uint32(len(usages))
	return p
}

func TestCull_PassWithNoDownstreamReaderIsCulled(t *testing.T) {
	y := bufHandle(1)
	passes := []*Pass{
		passWithUsages(0, PassCompute, 0, track.Usage{Resource: y, Access: track.AccessWrite}),
	}
	Cull(passes, SinkSet{})
	if !passes[0].Culled {
		t.Fatalf("pass writing an unread, non-persistent resource should be culled")
	}
}

func TestCull_PassReachingSinkSurvives(t *testing.T) {
	x := bufHandle(1)
	sinks := SinkSet{x: true}
	passes := []*Pass{
		passWithUsages(0, PassCompute, 0, track.Usage{Resource: x, Access: track.AccessWrite}),
	}
	Cull(passes, sinks)
	if passes[0].Culled {
		t.Fatalf("pass writing a sink resource must survive")
	}
}

func TestCull_TransitiveChainSurvives(t *testing.T) {
	r1, r2 := bufHandle(1), bufHandle(2)
	sinks := SinkSet{r2: true}
	passes := []*Pass{
		passWithUsages(0, PassCompute, 0, track.Usage{Resource: r1, Access: track.AccessWrite}),
		passWithUsages(1, PassCompute, 0,
			track.Usage{Resource: r1, Access: track.AccessRead},
			track.Usage{Resource: r2, Access: track.AccessWrite}),
	}
	Cull(passes, sinks)
	if passes[0].Culled || passes[1].Culled {
		t.Fatalf("both passes in the producer chain to a sink must survive: %+v", passes)
	}
}

func TestCull_ExternalPassNeverCulled(t *testing.T) {
	passes := []*Pass{
		NewPass(0, PassExternal, 0, "external", func(*track.Scope) {}),
	}
	Cull(passes, SinkSet{})
	if passes[0].Culled {
		t.Fatalf("External passes must never be culled")
	}
}

func TestAssignEncoders_SameKindQueueCoalesce(t *testing.T) {
	passes := []*Pass{
		passWithUsages(0, PassCompute, 0, track.Usage{}),
		passWithUsages(1, PassCompute, 0, track.Usage{}),
	}
	encoders := AssignEncoders(passes, SchedulerOptions{})
	if len(encoders) != 1 {
		t.Fatalf("expected one encoder, got %d", len(encoders))
	}
	if passes[0].EncoderIndex != passes[1].EncoderIndex {
		t.Fatalf("both passes should share an encoder")
	}
}

func TestAssignEncoders_QueueChangeSplits(t *testing.T) {
	passes := []*Pass{
		passWithUsages(0, PassCompute, 0, track.Usage{}),
		passWithUsages(1, PassCompute, 1, track.Usage{}),
	}
	encoders := AssignEncoders(passes, SchedulerOptions{})
	if len(encoders) != 2 {
		t.Fatalf("expected two encoders for differing queues, got %d", len(encoders))
	}
}

func TestAssignEncoders_RenderTargetChangeSplitsDrawPasses(t *testing.T) {
	a := passWithUsages(0, PassDraw, 0, track.Usage{})
	a.RenderTargetKey = "rt-a"
	b := passWithUsages(1, PassDraw, 0, track.Usage{})
	b.RenderTargetKey = "rt-b"

	encoders := AssignEncoders([]*Pass{a, b}, SchedulerOptions{})
	if len(encoders) != 2 {
		t.Fatalf("expected two encoders for differing render targets, got %d", len(encoders))
	}
}

func TestAssignEncoders_CulledPassesAreSkipped(t *testing.T) {
	p0 := passWithUsages(0, PassCompute, 0, track.Usage{})
	p0.Culled = true
	p1 := passWithUsages(1, PassCompute, 0, track.Usage{})

	encoders := AssignEncoders([]*Pass{p0, p1}, SchedulerOptions{})
	if len(encoders) != 1 || len(encoders[0].PassIndices) != 1 {
		t.Fatalf("culled pass must not appear in any encoder: %+v", encoders)
	}
}
