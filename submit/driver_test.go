package submit

import (
	"testing"
	"time"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/backend/noop"
	"github.com/gogpu/rendergraph/graph"
	"github.com/gogpu/rendergraph/handle"
	"github.com/gogpu/rendergraph/resource"
	"github.com/gogpu/rendergraph/track"
)

func TestDriver_SubmitEncoderRunsCompletionAndReleasesFence(t *testing.T) {
	cap := noop.New(false, false)
	d := NewDriver(cap)
	d.PurgeDelay = 0

	pool := d.FencePool(0)
	fence := pool.Acquire(track.StageCompute)

	enc := &graph.Encoder{Index: 0, Kind: graph.PassCompute, Queue: 0}
	sub, err := d.SubmitEncoder(enc, []uint32{0}, nil, nil, nil, RetireWork{
		Fences: []FenceRelease{{Pool: pool, Stages: track.StageCompute, Fence: fence}},
	})
	if err != nil {
		t.Fatalf("SubmitEncoder: %v", err)
	}

	cap.RunCompletions(sub)

	reacquired := pool.Acquire(track.StageCompute)
	if reacquired != fence {
		t.Fatalf("expected the released fence to be reused, got a new one")
	}
}

func TestDriver_RetireReleasesDisposedPersistentResources(t *testing.T) {
	cap := noop.New(false, false)
	d := NewDriver(cap)
	d.PurgeDelay = 0

	reg := resource.NewPersistentRegistry(cap)
	h, err := reg.AllocateBuffer(resource.BufferDescriptor{Length: 256})
	if err != nil {
		t.Fatalf("AllocateBuffer: %v", err)
	}
	backing, _ := reg.Backing(h)
	if err := reg.Dispose(h); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	enc := &graph.Encoder{Index: 0, Kind: graph.PassCompute, Queue: 0}
	sub, err := d.SubmitEncoder(enc, nil, nil, nil, nil, RetireWork{Persistent: reg})
	if err != nil {
		t.Fatalf("SubmitEncoder: %v", err)
	}
	cap.RunCompletions(sub)

	if !cap.Released(backing) {
		t.Fatalf("expected disposed resource's backing to be released after completion")
	}
}

func TestDriver_RetireCyclesTransientArenaAfterPurgeDelay(t *testing.T) {
	cap := noop.New(false, false)
	d := NewDriver(cap)
	d.PurgeDelay = 10 * time.Millisecond

	tr, err := resource.NewTransientRegistry(cap, 0, 1<<20)
	if err != nil {
		t.Fatalf("NewTransientRegistry: %v", err)
	}
	h, err := tr.DeclareBuffer(resource.BufferDescriptor{Length: 64})
	if err != nil {
		t.Fatalf("DeclareBuffer: %v", err)
	}

	enc := &graph.Encoder{Index: 0, Kind: graph.PassCompute, Queue: 0}
	sub, err := d.SubmitEncoder(enc, nil, nil, nil, nil, RetireWork{Transient: tr})
	if err != nil {
		t.Fatalf("SubmitEncoder: %v", err)
	}
	cap.RunCompletions(sub)

	if _, _, _, err := tr.LifetimeInterval(h); err != nil {
		t.Fatalf("arena should not have cycled before the purge delay elapses: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	// After Cycle, the handle's generation no longer matches the
	// registry's current cycle, so any lookup against it must fail.
	if _, lookupErr := tr.LifetimeInterval(h); lookupErr == nil {
		t.Fatalf("stale handle should be invalid after the arena cycled")
	}
}

func TestToBackendCommand_PreservesOrderAndResources(t *testing.T) {
	h := handle.NewHandle(handle.KindBuffer, handle.RegistryPersistent, 0, 3, 0)
	cmd := graph.CompactedCommand{
		Kind: graph.KindBarrier, Index: 5, Order: graph.OrderBefore,
		Resources: []handle.Handle{h},
	}
	out := toBackendCommand(cmd)
	if out.Kind != "barrier" || out.Index != 5 || !out.Before {
		t.Fatalf("unexpected conversion: %+v", out)
	}
	if len(out.Resources) != 1 || out.Resources[0] != uint64(h) {
		t.Fatalf("expected resource handle to carry through: %+v", out.Resources)
	}
}

func TestBuildFencePlan_GroupsByEncoderSkipsSameQueue(t *testing.T) {
	actions := []graph.FenceAction{
		{SrcEncoder: 0, DstEncoder: 1, SameQueue: true},
		{SrcEncoder: 1, DstEncoder: 2, SameQueue: false, Fence: backend.FenceID(7)},
	}
	plan := BuildFencePlan(actions)
	if _, ok := plan[0]; ok {
		t.Fatalf("same-queue action must not contribute a fence entry")
	}
	if len(plan[1].Signal) != 1 || plan[1].Signal[0] != backend.FenceID(7) {
		t.Fatalf("expected encoder 1 to signal fence 7: %+v", plan[1])
	}
	if len(plan[2].Wait) != 1 || plan[2].Wait[0] != backend.FenceID(7) {
		t.Fatalf("expected encoder 2 to wait on fence 7: %+v", plan[2])
	}
}
