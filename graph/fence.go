package graph

import (
	"sort"
	"sync"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/track"
)

// FenceAction is one planned synchronization point for a surviving
// dependency edge: either a same-queue barrier (no fence object) or a
// cross-queue fence update/wait pair.
type FenceAction struct {
	SrcEncoder, DstEncoder uint32
	SameQueue              bool

	// Same-queue fields: a pipeline_barrier/memory_barrier inserted at
	// BarrierIndex of the destination encoder's command stream.
	AfterStages  track.Stage
	BeforeStages track.Stage
	BarrierIndex uint32

	// Cross-queue fields.
	Fence            backend.FenceID
	UpdateAfterIndex uint32
	WaitBeforeIndex  uint32
	CommandBufferIdx uint32
}

// FencePool recycles abstract fence tokens keyed by stage set: a
// freelist split between a single fence object and the pool that
// recycles it.
type FencePool struct {
	mu    sync.Mutex
	cap   backend.Capability
	queue backend.QueueID
	free  map[track.Stage][]backend.FenceID
}

// NewFencePool creates a pool that mints new fences from cap on queue
// when nothing recyclable is available.
func NewFencePool(cap backend.Capability, queue backend.QueueID) *FencePool {
	return &FencePool{cap: cap, queue: queue, free: make(map[track.Stage][]backend.FenceID)}
}

// Acquire returns a fence for stages, reusing a released one if possible.
func (p *FencePool) Acquire(stages track.Stage) backend.FenceID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if list := p.free[stages]; len(list) > 0 {
		f := list[len(list)-1]
		p.free[stages] = list[:len(list)-1]
		return f
	}
	return p.cap.MakeSyncEvent(p.queue)
}

// Release returns f to the pool for reuse once its command buffer has
// retired.
func (p *FencePool) Release(stages track.Stage, f backend.FenceID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free[stages] = append(p.free[stages], f)
}

// PlanFences plans synchronization for every surviving edge in m. queueOf
// and cmdBufOf resolve an encoder's
// queue and command-buffer index respectively. One fence per source
// encoder suffices when all of that encoder's outgoing cross-queue edges
// share identical signal.stages; otherwise a distinct fence is allocated
// per stage-set.
func PlanFences(m *Matrix, queueOf func(encoder uint32) uint32, cmdBufOf func(encoder uint32) uint32, pool *FencePool) []FenceAction {
	edges := m.Edges()

	fenceForStageSet := make(map[uint32]map[track.Stage]backend.FenceID)
	actions := make([]FenceAction, 0, len(edges))

	for _, e := range edges {
		if queueOf(e.Src) == queueOf(e.Dst) {
			actions = append(actions, FenceAction{
				SrcEncoder: e.Src, DstEncoder: e.Dst, SameQueue: true,
				AfterStages: e.Dep.Signal.Stages, BeforeStages: e.Dep.Wait.Stages,
				BarrierIndex: e.Dep.Wait.Index,
			})
			continue
		}

		perSrc, ok := fenceForStageSet[e.Src]
		if !ok {
			perSrc = make(map[track.Stage]backend.FenceID)
			fenceForStageSet[e.Src] = perSrc
		}
		fence, ok := perSrc[e.Dep.Signal.Stages]
		if !ok {
			fence = pool.Acquire(e.Dep.Signal.Stages)
			perSrc[e.Dep.Signal.Stages] = fence
		}

		cbIdx := cmdBufOf(e.Src)
		if d := cmdBufOf(e.Dst); d > cbIdx {
			cbIdx = d
		}

		actions = append(actions, FenceAction{
			SrcEncoder: e.Src, DstEncoder: e.Dst, SameQueue: false,
			Fence:            fence,
			UpdateAfterIndex: e.Dep.Signal.Index,
			WaitBeforeIndex:  e.Dep.Wait.Index,
			CommandBufferIdx: cbIdx,
		})
	}

	sort.Slice(actions, func(i, j int) bool {
		if actions[i].SrcEncoder != actions[j].SrcEncoder {
			return actions[i].SrcEncoder < actions[j].SrcEncoder
		}
		return actions[i].DstEncoder < actions[j].DstEncoder
	})
	return actions
}
