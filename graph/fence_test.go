package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/backend/noop"
	"github.com/gogpu/rendergraph/track"
)

func TestFencePool_ReleaseThenAcquireReusesTheSameToken(t *testing.T) {
	cap := noop.New(false, false)
	pool := NewFencePool(cap, cap.MakeQueue(backend.QueueSpec{}))

	f1 := pool.Acquire(track.StageCompute)
	pool.Release(track.StageCompute, f1)
	f2 := pool.Acquire(track.StageCompute)

	require.Equal(t, f1, f2, "a released fence must be handed back out before a new one is minted")
}

func TestFencePool_DistinctStagesDoNotShareFreeLists(t *testing.T) {
	cap := noop.New(false, false)
	pool := NewFencePool(cap, cap.MakeQueue(backend.QueueSpec{}))

	f1 := pool.Acquire(track.StageCompute)
	pool.Release(track.StageCompute, f1)

	f2 := pool.Acquire(track.StageFragment)
	require.NotEqual(t, f1, f2, "a fence released under one stage set must not satisfy an acquire for a different one")
}

func TestPlanFences_SameQueueEdgeProducesBarrierAction(t *testing.T) {
	m := newMatrix()
	m.addEdge(0, 1, 5, 7, track.StageCompute, track.StageFragment)

	sameQueue := func(uint32) uint32 { return 0 }
	cmdBuf := func(enc uint32) uint32 { return enc }
	cap := noop.New(false, false)
	pool := NewFencePool(cap, cap.MakeQueue(backend.QueueSpec{}))

	actions := PlanFences(m, sameQueue, cmdBuf, pool)
	require.Len(t, actions, 1)
	require.Equal(t, FenceAction{
		SrcEncoder:   0,
		DstEncoder:   1,
		SameQueue:    true,
		AfterStages:  track.StageCompute,
		BeforeStages: track.StageFragment,
		BarrierIndex: 7,
	}, actions[0])
}

func TestPlanFences_CrossQueueEdgeAcquiresAFenceFromThePool(t *testing.T) {
	m := newMatrix()
	m.addEdge(0, 1, 5, 7, track.StageCompute, track.StageFragment)

	queueOf := func(enc uint32) uint32 { return enc }
	cmdBuf := func(enc uint32) uint32 { return enc }
	cap := noop.New(false, false)
	pool := NewFencePool(cap, cap.MakeQueue(backend.QueueSpec{}))

	actions := PlanFences(m, queueOf, cmdBuf, pool)
	require.Len(t, actions, 1)

	a := actions[0]
	require.False(t, a.SameQueue)
	require.Equal(t, uint32(0), a.SrcEncoder)
	require.Equal(t, uint32(1), a.DstEncoder)
	require.Equal(t, uint32(5), a.UpdateAfterIndex)
	require.Equal(t, uint32(7), a.WaitBeforeIndex)
	require.Equal(t, uint32(1), a.CommandBufferIdx)
	require.NotZero(t, a.Fence)
}

func TestPlanFences_SharedSignalStagesReuseOneFencePerSourceEncoder(t *testing.T) {
	m := newMatrix()
	m.addEdge(0, 1, 1, 2, track.StageCompute, track.StageFragment)
	m.addEdge(0, 2, 3, 4, track.StageCompute, track.StageFragment)

	queueOf := func(enc uint32) uint32 { return enc }
	cmdBuf := func(enc uint32) uint32 { return enc }
	cap := noop.New(false, false)
	pool := NewFencePool(cap, cap.MakeQueue(backend.QueueSpec{}))

	actions := PlanFences(m, queueOf, cmdBuf, pool)
	require.Len(t, actions, 2)
	require.Equal(t, actions[0].Fence, actions[1].Fence, "two edges sharing signal stages from the same source encoder should reuse one fence")
}
