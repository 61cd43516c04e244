package track

import "github.com/gogpu/rendergraph/handle"

// Usage records one resource's accumulated access within a single pass.
// Multiple binding calls against the same resource within one pass
// collapse into a single Usage, widening SubresourceMask/Access/Stages
// and extending LastCommandIndex rather than producing separate records.
type Usage struct {
	Resource          handle.Handle
	SubresourceMask   uint32
	Access            Access
	Stages            Stage
	FirstCommandIndex uint32
	LastCommandIndex  uint32

	// ConsistentUsage stays true only as long as every merge into this
	// Usage carried the same Access/Stages. The compactor in package graph
	// does not read it; residency placement is the same either way.
	ConsistentUsage bool

	// AllowReordering mirrors the flag passed to the use_resource call
	// that produced this Usage; false pins it to a per-command residency
	// requirement instead of the encoder-wide batched set.
	AllowReordering bool
}

func newUsage(h handle.Handle, access Access, stages Stage, subresourceMask uint32, index uint32) *Usage {
	return &Usage{
		Resource:          h,
		SubresourceMask:   subresourceMask,
		Access:            access,
		Stages:            stages,
		FirstCommandIndex: index,
		LastCommandIndex:  index,
		ConsistentUsage:   true,
		AllowReordering:   true,
	}
}

// merge widens u with a further access to the same resource.
func (u *Usage) merge(access Access, stages Stage, subresourceMask uint32, index uint32) {
	if access != u.Access || stages != u.Stages {
		u.ConsistentUsage = false
	}
	u.Access |= access
	u.Stages |= stages
	u.SubresourceMask |= subresourceMask
	if index < u.FirstCommandIndex {
		u.FirstCommandIndex = index
	}
	if index > u.LastCommandIndex {
		u.LastCommandIndex = index
	}
}

// ResidencyRequirement is a single use_resources batch point that package
// graph's compactor turns into a make-resident command. Resources is
// de-duplicated and, once finalized, sorted for a deterministic
// compaction order.
type ResidencyRequirement struct {
	Stages          Stage
	AccessBits      Access
	Index           uint32
	Resources       []handle.Handle
	AllowReordering bool
}

// BarrierRequest is an explicit memory_barrier call recorded mid-pass.
// Resources == nil means a scope-wide barrier over every resource touched
// by the pass so far.
type BarrierRequest struct {
	Resources    []handle.Handle
	AfterStages  Stage
	BeforeStages Stage
	Index        uint32
}
