package track

import (
	"sort"

	"github.com/gogpu/rendergraph/handle"
)

type bindingKey struct {
	kind handle.Kind
	slot uint32
}

type activeBinding struct {
	resource handle.Handle
	offset   uint64
}

type residencyKey struct {
	stages Stage
	access Access
}

// Scope is the usage recorder's per-pass accumulator. A pass executor
// binds resources through it via set_buffer/set_texture/set_sampler/
// set_argument_buffer/set_bytes/use_resource/use_heap/memory_barrier;
// Finish collapses the accumulated state into the pass's final Usage
// set.
type Scope struct {
	nextCommandIndex uint32

	usages map[handle.Handle]*Usage
	order  []handle.Handle // first-seen order, for deterministic Finish output

	bindings map[bindingKey]activeBinding

	residencyGroups map[residencyKey]*ResidencyRequirement
	residencyOrder  []residencyKey
	residencySeen   map[residencyKey]map[handle.Handle]bool

	residencySingles []ResidencyRequirement
	barriers         []BarrierRequest
	heapUses         []Usage
}

// NewScope creates an empty per-pass recorder.
func NewScope() *Scope {
	return &Scope{
		usages:          make(map[handle.Handle]*Usage),
		bindings:        make(map[bindingKey]activeBinding),
		residencyGroups: make(map[residencyKey]*ResidencyRequirement),
		residencySeen:   make(map[residencyKey]map[handle.Handle]bool),
	}
}

func (s *Scope) nextIndex() uint32 {
	idx := s.nextCommandIndex
	s.nextCommandIndex++
	return idx
}

func (s *Scope) record(h handle.Handle, access Access, stages Stage, subresourceMask uint32, idx uint32) *Usage {
	u, ok := s.usages[h]
	if !ok {
		u = newUsage(h, access, stages, subresourceMask, idx)
		s.usages[h] = u
		s.order = append(s.order, h)
		return u
	}
	u.merge(access, stages, subresourceMask, idx)
	return u
}

// bind implements the path-collapse rule: a binding call whose (path,
// resource, offset) match the slot's last binding collapses into the
// existing Usage's index range; any change finalizes the previous range
// (implicitly, since the previous resource's Usage simply stops growing)
// and opens tracking for the new resource.
func (s *Scope) bind(kind handle.Kind, slot uint32, h handle.Handle, offset uint64, access Access, stages Stage) {
	idx := s.nextIndex()
	key := bindingKey{kind: kind, slot: slot}
	s.bindings[key] = activeBinding{resource: h, offset: offset}
	s.record(h, access, stages, 0, idx)
}

// SetBuffer binds h at slot with byte offset.
func (s *Scope) SetBuffer(slot uint32, h handle.Handle, offset uint64) {
	s.bind(handle.KindBuffer, slot, h, offset, AccessRead, 0)
}

// SetTexture binds h at slot for use at the given access/stages.
func (s *Scope) SetTexture(slot uint32, h handle.Handle, access Access, stages Stage) {
	s.bind(handle.KindTexture, slot, h, 0, access, stages)
}

// SetSampler binds h at slot (samplers carry no access/stage tracking of
// their own; they ride along with the texture they sample).
func (s *Scope) SetSampler(slot uint32, h handle.Handle) {
	s.bind(handle.KindSampler, slot, h, 0, AccessRead, 0)
}

// SetArgumentBuffer binds h as an argument buffer at slot with offset.
func (s *Scope) SetArgumentBuffer(slot uint32, h handle.Handle, offset uint64) {
	s.bind(handle.KindArgumentBuffer, slot, h, offset, AccessRead, 0)
}

// SetBytes records CPU-side immediate data (push constants). It advances
// the command index but tracks no GPU resource.
func (s *Scope) SetBytes(length int) {
	s.nextIndex()
}

// UseResource declares explicit access to h.
// allowReordering=false bypasses residency batching and is emitted at its
// exact command index; allowReordering=true joins the encoder-wide
// batched residency set keyed by (stages, access).
func (s *Scope) UseResource(h handle.Handle, access Access, stages Stage, allowReordering bool) {
	idx := s.nextIndex()
	u, ok := s.usages[h]
	if !ok {
		u = newUsage(h, access, stages, 0, idx)
		u.AllowReordering = allowReordering
		s.usages[h] = u
		s.order = append(s.order, h)
	} else {
		u.merge(access, stages, 0, idx)
		u.AllowReordering = u.AllowReordering && allowReordering
	}

	if !allowReordering {
		s.residencySingles = append(s.residencySingles, ResidencyRequirement{
			Stages: stages, AccessBits: access, Index: idx, Resources: []handle.Handle{h},
		})
		return
	}

	key := residencyKey{stages: stages, access: access}
	group, ok := s.residencyGroups[key]
	if !ok {
		group = &ResidencyRequirement{Stages: stages, AccessBits: access, Index: idx, AllowReordering: true}
		s.residencyGroups[key] = group
		s.residencySeen[key] = make(map[handle.Handle]bool)
		s.residencyOrder = append(s.residencyOrder, key)
	}
	if idx < group.Index {
		group.Index = idx
	}
	if !s.residencySeen[key][h] {
		s.residencySeen[key][h] = true
		group.Resources = append(group.Resources, h)
	}
}

// UseHeap declares a heap resident for stages, without per-resource
// access tracking.
func (s *Scope) UseHeap(h handle.Handle, stages Stage) {
	idx := s.nextIndex()
	s.heapUses = append(s.heapUses, Usage{
		Resource: h, Stages: stages, FirstCommandIndex: idx, LastCommandIndex: idx, ConsistentUsage: true,
	})
}

// MemoryBarrier records an explicit barrier point. resources == nil means
// a scope-wide barrier.
func (s *Scope) MemoryBarrier(resources []handle.Handle, afterStages, beforeStages Stage) {
	idx := s.nextIndex()
	s.barriers = append(s.barriers, BarrierRequest{
		Resources: resources, AfterStages: afterStages, BeforeStages: beforeStages, Index: idx,
	})
}

// Finish collapses every binding into its final Usage record and returns
// the pass's accumulated state in deterministic, first-seen order for
// Usage records and sorted-handle order within each residency group.
func (s *Scope) Finish() ([]Usage, []ResidencyRequirement, []BarrierRequest) {
	usages := make([]Usage, 0, len(s.order)+len(s.heapUses))
	for _, h := range s.order {
		usages = append(usages, *s.usages[h])
	}
	usages = append(usages, s.heapUses...)

	residency := make([]ResidencyRequirement, 0, len(s.residencyOrder)+len(s.residencySingles))
	for _, key := range s.residencyOrder {
		g := *s.residencyGroups[key]
		g.Resources = append([]handle.Handle(nil), g.Resources...)
		sort.Slice(g.Resources, func(i, j int) bool { return g.Resources[i] < g.Resources[j] })
		residency = append(residency, g)
	}
	residency = append(residency, s.residencySingles...)

	return usages, residency, s.barriers
}

// CommandCount returns the number of commands recorded so far, used by the
// Pass Scheduler's soft command-count cap when deciding encoder splits.
func (s *Scope) CommandCount() uint32 { return s.nextCommandIndex }
