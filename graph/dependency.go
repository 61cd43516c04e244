package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/gogpu/rendergraph/handle"
	"github.com/gogpu/rendergraph/resource"
	"github.com/gogpu/rendergraph/track"
)

// DepEndpoint is one side of a Dep: the command index within its
// encoder's combined command stream and the pipeline stages
// participating in the hazard.
type DepEndpoint struct {
	Index  uint32
	Stages track.Stage
}

// Dep records a single producer→consumer hazard between two encoders.
type Dep struct {
	Signal DepEndpoint
	Wait   DepEndpoint
}

type edgeKey struct{ src, dst uint32 }

// Matrix is the encoder-pair dependency matrix D[dst][src], backed by a
// gonum directed graph so the reducer can hand it to gonum's
// topological sort as a cross-check rather than a hand-rolled
// adjacency walk.
type Matrix struct {
	Graph *simple.DirectedGraph
	Deps  map[edgeKey]*Dep
}

func newMatrix() *Matrix {
	return &Matrix{Graph: simple.NewDirectedGraph(), Deps: make(map[edgeKey]*Dep)}
}

// Dep looks up the dependency recorded for producer src, consumer dst.
func (m *Matrix) Dep(dst, src uint32) (*Dep, bool) {
	d, ok := m.Deps[edgeKey{src: src, dst: dst}]
	return d, ok
}

// Edge is one (producer, consumer, dependency) triple.
type Edge struct {
	Src, Dst uint32
	Dep      *Dep
}

// Edges enumerates every surviving dependency, sorted for determinism.
func (m *Matrix) Edges() []Edge {
	out := make([]Edge, 0, len(m.Deps))
	for k, d := range m.Deps {
		out = append(out, Edge{k.src, k.dst, d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src < out[j].Src
		}
		return out[i].Dst < out[j].Dst
	})
	return out
}

func (m *Matrix) addEdge(src, dst uint32, signalIdx, waitIdx uint32, signalStages, waitStages track.Stage) {
	key := edgeKey{src: src, dst: dst}
	d, ok := m.Deps[key]
	if !ok {
		if !m.Graph.HasEdgeFromTo(int64(src), int64(dst)) {
			m.Graph.SetEdge(simple.Edge{F: simple.Node(src), T: simple.Node(dst)})
		}
		m.Deps[key] = &Dep{
			Signal: DepEndpoint{Index: signalIdx, Stages: signalStages},
			Wait:   DepEndpoint{Index: waitIdx, Stages: waitStages},
		}
		return
	}
	// Multiple hazards on the same encoder pair merge: signal.index =
	// max, wait.index = min, stages unioned.
	if signalIdx > d.Signal.Index {
		d.Signal.Index = signalIdx
	}
	if waitIdx < d.Wait.Index {
		d.Wait.Index = waitIdx
	}
	d.Signal.Stages = d.Signal.Stages.Union(signalStages)
	d.Wait.Stages = d.Wait.Stages.Union(waitStages)
}

type resourceEvent struct {
	encoder     uint32
	firstGlobal uint32
	lastGlobal  uint32
	usage       track.Usage
}

// layoutBucket classifies an access into the coarse logical layout the
// layout-transition rule needs. Only meaningful for texture-kind
// resources.
type layoutBucket uint8

const (
	layoutUndefined layoutBucket = iota
	layoutColorAttachment
	layoutShaderReadOnly
	layoutGeneral
	layoutTransferSrc
	layoutTransferDst
)

func layoutFor(a track.Access) layoutBucket {
	switch {
	case a.Contains(track.AccessRenderTarget):
		return layoutColorAttachment
	case a.Contains(track.AccessBlitDst):
		return layoutTransferDst
	case a.Contains(track.AccessBlitSrc):
		return layoutTransferSrc
	case a.Contains(track.AccessInputAttachment) || (a.IsRead() && !a.IsWrite()):
		return layoutShaderReadOnly
	case a.IsWrite():
		return layoutGeneral
	default:
		return layoutUndefined
	}
}

// classifyHazard reports whether a dependency must be recorded between a
// usage with prior access and a later usage of the same resource:
// read-after-write, write-after-read, write-after-write, or a layout
// change between two recognized logical layouts.
func classifyHazard(prior, later track.Access) bool {
	switch {
	case prior.IsWrite() && later.IsRead():
		return true
	case prior.IsRead() && later.IsWrite():
		return true
	case prior.IsWrite() && later.IsWrite():
		return true
	case layoutFor(prior) != layoutUndefined && layoutFor(later) != layoutUndefined && layoutFor(prior) != layoutFor(later):
		return true
	default:
		return false
	}
}

func buildResourceEvents(passes []*Pass) map[handle.Handle][]resourceEvent {
	events := make(map[handle.Handle][]resourceEvent)
	for _, p := range passes {
		if p.Culled {
			continue
		}
		for _, u := range p.Usages {
			events[u.Resource] = append(events[u.Resource], resourceEvent{
				encoder:     p.EncoderIndex,
				firstGlobal: p.CommandOffset + u.FirstCommandIndex,
				lastGlobal:  p.CommandOffset + u.LastCommandIndex,
				usage:       u,
			})
		}
	}
	for h := range events {
		evs := events[h]
		sort.Slice(evs, func(i, j int) bool {
			if evs[i].encoder != evs[j].encoder {
				return evs[i].encoder < evs[j].encoder
			}
			return evs[i].firstGlobal < evs[j].firstGlobal
		})
		events[h] = evs
	}
	return events
}

// BuildMatrix builds the encoder-pair dependency matrix: for every
// resource, the accumulated usages form a per-resource event log
// ordered by (encoder_index, first_command_index); adjacent pairs in
// different encoders emit a dependency. Same-encoder hazards are left to
// Compact, which derives intra-encoder barriers directly from each
// encoder's own usage sequence.
func BuildMatrix(passes []*Pass) *Matrix {
	m := newMatrix()
	for _, evs := range buildResourceEvents(passes) {
		for i := 1; i < len(evs); i++ {
			prior, later := evs[i-1], evs[i]
			if prior.encoder == later.encoder {
				continue
			}
			if !classifyHazard(prior.usage.Access, later.usage.Access) {
				continue
			}
			m.addEdge(prior.encoder, later.encoder,
				prior.lastGlobal, later.firstGlobal,
				prior.usage.Stages, later.usage.Stages)
		}
	}
	return m
}

// transientInterval is one transient resource's per-frame lifetime,
// expressed as the (first_use_encoder, last_use_encoder) pair its
// aliasing candidates are chosen from.
type transientInterval struct {
	Handle handle.Handle
	First  uint32
	Last   uint32
	Size   uint64
}

func collectTransientIntervals(passes []*Pass, sizes map[handle.Handle]uint64) []transientInterval {
	seen := make(map[handle.Handle]*transientInterval)
	var order []handle.Handle
	for _, p := range passes {
		if p.Culled {
			continue
		}
		for _, u := range p.Usages {
			if u.Resource.Registry() != handle.RegistryTransient {
				continue
			}
			iv, ok := seen[u.Resource]
			if !ok {
				iv = &transientInterval{Handle: u.Resource, First: p.EncoderIndex, Last: p.EncoderIndex, Size: sizes[u.Resource]}
				seen[u.Resource] = iv
				order = append(order, u.Resource)
				continue
			}
			if p.EncoderIndex < iv.First {
				iv.First = p.EncoderIndex
			}
			if p.EncoderIndex > iv.Last {
				iv.Last = p.EncoderIndex
			}
		}
	}
	out := make([]transientInterval, 0, len(order))
	for _, h := range order {
		out = append(out, *seen[h])
	}
	return out
}

// BuildAliasPairs computes non-overlapping transient-resource pairs,
// greedily pairing each resource with an already-finished earlier one
// whose size is at least as large. Adjacent intervals that share an
// endpoint do NOT alias: a shared encoder index is still a live frame
// for both. Pairs never chain (a "later" resource is never itself
// reused as an "earlier" partner), matching what
// resource.TransientRegistry.AssignOffsets can resolve in one pass.
func BuildAliasPairs(passes []*Pass, sizes map[handle.Handle]uint64) []resource.AliasPair {
	intervals := collectTransientIntervals(passes, sizes)
	sort.Slice(intervals, func(i, j int) bool {
		if intervals[i].First != intervals[j].First {
			return intervals[i].First < intervals[j].First
		}
		return intervals[i].Handle < intervals[j].Handle
	})

	used := make([]bool, len(intervals))
	var pairs []resource.AliasPair
	for i := range intervals {
		if used[i] {
			continue
		}
		for j := i + 1; j < len(intervals); j++ {
			if used[j] {
				continue
			}
			if intervals[j].First > intervals[i].Last && intervals[j].Size <= intervals[i].Size {
				pairs = append(pairs, resource.AliasPair{Earlier: intervals[i].Handle, Later: intervals[j].Handle})
				used[j] = true
				break
			}
		}
	}
	return pairs
}
