package graph

import (
	"sort"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/handle"
	"github.com/gogpu/rendergraph/track"
)

// Order is the final stable-sort tie-break within one command index:
// Before < PassCommand < After.
type Order uint8

const (
	OrderBefore Order = iota
	OrderPassCommand
	OrderAfter
)

// CommandKind distinguishes the compactor's synthesized commands.
type CommandKind uint8

const (
	KindResidency CommandKind = iota
	KindBarrier
	KindFenceWait
	KindFenceUpdate
)

// BarrierScope is the union of resource categories a scoped barrier
// spans: buffers, textures, and render targets.
type BarrierScope uint8

const (
	ScopeBuffers BarrierScope = 1 << iota
	ScopeTextures
	ScopeRenderTargets
)

// barrierResourceThreshold is the per-resource/scoped barrier cutover
// point: up to 8 participating resources list each one explicitly; 9
// or more collapse to the coarser scoped form.
const barrierResourceThreshold = 8

// CompactedCommand is one synthesized entry merged into an encoder's
// final command stream alongside the pass's own recorded commands. The
// backend capability's EncodePass receives both the pass list and this
// slice; it is responsible for interleaving them by (Index, Order).
type CompactedCommand struct {
	Kind      CommandKind
	Index     uint32
	Order     Order
	Encoder   uint32
	Resources []handle.Handle

	Scoped bool
	Scope  BarrierScope

	Stages                    track.Stage
	AfterStages, BeforeStages track.Stage
	LayoutTransition          bool

	Fence backend.FenceID
}

// Compact derives the residency, barrier, and fence commands an
// encoder needs around its passes' own recorded commands, returning
// every encoder's synthesized commands already stably sorted by
// (Index, Order).
func Compact(passes []*Pass, encoders []*Encoder, fenceActions []FenceAction) map[uint32][]CompactedCommand {
	out := make(map[uint32][]CompactedCommand, len(encoders))

	for _, enc := range encoders {
		var cmds []CompactedCommand
		cmds = append(cmds, compactResidency(passes, enc.Index)...)
		cmds = append(cmds, compactBarriers(intraEncoderHazards(passes, enc.Index))...)
		out[enc.Index] = cmds
	}

	for _, fa := range fenceActions {
		if fa.SameQueue {
			out[fa.DstEncoder] = append(out[fa.DstEncoder], CompactedCommand{
				Kind: KindBarrier, Index: fa.BarrierIndex, Order: OrderBefore, Encoder: fa.DstEncoder,
				AfterStages: fa.AfterStages, BeforeStages: fa.BeforeStages,
			})
			continue
		}
		out[fa.SrcEncoder] = append(out[fa.SrcEncoder], CompactedCommand{
			Kind: KindFenceUpdate, Index: fa.UpdateAfterIndex, Order: OrderAfter, Encoder: fa.SrcEncoder,
			AfterStages: fa.AfterStages, Fence: fa.Fence,
		})
		out[fa.DstEncoder] = append(out[fa.DstEncoder], CompactedCommand{
			Kind: KindFenceWait, Index: fa.WaitBeforeIndex, Order: OrderBefore, Encoder: fa.DstEncoder,
			BeforeStages: fa.BeforeStages, Fence: fa.Fence,
		})
	}

	for idx, cmds := range out {
		sort.SliceStable(cmds, func(i, j int) bool {
			if cmds[i].Index != cmds[j].Index {
				return cmds[i].Index < cmds[j].Index
			}
			return cmds[i].Order < cmds[j].Order
		})
		out[idx] = cmds
	}
	return out
}

// compactResidency batches use_resources calls per encoder by
// (stages, usage_bits), taking the earliest contributing command index
// as the insertion point and de-duplicating the resource set. Resources
// recorded with allow_reordering=false bypass batching entirely.
func compactResidency(passes []*Pass, encoder uint32) []CompactedCommand {
	type key struct {
		stages track.Stage
		access track.Access
	}
	groups := make(map[key]*CompactedCommand)
	var order []key
	var singles []CompactedCommand

	for _, p := range passes {
		if p.Culled || p.EncoderIndex != encoder {
			continue
		}
		for _, r := range p.Residency {
			idx := p.CommandOffset + r.Index
			if !r.AllowReordering {
				singles = append(singles, CompactedCommand{
					Kind: KindResidency, Index: idx, Order: OrderBefore, Encoder: encoder,
					Resources: append([]handle.Handle(nil), r.Resources...), Stages: r.Stages,
				})
				continue
			}

			k := key{stages: r.Stages, access: r.AccessBits}
			g, ok := groups[k]
			if !ok {
				g = &CompactedCommand{Kind: KindResidency, Order: OrderBefore, Index: idx, Encoder: encoder, Stages: r.Stages}
				groups[k] = g
				order = append(order, k)
			}
			if idx < g.Index {
				g.Index = idx
			}
			seen := make(map[handle.Handle]bool, len(g.Resources))
			for _, h := range g.Resources {
				seen[h] = true
			}
			for _, h := range r.Resources {
				if !seen[h] {
					seen[h] = true
					g.Resources = append(g.Resources, h)
				}
			}
		}
	}

	out := make([]CompactedCommand, 0, len(order)+len(singles))
	for _, k := range order {
		g := *groups[k]
		sort.Slice(g.Resources, func(i, j int) bool { return g.Resources[i] < g.Resources[j] })
		out = append(out, g)
	}
	out = append(out, singles...)
	return out
}

type hazardRecord struct {
	resource     handle.Handle
	consumerIdx  uint32
	afterStages  track.Stage
	beforeStages track.Stage
	renderTarget bool
	layout       bool
}

// intraEncoderHazards scans one encoder's own usage sequence for
// RAW/WAR/WAW/layout pairs, accumulated between a last-write and the
// next first-read/write. Cross-encoder hazards are handled separately,
// by BuildMatrix and PlanFences.
func intraEncoderHazards(passes []*Pass, encoder uint32) []hazardRecord {
	events := make(map[handle.Handle][]resourceEvent)
	for _, p := range passes {
		if p.Culled || p.EncoderIndex != encoder {
			continue
		}
		for _, u := range p.Usages {
			events[u.Resource] = append(events[u.Resource], resourceEvent{
				encoder:     encoder,
				firstGlobal: p.CommandOffset + u.FirstCommandIndex,
				lastGlobal:  p.CommandOffset + u.LastCommandIndex,
				usage:       u,
			})
		}
	}

	var hazards []hazardRecord
	for h, evs := range events {
		sort.Slice(evs, func(i, j int) bool { return evs[i].firstGlobal < evs[j].firstGlobal })
		for i := 1; i < len(evs); i++ {
			prior, later := evs[i-1], evs[i]
			if !classifyHazard(prior.usage.Access, later.usage.Access) {
				continue
			}
			hazards = append(hazards, hazardRecord{
				resource: h, consumerIdx: later.firstGlobal,
				afterStages: prior.usage.Stages, beforeStages: later.usage.Stages,
				renderTarget: later.usage.Access.Contains(track.AccessRenderTarget),
				layout:       layoutFor(prior.usage.Access) != layoutFor(later.usage.Access),
			})
		}
	}

	sort.Slice(hazards, func(i, j int) bool {
		if hazards[i].consumerIdx != hazards[j].consumerIdx {
			return hazards[i].consumerIdx < hazards[j].consumerIdx
		}
		return hazards[i].resource < hazards[j].resource
	})
	return hazards
}

// compactBarriers accumulates hazards into staged barriers, flushing
// whenever a new hazard's consumer index would precede the already
// staged barrier's index. A flushed batch emits the per-resource form
// at <=8 resources with no render-target participant, otherwise the
// scoped form.
func compactBarriers(hazards []hazardRecord) []CompactedCommand {
	type staged struct {
		resources    []handle.Handle
		seen         map[handle.Handle]bool
		index        uint32
		after, before track.Stage
		hasRenderTarget bool
		layout          bool
	}

	var out []CompactedCommand
	var cur *staged

	flush := func() {
		if cur == nil {
			return
		}
		cmd := CompactedCommand{
			Kind: KindBarrier, Index: cur.index, Order: OrderBefore,
			AfterStages: cur.after, BeforeStages: cur.before, LayoutTransition: cur.layout,
		}
		if len(cur.resources) <= barrierResourceThreshold && !cur.hasRenderTarget {
			cmd.Resources = append([]handle.Handle(nil), cur.resources...)
		} else {
			cmd.Scoped = true
			var scope BarrierScope
			for _, r := range cur.resources {
				if r.Kind() == handle.KindTexture {
					scope |= ScopeTextures
				} else {
					scope |= ScopeBuffers
				}
			}
			if cur.hasRenderTarget {
				scope |= ScopeRenderTargets
			}
			cmd.Scope = scope
		}
		out = append(out, cmd)
		cur = nil
	}

	for _, hz := range hazards {
		if cur != nil && hz.consumerIdx < cur.index {
			flush()
		}
		if cur == nil {
			cur = &staged{index: hz.consumerIdx, seen: make(map[handle.Handle]bool)}
		}
		if !cur.seen[hz.resource] {
			cur.seen[hz.resource] = true
			cur.resources = append(cur.resources, hz.resource)
		}
		cur.after = cur.after.Union(hz.afterStages)
		cur.before = cur.before.Union(hz.beforeStages)
		cur.hasRenderTarget = cur.hasRenderTarget || hz.renderTarget
		cur.layout = cur.layout || hz.layout
	}
	flush()

	return out
}
