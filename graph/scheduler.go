package graph

import "github.com/gogpu/rendergraph/handle"

// SinkSet flags persistent resources with an external consumer —
// swapchain images, persistent buffers read by the next frame, blit
// destinations to externally-held resources. A pass survives culling
// only if one of its writes transitively reaches a member of this set.
type SinkSet map[handle.Handle]bool

// Cull marks every pass whose writes never transitively reach an
// external-consumer sink, walking passes in reverse registration order.
// Registration order is topological, so a single backward pass suffices:
// a pass is live if it writes a resource some later live pass needs, and
// once live its own reads become "needed" for passes further upstream.
// External passes are never culled; they always carry KeepAlive.
func Cull(passes []*Pass, sinks SinkSet) {
	needed := make(map[handle.Handle]bool, len(sinks))
	for h := range sinks {
		needed[h] = true
	}

	for i := len(passes) - 1; i >= 0; i-- {
		p := passes[i]
		live := p.KeepAlive

		for _, u := range p.Usages {
			if u.Access.IsWrite() && needed[u.Resource] {
				live = true
			}
		}

		p.Culled = !live
		if !live {
			continue
		}
		for _, u := range p.Usages {
			if u.Access.IsRead() {
				needed[u.Resource] = true
			}
		}
	}
}

// Encoder is a maximal run of consecutive, non-culled passes sharing a
// kind and queue. Encoders are the unit of dependency and fencing.
type Encoder struct {
	Index           uint32
	Kind            PassKind
	Queue           uint32
	PassIndices     []uint32 // indices into the slice passed to AssignEncoders
	RenderTargetKey string
	CommandCount    uint32
}

// SchedulerOptions tunes encoder assignment.
type SchedulerOptions struct {
	// SoftCommandCap is a backend-specified soft cap on a command
	// buffer's command count. Zero disables the cap.
	SoftCommandCap uint32
}

// AssignEncoders walks non-culled passes in registration order and
// groups them into encoders. Each pass's EncoderIndex and CommandOffset
// (its position within the encoder's combined command stream) are
// filled in.
func AssignEncoders(passes []*Pass, opts SchedulerOptions) []*Encoder {
	var encoders []*Encoder
	var current *Encoder

	for i, p := range passes {
		if p.Culled {
			continue
		}

		needNew := current == nil ||
			current.Kind != p.Kind ||
			current.Queue != p.QueueAffinity ||
			(p.Kind == PassDraw && p.RenderTargetKey != current.RenderTargetKey) ||
			(opts.SoftCommandCap > 0 && current.CommandCount+p.CommandCount > opts.SoftCommandCap)

		if needNew {
			current = &Encoder{
				Index:           uint32(len(encoders)),
				Kind:            p.Kind,
				Queue:           p.QueueAffinity,
				RenderTargetKey: p.RenderTargetKey,
			}
			encoders = append(encoders, current)
		}

		p.EncoderIndex = current.Index
		p.CommandOffset = current.CommandCount
		current.PassIndices = append(current.PassIndices, uint32(i))
		current.CommandCount += p.CommandCount
	}

	return encoders
}
