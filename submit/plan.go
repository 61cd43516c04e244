package submit

import (
	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/graph"
)

// EncoderFences collects the wait and signal fence lists one encoder
// needs at submission time, derived from the Fence Planner's output.
type EncoderFences struct {
	Wait   []backend.FenceID
	Signal []backend.FenceID
}

// BuildFencePlan groups graph.FenceAction entries by the encoder that
// must wait on (or signal) them, so the caller can hand each encoder its
// own wait/signal slice when calling SubmitEncoder. Same-queue actions
// carry no fence (the Compactor already folded them into an in-stream
// barrier) and are skipped here.
func BuildFencePlan(actions []graph.FenceAction) map[uint32]*EncoderFences {
	out := make(map[uint32]*EncoderFences)
	get := func(enc uint32) *EncoderFences {
		f, ok := out[enc]
		if !ok {
			f = &EncoderFences{}
			out[enc] = f
		}
		return f
	}
	for _, a := range actions {
		if a.SameQueue {
			continue
		}
		src := get(a.SrcEncoder)
		src.Signal = append(src.Signal, a.Fence)
		dst := get(a.DstEncoder)
		dst.Wait = append(dst.Wait, a.Fence)
	}
	return out
}
