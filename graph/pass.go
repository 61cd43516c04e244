// Package graph implements the pass scheduler, dependency builder,
// transitive reducer, fence/semaphore planner, and resource command
// compactor: the single-threaded analysis that turns a frame's recorded
// passes into a minimally-synchronized command stream per encoder.
package graph

import "github.com/gogpu/rendergraph/track"

// PassKind is the tagged union of command-encoder kinds.
type PassKind uint8

const (
	PassDraw PassKind = iota
	PassCompute
	PassBlit
	PassExternal
	PassAccelerationStructure
)

func (k PassKind) String() string {
	switch k {
	case PassDraw:
		return "Draw"
	case PassCompute:
		return "Compute"
	case PassBlit:
		return "Blit"
	case PassExternal:
		return "External"
	case PassAccelerationStructure:
		return "AccelerationStructure"
	default:
		return "Unknown"
	}
}

// Executor records a pass's bindings into scope. Supplied by the caller
// through the root package's add_pass.
type Executor func(scope *track.Scope)

// Pass is a registered unit of GPU work. Immutable after Record returns,
// except for the scheduling fields (EncoderIndex, CommandOffset, Culled)
// that the pass scheduler fills in.
type Pass struct {
	ID            uint32
	Kind          PassKind
	QueueAffinity uint32
	Name          string
	Executor      Executor

	// RenderTargetKey identifies a draw pass's render-target descriptor
	// (color/depth attachments). Draw passes with identical keys coalesce
	// into one encoder; an empty key never coalesces with another empty
	// key.
	RenderTargetKey string

	// KeepAlive marks a pass that must never be culled regardless of
	// reachability, the escape hatch external passes always set.
	KeepAlive bool

	Usages       []track.Usage
	Residency    []track.ResidencyRequirement
	Barriers     []track.BarrierRequest
	CommandCount uint32

	EncoderIndex  uint32
	CommandOffset uint32
	Culled        bool
}

// NewPass constructs a pass record. External passes are always KeepAlive.
func NewPass(id uint32, kind PassKind, queue uint32, name string, executor Executor) *Pass {
	return &Pass{
		ID:            id,
		Kind:          kind,
		QueueAffinity: queue,
		Name:          name,
		Executor:      executor,
		KeepAlive:     kind == PassExternal,
	}
}

// Record runs the executor against a fresh Scope and stores the
// collapsed per-pass state.
func (p *Pass) Record() {
	scope := track.NewScope()
	p.Executor(scope)
	p.Usages, p.Residency, p.Barriers = scope.Finish()
	p.CommandCount = scope.CommandCount()
}
