// Package submit implements the submission driver: it walks a frame's
// compacted per-encoder command lists, asks the backend to encode and
// submit each one in dependency order, and retires finished work through
// a completion callback.
package submit

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/graph"
	"github.com/gogpu/rendergraph/resource"
	"github.com/gogpu/rendergraph/track"
)

// DefaultPurgeDelay is the default quiescence window between a
// submission's completion and the reset of the transient arena it used,
// giving any backend-side deferred readback a window to finish before
// the frame's memory is reused.
const DefaultPurgeDelay = 5 * time.Second

// Driver submits a frame's encoders to a backend.Capability and retires
// the resources they touched once the backend reports completion.
type Driver struct {
	Capability backend.Capability
	PurgeDelay time.Duration

	mu         sync.Mutex
	fencePools map[backend.QueueID]*graph.FencePool
}

// NewDriver creates a Driver submitting through cap, using
// DefaultPurgeDelay.
func NewDriver(cap backend.Capability) *Driver {
	return &Driver{Capability: cap, PurgeDelay: DefaultPurgeDelay, fencePools: make(map[backend.QueueID]*graph.FencePool)}
}

// FencePool returns the fence pool for queue, creating it on first use.
func (d *Driver) FencePool(queue backend.QueueID) *graph.FencePool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.fencePools[queue]
	if !ok {
		p = graph.NewFencePool(d.Capability, queue)
		d.fencePools[queue] = p
	}
	return p
}

// EncoderQueues maps a graph.Encoder's index to the backend.QueueID that
// should carry it (the caller resolves this from its own queue
// assignment policy; the driver only needs the result).
type EncoderQueues map[uint32]backend.QueueID

// FenceRelease names a fence that must be returned to its pool once the
// submission that depended on it has completed.
type FenceRelease struct {
	Pool   *graph.FencePool
	Stages track.Stage
	Fence  backend.FenceID
}

// RetireWork bundles everything a completion callback must clean up for
// one encoder's submission: fences it borrowed, and the persistent and
// transient registries that cannot be safely reused until the GPU is
// done referencing them.
type RetireWork struct {
	Fences     []FenceRelease
	Persistent *resource.PersistentRegistry
	Transient  *resource.TransientRegistry
}

// SubmitEncoder encodes and submits one encoder's command stream,
// registering retire to run once the backend reports completion.
func (d *Driver) SubmitEncoder(enc *graph.Encoder, passIDs []uint32, cmds []graph.CompactedCommand, waitFences, signalFences []backend.FenceID, retire RetireWork) (backend.SubmissionID, error) {
	backendCmds := make([]backend.CompactedCommand, len(cmds))
	for i, c := range cmds {
		backendCmds[i] = toBackendCommand(c)
	}

	cb, err := d.Capability.EncodePass(encoderKind(enc.Kind), passIDs, backendCmds)
	if err != nil {
		return 0, fmt.Errorf("submit: encode encoder %d: %w", enc.Index, err)
	}

	sub, err := d.Capability.Submit(cb, waitFences, signalFences)
	if err != nil {
		return 0, fmt.Errorf("submit: submit encoder %d: %w", enc.Index, err)
	}

	d.Capability.CompletionCallback(sub, func() { d.retire(retire) })
	return sub, nil
}

// retire runs the completion policy: recycle fences, release disposed
// persistent resources, then (after the configured quiescence delay)
// reset the transient arena. Generation counters advance inside
// ReleaseDisposed and Cycle themselves.
func (d *Driver) retire(w RetireWork) {
	for _, fr := range w.Fences {
		fr.Pool.Release(fr.Stages, fr.Fence)
	}
	if w.Persistent != nil {
		w.Persistent.ReleaseDisposed()
	}
	if w.Transient == nil {
		return
	}
	if d.PurgeDelay <= 0 {
		w.Transient.Cycle()
		return
	}
	time.AfterFunc(d.PurgeDelay, w.Transient.Cycle)
}

func encoderKind(k graph.PassKind) backend.EncoderKind {
	switch k {
	case graph.PassDraw:
		return backend.EncoderDraw
	case graph.PassCompute:
		return backend.EncoderCompute
	case graph.PassBlit:
		return backend.EncoderBlit
	case graph.PassExternal:
		return backend.EncoderExternal
	case graph.PassAccelerationStructure:
		return backend.EncoderAccelerationStructure
	default:
		return backend.EncoderCompute
	}
}

func commandKindName(k graph.CommandKind) string {
	switch k {
	case graph.KindResidency:
		return "residency"
	case graph.KindBarrier:
		return "barrier"
	case graph.KindFenceWait:
		return "fence_wait"
	case graph.KindFenceUpdate:
		return "fence_update"
	default:
		return "unknown"
	}
}

func toBackendCommand(c graph.CompactedCommand) backend.CompactedCommand {
	resources := make([]uint64, len(c.Resources))
	for i, h := range c.Resources {
		resources[i] = uint64(h)
	}
	return backend.CompactedCommand{
		Kind:      commandKindName(c.Kind),
		Index:     c.Index,
		Before:    c.Order == graph.OrderBefore,
		Resources: resources,
	}
}
