// Package noop implements backend.Capability with no real GPU calls. It
// exists for tests and for exercising the render graph core without a
// concrete graphics API.
package noop

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rendergraph/backend"
)

// Capability is a backend.Capability that materializes nothing: every
// resource gets a fresh synthetic BackingID and every size/alignment
// query returns a deterministic, plausible value.
type Capability struct {
	mu          sync.Mutex
	nextBacking uint64
	released    map[backend.BackingID]bool
	tileBased   bool
	unified     bool

	nextFence atomic.Uint64
	nextSub   atomic.Uint64
	callbacks map[backend.SubmissionID][]func()
}

// New creates a noop capability. tileBased and unified let tests exercise
// branches that are gated on the backend's own reported capabilities
// rather than on a hardcoded platform constant.
func New(tileBased, unified bool) *Capability {
	return &Capability{
		released:  make(map[backend.BackingID]bool),
		tileBased: tileBased,
		unified:   unified,
		callbacks: make(map[backend.SubmissionID][]func()),
	}
}

func (c *Capability) alloc() backend.BackingID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextBacking++
	return backend.BackingID(c.nextBacking)
}

func (c *Capability) MaterializeBuffer(backend.BufferDescriptor) (backend.BackingID, error) {
	return c.alloc(), nil
}

func (c *Capability) MaterializeTexture(backend.TextureDescriptor) (backend.BackingID, error) {
	return c.alloc(), nil
}

func (c *Capability) MaterializeHeap(backend.HeapDescriptor) (backend.BackingID, error) {
	return c.alloc(), nil
}

func (c *Capability) ReleaseBacking(id backend.BackingID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released[id] = true
}

// Released reports whether id has been released, for test assertions.
func (c *Capability) Released(id backend.BackingID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released[id]
}

func (c *Capability) SizeAndAlignmentForBuffer(desc backend.BufferDescriptor) (uint64, uint64) {
	return desc.Length, 256
}

func (c *Capability) SizeAndAlignmentForTexture(desc backend.TextureDescriptor) (uint64, uint64) {
	bytesPerPixel := uint64(4)
	size := uint64(desc.Width) * uint64(desc.Height) * uint64(desc.Depth) * bytesPerPixel
	if desc.ArrayLength > 0 {
		size *= uint64(desc.ArrayLength)
	}
	return size, 512
}

func (c *Capability) SupportsPixelFormat(backend.PixelFormat, backend.UsageHint) bool { return true }
func (c *Capability) HasUnifiedMemory() bool                                         { return c.unified }
func (c *Capability) SupportsMemorylessAttachments() bool                            { return c.tileBased }
func (c *Capability) IsTileBased() bool                                              { return c.tileBased }

func (c *Capability) MakeQueue(backend.QueueSpec) backend.QueueID { return 0 }

func (c *Capability) MakeSyncEvent(backend.QueueID) backend.FenceID {
	return backend.FenceID(c.nextFence.Add(1))
}

func (c *Capability) EncodePass(kind backend.EncoderKind, passIDs []uint32, commands []backend.CompactedCommand) (backend.CommandBufferID, error) {
	return backend.CommandBufferID(len(passIDs)<<8 | len(commands)), nil
}

func (c *Capability) Submit(cb backend.CommandBufferID, waitFences, signalFences []backend.FenceID) (backend.SubmissionID, error) {
	return backend.SubmissionID(c.nextSub.Add(1)), nil
}

// CompletionCallback stores fn; call RunCompletions to fire it
// synchronously (tests drive frame retirement explicitly rather than
// waiting on a real GPU fence).
func (c *Capability) CompletionCallback(sub backend.SubmissionID, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks[sub] = append(c.callbacks[sub], fn)
}

// RunCompletions fires every callback registered for sub and forgets them.
func (c *Capability) RunCompletions(sub backend.SubmissionID) {
	c.mu.Lock()
	fns := c.callbacks[sub]
	delete(c.callbacks, sub)
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// RunAllCompletions fires every callback registered for every submission
// made so far, in submission order.
func (c *Capability) RunAllCompletions() {
	c.mu.Lock()
	subs := make([]backend.SubmissionID, 0, len(c.callbacks))
	for sub := range c.callbacks {
		subs = append(subs, sub)
	}
	c.mu.Unlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i] < subs[j] })
	for _, sub := range subs {
		c.RunCompletions(sub)
	}
}

// NextSubmissionCount returns how many submissions have been made so
// far, for test assertions.
func (c *Capability) NextSubmissionCount() uint64 {
	return c.nextSub.Load()
}

var _ backend.Capability = (*Capability)(nil)
