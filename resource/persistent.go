package resource

import (
	"errors"
	"sync"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/handle"
)

// PurgeState is a backing object's purgeability. Transitions are staged
// with StagePurge and applied together by FlushPurgeability rather than
// taking effect immediately; the submission driver's frame-retire step
// does not call FlushPurgeability.
type PurgeState uint8

const (
	NonVolatile PurgeState = iota
	Volatile
	Empty
	KeepCurrent
)

type persistentEntry struct {
	generation   uint32
	allocated    bool
	disposed     bool // marked, awaiting safe release
	external     bool // imported; registry does not own the backing
	kind         handle.Kind
	buffer       BufferDescriptor
	texture      TextureDescriptor
	heapDesc     HeapDescriptor
	backing      backend.BackingID
	purgeState   PurgeState
	pendingPurge PurgeState
	hasPending   bool
}

// PersistentRegistry is a reader-writer-locked table holding every
// resource kind in a single slice, with a free list so disposed slots
// are reused without letting a stale Handle observe the new occupant:
// each reuse bumps the slot's generation, which makes the staleness
// observable as an InvalidHandleError.
type PersistentRegistry struct {
	mu       sync.RWMutex
	backend  backend.Capability
	slots    []persistentEntry
	freeList []uint32
	frameSlot uint8
}

// NewPersistentRegistry creates a registry that materializes resources
// through cap.
func NewPersistentRegistry(cap backend.Capability) *PersistentRegistry {
	return &PersistentRegistry{backend: cap}
}

func (r *PersistentRegistry) allocSlot() uint32 {
	if n := len(r.freeList); n > 0 {
		idx := r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		return idx
	}
	r.slots = append(r.slots, persistentEntry{})
	return uint32(len(r.slots) - 1)
}

// AllocateBuffer materializes a buffer through the backend and returns a
// handle identifying it. Materialization either fully succeeds or fully
// fails; no partial slot mutation is observable on error.
func (r *PersistentRegistry) AllocateBuffer(desc BufferDescriptor) (handle.Handle, error) {
	if err := validateBuffer(desc); err != nil {
		return 0, err
	}
	backing, err := r.backend.MaterializeBuffer(backend.BufferDescriptor{
		Length: desc.Length, StorageMode: desc.StorageMode, CacheMode: desc.CacheMode, UsageHint: desc.UsageHint,
	})
	if err != nil {
		return 0, ErrOutOfMemory(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.allocSlot()
	gen := r.slots[idx].generation
	r.slots[idx] = persistentEntry{generation: gen, allocated: true, kind: handle.KindBuffer, buffer: desc, backing: backing}
	return handle.NewHandle(handle.KindBuffer, handle.RegistryPersistent, 0, idx, gen), nil
}

// AllocateTexture materializes a texture through the backend.
func (r *PersistentRegistry) AllocateTexture(desc TextureDescriptor) (handle.Handle, error) {
	if err := validateTexture(desc); err != nil {
		return 0, err
	}
	backing, err := r.backend.MaterializeTexture(backend.TextureDescriptor{
		Type: desc.Type, PixelFormat: desc.PixelFormat, Width: desc.Width, Height: desc.Height,
		Depth: desc.Depth, MipLevels: desc.MipLevels, ArrayLength: desc.ArrayLength,
		SampleCount: desc.SampleCount, UsageHint: desc.UsageHint, StorageMode: desc.StorageMode,
	})
	if err != nil {
		return 0, ErrOutOfMemory(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.allocSlot()
	gen := r.slots[idx].generation
	r.slots[idx] = persistentEntry{generation: gen, allocated: true, kind: handle.KindTexture, texture: desc, backing: backing}
	return handle.NewHandle(handle.KindTexture, handle.RegistryPersistent, 0, idx, gen), nil
}

// AllocateHeap materializes a heap through the backend.
func (r *PersistentRegistry) AllocateHeap(desc HeapDescriptor) (handle.Handle, error) {
	if err := validateHeap(desc); err != nil {
		return 0, err
	}
	backing, err := r.backend.MaterializeHeap(backend.HeapDescriptor{Size: desc.Size, StorageMode: desc.StorageMode, CacheMode: desc.CacheMode})
	if err != nil {
		return 0, ErrOutOfMemory(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.allocSlot()
	gen := r.slots[idx].generation
	r.slots[idx] = persistentEntry{generation: gen, allocated: true, kind: handle.KindHeap, heapDesc: desc, backing: backing}
	return handle.NewHandle(handle.KindHeap, handle.RegistryPersistent, 0, idx, gen), nil
}

// ImportExternal wraps an externally-owned backend object without taking
// ownership of it: Dispose releases the slot but never calls
// backend.ReleaseBacking for an external entry.
func (r *PersistentRegistry) ImportExternal(kind handle.Kind, backing backend.BackingID) handle.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.allocSlot()
	gen := r.slots[idx].generation
	r.slots[idx] = persistentEntry{generation: gen, allocated: true, external: true, kind: kind, backing: backing}
	return handle.NewHandle(kind, handle.RegistryPersistent, 0, idx, gen)
}

func (r *PersistentRegistry) lookup(h handle.Handle) (*persistentEntry, error) {
	idx := h.Index()
	if int(idx) >= len(r.slots) {
		return nil, NewInvalidHandleError(h)
	}
	e := &r.slots[idx]
	if !e.allocated || e.generation != h.Generation() {
		return nil, NewInvalidHandleError(h)
	}
	return e, nil
}

// Backing returns the backend.BackingID for a live handle.
func (r *PersistentRegistry) Backing(h handle.Handle) (backend.BackingID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, err := r.lookup(h)
	if err != nil {
		return 0, err
	}
	return e.backing, nil
}

// ReplaceBacking atomically swaps the backing of h for newBacking,
// returning the previous backing. The caller attests that newBacking's
// descriptor matches the original via newDescriptorMatches; a mismatch
// is reported as ErrDescriptorMismatch rather than silently accepted.
func (r *PersistentRegistry) ReplaceBacking(h handle.Handle, newBacking backend.BackingID, newDescriptorMatches bool) (backend.BackingID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(h)
	if err != nil {
		return 0, err
	}
	if !newDescriptorMatches {
		return 0, ErrDescriptorMismatch
	}
	old := e.backing
	e.backing = newBacking
	return old, nil
}

// Dispose marks h for deferred release. The backing is not actually
// freed until ReleaseDisposed runs, which the submission driver calls
// only once it knows no in-flight command buffer can still reference it.
func (r *PersistentRegistry) Dispose(h handle.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(h)
	if err != nil {
		return err
	}
	e.disposed = true
	return nil
}

// ReleaseDisposed frees every slot marked disposed: releases owned
// backings through the backend (external imports are skipped), bumps
// the slot's generation so any surviving stale handle is now provably
// invalid, and returns the slot to the free list.
func (r *PersistentRegistry) ReleaseDisposed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		e := &r.slots[i]
		if !e.allocated || !e.disposed {
			continue
		}
		if !e.external {
			r.backend.ReleaseBacking(e.backing)
		}
		e.generation++
		e.allocated = false
		e.disposed = false
		r.freeList = append(r.freeList, uint32(i))
	}
}

// StagePurge records a purgeability transition to apply on the next
// FlushPurgeability call rather than taking effect immediately.
func (r *PersistentRegistry) StagePurge(h handle.Handle, to PurgeState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(h)
	if err != nil {
		return err
	}
	e.pendingPurge = to
	e.hasPending = true
	return nil
}

// FlushPurgeability applies every staged transition. An Empty ->
// NonVolatile transition means the driver discarded the contents while
// the backing was marked purgeable; that is reported back in the
// returned slice rather than as an error, since it is an expected
// outcome, not a validation bug.
func (r *PersistentRegistry) FlushPurgeability() (wasEmptied []handle.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		e := &r.slots[i]
		if !e.allocated || !e.hasPending {
			continue
		}
		if e.purgeState == Empty && e.pendingPurge == NonVolatile {
			wasEmptied = append(wasEmptied, handle.NewHandle(e.kind, handle.RegistryPersistent, 0, uint32(i), e.generation))
		}
		e.purgeState = e.pendingPurge
		e.hasPending = false
	}
	return wasEmptied
}

// ErrDescriptorMismatch is returned by ReplaceBacking when the caller
// reports that the new backing's descriptor differs from the original.
var ErrDescriptorMismatch = errors.New("resource: descriptor mismatch")

// ErrOutOfMemory wraps a backend materialization failure.
func ErrOutOfMemory(cause error) error {
	return &OutOfMemoryError{Cause: cause}
}

// OutOfMemoryError reports a failed materialization.
type OutOfMemoryError struct{ Cause error }

func (e *OutOfMemoryError) Error() string { return "resource: out of memory: " + e.Cause.Error() }
func (e *OutOfMemoryError) Unwrap() error { return e.Cause }

// InvalidHandleError reports a stale or unknown handle.
type InvalidHandleError struct{ Handle handle.Handle }

func (e *InvalidHandleError) Error() string { return e.Handle.String() + ": invalid handle" }

// NewInvalidHandleError builds an InvalidHandleError.
func NewInvalidHandleError(h handle.Handle) error { return &InvalidHandleError{Handle: h} }
