package resource

import (
	"sync"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/handle"
)

// AliasPair names two transient resources whose lifetimes do not
// overlap. The dependency matrix builder computes these; the transient
// registry honors them as allocation hints by giving Later the same
// offset as Earlier instead of bump-allocating fresh space.
type AliasPair struct {
	Earlier handle.Handle
	Later   handle.Handle
}

type transientEntry struct {
	kind             handle.Kind
	buffer           BufferDescriptor
	texture          TextureDescriptor
	size, align      uint64
	firstUseEncoder  uint32
	lastUseEncoder   uint32
	used             bool
	offsetAssigned   bool
	offset           uint64
	aliasesEarlier   bool
}

// TransientRegistry is a per-frame-slot arena: cheap bump allocation
// during recording, with the actual byte offsets resolved only after the
// dependency matrix builder has computed which resources may alias.
type TransientRegistry struct {
	mu         sync.Mutex
	backendCap backend.Capability
	frameSlot  uint8
	cycle      uint32 // bumped by Cycle; doubles as the handle generation
	entries    []transientEntry
	arena      *Heap
}

// NewTransientRegistry creates the registry for one in-flight frame slot,
// backed by an arena of arenaSize bytes.
func NewTransientRegistry(cap backend.Capability, frameSlot uint8, arenaSize uint64) (*TransientRegistry, error) {
	heap, err := NewHeap(HeapDescriptor{Size: arenaSize, StorageMode: backend.StoragePrivate})
	if err != nil {
		return nil, err
	}
	return &TransientRegistry{backendCap: cap, frameSlot: frameSlot, arena: heap}, nil
}

// DeclareBuffer registers a transient buffer's descriptor. No backing
// offset is assigned yet; it is resolved lazily, at AssignOffsets time.
func (r *TransientRegistry) DeclareBuffer(desc BufferDescriptor) (handle.Handle, error) {
	if err := validateBuffer(desc); err != nil {
		return 0, err
	}
	size, align := r.backendCap.SizeAndAlignmentForBuffer(backend.BufferDescriptor{
		Length: desc.Length, StorageMode: desc.StorageMode, CacheMode: desc.CacheMode, UsageHint: desc.UsageHint,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := uint32(len(r.entries))
	r.entries = append(r.entries, transientEntry{kind: handle.KindBuffer, buffer: desc, size: size, align: align})
	return handle.NewHandle(handle.KindBuffer, handle.RegistryTransient, r.frameSlot, idx, r.cycle), nil
}

// DeclareTexture registers a transient texture's descriptor.
func (r *TransientRegistry) DeclareTexture(desc TextureDescriptor) (handle.Handle, error) {
	if err := validateTexture(desc); err != nil {
		return 0, err
	}
	size, align := r.backendCap.SizeAndAlignmentForTexture(backend.TextureDescriptor{
		Type: desc.Type, PixelFormat: desc.PixelFormat, Width: desc.Width, Height: desc.Height,
		Depth: desc.Depth, MipLevels: desc.MipLevels, ArrayLength: desc.ArrayLength,
		SampleCount: desc.SampleCount, UsageHint: desc.UsageHint, StorageMode: desc.StorageMode,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := uint32(len(r.entries))
	r.entries = append(r.entries, transientEntry{kind: handle.KindTexture, texture: desc, size: size, align: align})
	return handle.NewHandle(handle.KindTexture, handle.RegistryTransient, r.frameSlot, idx, r.cycle), nil
}

func (r *TransientRegistry) lookup(h handle.Handle) (*transientEntry, error) {
	if h.Registry() != handle.RegistryTransient || h.FrameSlot() != r.frameSlot || h.Generation() != r.cycle {
		return nil, NewInvalidHandleError(h)
	}
	idx := h.Index()
	if int(idx) >= len(r.entries) {
		return nil, NewInvalidHandleError(h)
	}
	return &r.entries[idx], nil
}

// RecordUse extends [firstUseEncoder, lastUseEncoder] for h. The root
// package's CommitFrame calls it for every transient usage of a
// non-culled pass once encoders are assigned.
func (r *TransientRegistry) RecordUse(h handle.Handle, encoderIndex uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(h)
	if err != nil {
		return err
	}
	if !e.used {
		e.used = true
		e.firstUseEncoder = encoderIndex
		e.lastUseEncoder = encoderIndex
		return nil
	}
	if encoderIndex < e.firstUseEncoder {
		e.firstUseEncoder = encoderIndex
	}
	if encoderIndex > e.lastUseEncoder {
		e.lastUseEncoder = encoderIndex
	}
	return nil
}

// LifetimeInterval returns [firstUseEncoder, lastUseEncoder] for h, and
// whether h was used at all this frame (an unused transient resource
// never reaches AssignOffsets and is simply dropped at Cycle).
func (r *TransientRegistry) LifetimeInterval(h handle.Handle) (first, last uint32, used bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(h)
	if err != nil {
		return 0, 0, false, err
	}
	return e.firstUseEncoder, e.lastUseEncoder, e.used, nil
}

// AssignOffsets resolves byte offsets for every used, not-yet-assigned
// transient resource this frame: aliasPairs give "later" resources their
// "earlier" partner's offset; everything else bump-allocates fresh space
// from the arena. Must run after the dependency matrix has been built
// and before anything downstream needs concrete offsets.
func (r *TransientRegistry) AssignOffsets(aliasPairs []AliasPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	aliasOf := make(map[handle.Handle]handle.Handle, len(aliasPairs))
	for _, p := range aliasPairs {
		aliasOf[p.Later] = p.Earlier
	}

	// Assign earlier-of-pair entries (and any non-aliased entry) first so
	// a "later" lookup always finds its partner's offset already set.
	order := make([]uint32, 0, len(r.entries))
	deferred := make([]uint32, 0)
	for i := range r.entries {
		h := handle.NewHandle(r.entries[i].kind, handle.RegistryTransient, r.frameSlot, uint32(i), r.cycle)
		if _, isLater := aliasOf[h]; isLater {
			deferred = append(deferred, uint32(i))
			continue
		}
		order = append(order, uint32(i))
	}
	order = append(order, deferred...)

	for _, i := range order {
		e := &r.entries[i]
		if !e.used || e.offsetAssigned {
			continue
		}
		h := handle.NewHandle(e.kind, handle.RegistryTransient, r.frameSlot, i, r.cycle)
		if earlier, ok := aliasOf[h]; ok {
			earlierEntry, err := r.lookup(earlier)
			if err == nil && earlierEntry.offsetAssigned {
				e.offset = earlierEntry.offset
				e.offsetAssigned = true
				e.aliasesEarlier = true
				continue
			}
		}
		offset, err := r.arena.Alloc(e.size, e.align)
		if err != nil {
			return ErrOutOfMemory(err)
		}
		e.offset = offset
		e.offsetAssigned = true
	}
	return nil
}

// Size returns the byte size computed for h at declaration time, used by
// the Dependency Builder to size candidate alias pairs before offsets
// are resolved.
func (r *TransientRegistry) Size(h handle.Handle) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(h)
	if err != nil {
		return 0, err
	}
	return e.size, nil
}

// Offset returns the resolved arena offset for h. Only valid after
// AssignOffsets.
func (r *TransientRegistry) Offset(h handle.Handle) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookup(h)
	if err != nil {
		return 0, err
	}
	if !e.offsetAssigned {
		return 0, NewInvalidHandleError(h)
	}
	return e.offset, nil
}

// Cycle resets the arena for reuse after the command buffer that could
// reference it has completed. The generation bump means any handle
// minted before this call is provably stale afterward.
func (r *TransientRegistry) Cycle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = r.entries[:0]
	r.cycle++
	// Free every arena allocation by recreating the buddy allocator in
	// place; cheaper than walking individual offsets since the whole
	// frame's worth of transient memory is released at once.
	size := r.arena.CurrentAllocatedSize()
	fresh, _ := newBuddyAllocator(size, defaultMinBlockSize)
	r.arena.buddy = fresh
}

// FrameSlot returns which in-flight frame slot this registry serves.
func (r *TransientRegistry) FrameSlot() uint8 { return r.frameSlot }
