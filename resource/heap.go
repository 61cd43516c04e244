package resource

import "sync"

// defaultMinBlockSize is the minimum allocation granularity the buddy
// allocator backing a heap will sub-divide down to.
const defaultMinBlockSize = 256

// Heap is a single backing memory allocation that sub-allocates buffers
// and textures placed on it. A resource placed on a heap borrows its
// lifetime from the heap: the heap must outlive every resource allocated
// from it.
type Heap struct {
	mu   sync.Mutex
	desc HeapDescriptor
	buddy *buddyAllocator
}

// NewHeap creates a heap of the requested size. The underlying buddy
// allocator rounds the size up to a power of two; MaxAvailableSize
// reflects the rounded capacity, not the requested one.
func NewHeap(desc HeapDescriptor) (*Heap, error) {
	if err := validateHeap(desc); err != nil {
		return nil, err
	}
	b, err := newBuddyAllocator(desc.Size, defaultMinBlockSize)
	if err != nil {
		return nil, err
	}
	return &Heap{desc: desc, buddy: b}, nil
}

// Alloc reserves a region at least size bytes, aligned to align (align
// must be a power of two no larger than the heap's minimum block size
// multiplied by a power of two; callers needing coarser alignment should
// request a correspondingly larger size).
func (h *Heap) Alloc(size, align uint64) (offset uint64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if align > size {
		size = align
	}
	return h.buddy.alloc(size)
}

// Free releases a previously allocated offset.
func (h *Heap) Free(offset uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buddy.free(offset)
}

// UsedSize returns bytes currently allocated from the heap.
func (h *Heap) UsedSize() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buddy.usedSize()
}

// CurrentAllocatedSize returns the heap's total backing size (rounded to
// a power of two by the allocator).
func (h *Heap) CurrentAllocatedSize() uint64 {
	return h.buddy.totalSize
}

// MaxAvailableSize returns the size of the largest block the heap could
// still satisfy for the given alignment.
func (h *Heap) MaxAvailableSize(alignment uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buddy.maxAvailable(alignment)
}

// Descriptor returns the heap's immutable descriptor.
func (h *Heap) Descriptor() HeapDescriptor { return h.desc }
