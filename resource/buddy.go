package resource

import (
	"errors"
	"math/bits"
)

// buddyAllocator implements the buddy memory allocation algorithm: memory
// is divided into power-of-2 blocks, split recursively to satisfy an
// allocation and merged back with its buddy on free.
//
// Time complexity: O(log n) for both allocate and free.
type buddyAllocator struct {
	totalSize    uint64
	minBlockSize uint64
	maxOrder     int

	freeLists   []map[uint64]struct{} // freeLists[order] -> set of offsets
	splitBlocks map[uint64]struct{}   // (order<<48)|offset -> split marker
	allocated   map[uint64]int        // offset -> order
}

var (
	errOutOfMemory    = errors.New("resource: heap out of memory")
	errInvalidSize    = errors.New("resource: invalid allocation size")
	errDoubleFree     = errors.New("resource: double free or invalid offset")
	errInvalidHeapCfg = errors.New("resource: invalid heap configuration")
)

func isPowerOfTwo(v uint64) bool { return v != 0 && v&(v-1) == 0 }

func nextPowerOfTwo(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	if isPowerOfTwo(v) {
		return v
	}
	return 1 << uint(64-bits.LeadingZeros64(v))
}

// newBuddyAllocator creates an allocator managing totalSize bytes in
// blocks no smaller than minBlockSize. Both are rounded up to powers of
// two, since buddy orders only make sense over power-of-two regions.
func newBuddyAllocator(totalSize, minBlockSize uint64) (*buddyAllocator, error) {
	if totalSize == 0 || minBlockSize == 0 || minBlockSize > totalSize {
		return nil, errInvalidHeapCfg
	}
	totalSize = nextPowerOfTwo(totalSize)
	minBlockSize = nextPowerOfTwo(minBlockSize)
	if minBlockSize > totalSize {
		minBlockSize = totalSize
	}

	maxOrder := bits.TrailingZeros64(totalSize / minBlockSize)
	a := &buddyAllocator{
		totalSize:    totalSize,
		minBlockSize: minBlockSize,
		maxOrder:     maxOrder,
		freeLists:    make([]map[uint64]struct{}, maxOrder+1),
		splitBlocks:  make(map[uint64]struct{}),
		allocated:    make(map[uint64]int),
	}
	for i := range a.freeLists {
		a.freeLists[i] = make(map[uint64]struct{})
	}
	a.freeLists[maxOrder][0] = struct{}{}
	return a, nil
}

func (a *buddyAllocator) orderFor(size uint64) int {
	blocks := (size + a.minBlockSize - 1) / a.minBlockSize
	blocks = nextPowerOfTwo(blocks)
	return bits.TrailingZeros64(blocks)
}

func (a *buddyAllocator) blockSize(order int) uint64 {
	return a.minBlockSize << uint(order)
}

func (a *buddyAllocator) splitKey(order int, offset uint64) uint64 {
	return uint64(order)<<48 | offset
}

// alloc reserves a block able to satisfy size (rounded up to a buddy
// order) and returns its offset within the managed region.
func (a *buddyAllocator) alloc(size uint64) (uint64, error) {
	if size == 0 || size > a.totalSize {
		return 0, errInvalidSize
	}
	order := a.orderFor(size)
	if order > a.maxOrder {
		return 0, errOutOfMemory
	}

	splitFrom := -1
	for o := order; o <= a.maxOrder; o++ {
		if len(a.freeLists[o]) > 0 {
			splitFrom = o
			break
		}
	}
	if splitFrom < 0 {
		return 0, errOutOfMemory
	}

	var offset uint64
	for o := range a.freeLists[splitFrom] {
		offset = o
		break
	}
	delete(a.freeLists[splitFrom], offset)

	for o := splitFrom; o > order; o-- {
		buddyOffset := offset + a.blockSize(o-1)
		a.freeLists[o-1][buddyOffset] = struct{}{}
		a.splitBlocks[a.splitKey(o, offset)] = struct{}{}
	}

	a.allocated[offset] = order
	return offset, nil
}

// free releases the block at offset, merging with its buddy where
// possible.
func (a *buddyAllocator) free(offset uint64) error {
	order, ok := a.allocated[offset]
	if !ok {
		return errDoubleFree
	}
	delete(a.allocated, offset)

	for order < a.maxOrder {
		buddyOffset := offset ^ a.blockSize(order)
		if _, free := a.freeLists[order][buddyOffset]; !free {
			break
		}
		delete(a.freeLists[order], buddyOffset)
		parentOffset := offset
		if buddyOffset < offset {
			parentOffset = buddyOffset
		}
		delete(a.splitBlocks, a.splitKey(order+1, parentOffset))
		offset = parentOffset
		order++
	}
	a.freeLists[order][offset] = struct{}{}
	return nil
}

// usedSize returns bytes currently allocated (rounded up to block size).
func (a *buddyAllocator) usedSize() uint64 {
	var used uint64
	for offset, order := range a.allocated {
		_ = offset
		used += a.blockSize(order)
	}
	return used
}

// maxAvailable returns the largest block size still allocatable, subject
// to alignment being a divisor of the block size (true for any
// power-of-two alignment <= minBlockSize, and for larger alignments the
// caller must round up order accordingly).
func (a *buddyAllocator) maxAvailable(alignment uint64) uint64 {
	for o := a.maxOrder; o >= 0; o-- {
		if len(a.freeLists[o]) == 0 {
			continue
		}
		size := a.blockSize(o)
		if size >= alignment {
			return size
		}
	}
	return 0
}
