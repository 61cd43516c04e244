package resource

import "testing"

func TestBuddyAllocator_AllocFreeReuse(t *testing.T) {
	a, err := newBuddyAllocator(1<<20, 256)
	if err != nil {
		t.Fatalf("newBuddyAllocator: %v", err)
	}

	off1, err := a.alloc(4096)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := a.free(off1); err != nil {
		t.Fatalf("free: %v", err)
	}

	off2, err := a.alloc(4096)
	if err != nil {
		t.Fatalf("alloc after free: %v", err)
	}
	if off2 != off1 {
		t.Fatalf("expected freed block to be reused, got %d want %d", off2, off1)
	}
}

func TestBuddyAllocator_OutOfMemory(t *testing.T) {
	a, _ := newBuddyAllocator(4096, 256)
	if _, err := a.alloc(4096); err != nil {
		t.Fatalf("first alloc should succeed: %v", err)
	}
	if _, err := a.alloc(256); err != errOutOfMemory {
		t.Fatalf("expected errOutOfMemory, got %v", err)
	}
}

func TestBuddyAllocator_DoubleFree(t *testing.T) {
	a, _ := newBuddyAllocator(4096, 256)
	off, _ := a.alloc(256)
	if err := a.free(off); err != nil {
		t.Fatalf("free: %v", err)
	}
	if err := a.free(off); err != errDoubleFree {
		t.Fatalf("expected errDoubleFree, got %v", err)
	}
}

func TestHeap_UsedSizeAndMaxAvailable(t *testing.T) {
	h, err := NewHeap(HeapDescriptor{Size: 1 << 20})
	if err != nil {
		t.Fatalf("NewHeap: %v", err)
	}
	off, err := h.Alloc(64<<10, 256)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if h.UsedSize() < 64<<10 {
		t.Fatalf("UsedSize too small: %d", h.UsedSize())
	}
	if h.MaxAvailableSize(256) == 0 {
		t.Fatalf("expected remaining capacity")
	}
	if err := h.Free(off); err != nil {
		t.Fatalf("Free: %v", err)
	}
}
