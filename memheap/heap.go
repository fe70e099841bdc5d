// Package memheap implements the fixed-pool secure allocator described in
// the vault's core design: a single preallocated, non-swappable region is
// bump-allocated from the front, with freed blocks tracked in a
// size-keyed freelist so later allocations can reuse them. Every
// allocation and deallocation zeroes the memory it touches.
//
// The backing region is a memguard.LockedBuffer, which keeps the whole
// pool out of swap and away from core dumps for the lifetime of the Heap.
// Heap itself only manages offsets into that single buffer; it never
// grows, shrinks, or calls the platform allocator again after
// initialization.
package memheap

import (
	"sort"

	"github.com/awnumar/memguard"

	"github.com/jonathan-robertson/strongvault/vaulterr"
)

// Heap is a fixed-size, zero-on-free pool of bytes.
//
// Heap is not safe for concurrent use; callers serialize access (see
// SPEC_FULL.md §5 for the project-wide concurrency policy).
type Heap struct {
	region *memguard.LockedBuffer

	size  int
	front int // bump pointer: bytes [0, front) are in use or were reused from the freelist
	used  int // bytes currently handed out to callers

	// freed buckets free block offsets by their size, so an allocation of
	// a given size first checks for an exact match before scanning
	// ascending sizes up to the largest block ever freed.
	freed map[int][]int
}

// New creates a Heap sized for count blocks of maxBlockSize bytes plus
// additional bytes of headroom (e.g. for a fixed IV block).
func New(count, maxBlockSize, additional int) (*Heap, error) {
	if count <= 0 || maxBlockSize <= 0 {
		return nil, vaulterr.ErrSizeIsZero
	}

	total := count*maxBlockSize + additional
	region, err := memguard.NewBuffer(total)
	if err != nil {
		return nil, vaulterr.New(vaulterr.NoAvailableHeapMemory, err.Error())
	}

	return &Heap{
		region: region,
		size:   total,
		freed:  make(map[int][]int),
	}, nil
}

// Size returns the heap's total capacity in bytes.
func (h *Heap) Size() int { return h.size }

// AvailableMemory returns the number of bytes not currently allocated to a
// caller. It does not distinguish bump-front headroom from freed blocks.
func (h *Heap) AvailableMemory() int { return h.size - h.used }

// Alloc returns a zero-initialized slice of the given size backed by the
// heap's region, or ErrNoAvailableHeapMemory if no block is available.
// The returned slice aliases the heap's backing memory; callers must not
// retain it past a Free call for the same offset.
func (h *Heap) Alloc(size int) ([]byte, int, error) {
	if size <= 0 {
		return nil, 0, vaulterr.ErrSizeIsZero
	}

	if offset, ok := h.allocFromFreelist(size); ok {
		h.used += size
		return h.slice(offset, size), offset, nil
	}

	if h.size-h.front >= size {
		offset := h.front
		h.front += size
		h.used += size
		return h.slice(offset, size), offset, nil
	}

	return nil, 0, vaulterr.ErrNoAvailableHeapMemory
}

// Free zeroes the block at offset/size and returns it to the freelist.
// ErrBadPointer is returned if the block does not lie inside the region.
// Free does not track live allocations, so it does not detect a block
// that was never allocated at that exact offset/size or was already
// freed.
func (h *Heap) Free(offset, size int) error {
	if size <= 0 {
		return vaulterr.ErrSizeIsZero
	}
	if offset < 0 || offset+size > h.size {
		return vaulterr.ErrBadPointer
	}

	clear(h.slice(offset, size))
	h.freed[size] = append(h.freed[size], offset)
	h.used -= size
	return nil
}

// allocFromFreelist looks for an exact-size free block first, then the
// smallest free block strictly larger than size, ascending. When a
// larger block is split, the unused remainder at the tail of the block
// is returned to the freelist under its own size so it stays
// allocatable rather than being silently lost.
func (h *Heap) allocFromFreelist(size int) (int, bool) {
	if offsets, ok := h.freed[size]; ok && len(offsets) > 0 {
		offset := offsets[len(offsets)-1]
		h.freed[size] = offsets[:len(offsets)-1]
		if len(h.freed[size]) == 0 {
			delete(h.freed, size)
		}
		return offset, true
	}

	sizes := make([]int, 0, len(h.freed))
	for s := range h.freed {
		if s > size {
			sizes = append(sizes, s)
		}
	}
	if len(sizes) == 0 {
		return 0, false
	}
	sort.Ints(sizes)

	chosen := sizes[0]
	offsets := h.freed[chosen]
	offset := offsets[len(offsets)-1]
	h.freed[chosen] = offsets[:len(offsets)-1]
	if len(h.freed[chosen]) == 0 {
		delete(h.freed, chosen)
	}

	if remainder := chosen - size; remainder > 0 {
		h.freed[remainder] = append(h.freed[remainder], offset+size)
	}
	return offset, true
}

func (h *Heap) slice(offset, size int) []byte {
	return h.region.Bytes()[offset : offset+size]
}

// Destroy wipes and releases the entire region. The Heap must not be used
// afterward.
func (h *Heap) Destroy() {
	if h.region != nil {
		h.region.Destroy()
		h.region = nil
	}
	h.freed = nil
	h.size, h.front, h.used = 0, 0, 0
}
