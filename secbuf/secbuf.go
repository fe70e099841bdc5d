// Package secbuf implements SecretBytes: a byte range that is either
// owned (carved out of a memheap.Heap, zeroed and freed on destroy) or
// fixed (a view over caller-supplied memory, zeroed but never freed on
// destroy). A Buffer may be moved but is never implicitly copied.
package secbuf

import (
	"bytes"

	"github.com/jonathan-robertson/strongvault/memheap"
	"github.com/jonathan-robertson/strongvault/vaulterr"
)

// Buffer is a byte range with zero-on-destroy semantics.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	heap   *memheap.Heap // nil for fixed buffers
	offset int
	data   []byte // current view; nil after Move or Destroy

	fixed    bool
	released bool // true once ownership has moved elsewhere
}

// Alloc carves size bytes out of heap, zero-initialized.
func Alloc(heap *memheap.Heap, size int) (*Buffer, error) {
	data, offset, err := heap.Alloc(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{heap: heap, offset: offset, data: data}, nil
}

// Fixed wraps caller-owned memory. Destroy will zero it but never frees
// it back to any heap.
func Fixed(data []byte) *Buffer {
	return &Buffer{data: data, fixed: true}
}

// Len returns the current length of the buffer's view.
func (b *Buffer) Len() int {
	if b == nil || b.data == nil {
		return 0
	}
	return len(b.data)
}

// Fixed reports whether this buffer is a caller-owned view.
func (b *Buffer) Fixed() bool { return b.fixed }

// Bytes returns the mutable backing slice. Callers must not retain it
// past Destroy or Move.
func (b *Buffer) Bytes() []byte { return b.data }

// CopyFrom copies src into the buffer starting at offset, failing with
// ErrBadPointer if it would run past the buffer's length.
func (b *Buffer) CopyFrom(src []byte, offset int) error {
	if offset < 0 || offset+len(src) > len(b.data) {
		return vaulterr.ErrBadPointer
	}
	copy(b.data[offset:], src)
	return nil
}

// CopyTo copies the first n bytes of the buffer into dst, failing with
// ErrBadPointer if n exceeds the length of either.
func (b *Buffer) CopyTo(dst []byte, n int) error {
	if n > len(b.data) || n > len(dst) {
		return vaulterr.ErrBadPointer
	}
	copy(dst, b.data[:n])
	return nil
}

// Realloc resizes an owning buffer in place by reallocating from its
// heap and copying over the overlapping prefix. Fails on a fixed view.
func (b *Buffer) Realloc(size int) error {
	if b.fixed {
		return vaulterr.ErrMemoryIsFixed
	}

	fresh, offset, err := b.heap.Alloc(size)
	if err != nil {
		return err
	}
	copy(fresh, b.data)

	oldOffset, oldLen := b.offset, len(b.data)
	b.data, b.offset = fresh, offset
	return b.heap.Free(oldOffset, oldLen)
}

// Move transfers ownership of the buffer's storage to dst and empties
// the source. dst must be zero-valued (freshly constructed or already
// destroyed).
func (b *Buffer) Move(dst *Buffer) {
	*dst = *b
	b.data = nil
	b.released = true
}

// Zero overwrites the buffer's contents with zero bytes without
// releasing the underlying storage.
func (b *Buffer) Zero() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// Equal performs a byte-wise, size-checked comparison. It is NOT
// constant-time; callers must not use it to compare key material.
func (b *Buffer) Equal(other *Buffer) bool {
	if b.Len() != other.Len() {
		return false
	}
	return bytes.Equal(b.data, other.data)
}

// Destroy zeroes the buffer. Owning buffers additionally return their
// storage to the heap. Destroying an already-moved buffer is a no-op.
func (b *Buffer) Destroy() error {
	if b.released || b.data == nil {
		return nil
	}

	b.Zero()

	if !b.fixed {
		if err := b.heap.Free(b.offset, len(b.data)); err != nil {
			return err
		}
	}

	b.data = nil
	b.released = true
	return nil
}

// Released reports whether the buffer has already been moved or
// destroyed.
func (b *Buffer) Released() bool { return b.released }
