// Package cipherhandle implements the Cipher lifecycle state machine
// (§3, §4.4): Zeroed -> Prepared -> Ready -> Completed -> Zeroed. Only a
// Completed handle can encrypt/decrypt; each operation transiently
// re-imports the key from its exported blob, uses it, then discards the
// re-imported copy, shrinking the live-key window.
package cipherhandle

import (
	"github.com/jonathan-robertson/strongvault/memheap"
	"github.com/jonathan-robertson/strongvault/primitives"
	"github.com/jonathan-robertson/strongvault/secbuf"
	"github.com/jonathan-robertson/strongvault/vaulterr"
)

// State is one of the four lifecycle states in §3.
type State int

// Lifecycle states.
const (
	Zeroed State = iota
	Prepared
	Ready
	Completed
)

// Handle is a Cipher: an algorithm-key handle plus an exported key blob,
// moving through the four states above.
//
// Handle is not safe for concurrent use.
type Handle struct {
	adapter primitives.Adapter
	heap    *memheap.Heap

	state State
	key   *secbuf.Buffer // live key material; present in Prepared/Ready, allocated from heap
	blob  *secbuf.Buffer // exported key blob; present in Ready/Completed, caller-owned
}

// New constructs a Zeroed Handle bound to adapter, allocating its live
// key material (Prepare, and the transient reimport in WithKey) from
// heap so the most sensitive object in the system is never left in
// ordinary, swappable Go memory.
func New(adapter primitives.Adapter, heap *memheap.Heap) *Handle {
	return &Handle{adapter: adapter, heap: heap, state: Zeroed}
}

// Zeroed reports whether the handle is in the Zeroed state.
func (h *Handle) Zeroed() bool { return h.state == Zeroed }

// Prepared reports whether the handle is in the Prepared state.
func (h *Handle) Prepared() bool { return h.state == Prepared }

// Ready reports whether the handle is in the Ready state.
func (h *Handle) Ready() bool { return h.state == Ready }

// Completed reports whether the handle is in the Completed state.
func (h *Handle) Completed() bool { return h.state == Completed }

// Prepare bootstraps the algorithm key from secret when provided, or
// from a freshly randomized value otherwise. Only valid from Zeroed.
func (h *Handle) Prepare(secret []byte) error {
	if h.state != Zeroed {
		return vaulterr.ErrCipherNotInTheRightState
	}

	var key [primitives.KeySize]byte
	var err error
	if len(secret) > 0 {
		key, err = h.adapter.DeriveKey(secret)
	} else {
		var raw [16]byte
		if err = h.adapter.Randomize(raw[:]); err == nil {
			key, err = h.adapter.DeriveKey(raw[:])
		}
	}
	if err != nil {
		return err
	}

	buf, err := secbuf.Alloc(h.heap, primitives.KeySize)
	if err != nil {
		return err
	}
	if cerr := buf.CopyFrom(key[:], 0); cerr != nil {
		buf.Destroy()
		return cerr
	}
	for i := range key {
		key[i] = 0
	}

	h.key = buf
	h.state = Prepared
	return nil
}

// AssignBlob moves the handle to Ready, binding it to a caller-provided
// buffer that will receive the exported key blob on Complete.
func (h *Handle) AssignBlob(blob []byte) error {
	if h.state != Prepared {
		return vaulterr.ErrCipherNotInTheRightState
	}
	if len(blob) < primitives.KeySize {
		return vaulterr.ErrBufferTooSmall
	}

	h.blob = secbuf.Fixed(blob)
	h.state = Ready
	return nil
}

// Complete exports the key into the assigned blob and tears down the
// in-memory algorithm handle, moving to Completed.
func (h *Handle) Complete() error {
	if h.state != Ready {
		return vaulterr.ErrCipherNotInTheRightState
	}

	if err := h.blob.CopyFrom(h.key.Bytes(), 0); err != nil {
		return err
	}
	if err := h.key.Destroy(); err != nil {
		return err
	}
	h.key = nil
	h.state = Completed
	return nil
}

// Zero destroys any live key material and resets the handle to Zeroed.
// Valid from any state.
func (h *Handle) Zero() error {
	if h.key != nil {
		if err := h.key.Destroy(); err != nil {
			return err
		}
		h.key = nil
	}
	h.blob = nil
	h.state = Zeroed
	return nil
}

// WithKey re-imports the key material for a Completed handle (or uses
// the live key for a Prepared handle, per §4.5's allowed-states rule)
// and invokes fn with it. The re-imported copy, if any, is wiped before
// returning. Encrypt/decrypt paths in securestore use this to keep the
// live-key window as short as possible.
func (h *Handle) WithKey(fn func(key []byte) error) error {
	switch h.state {
	case Prepared:
		return fn(h.key.Bytes())
	case Completed:
		imported, err := secbuf.Alloc(h.heap, primitives.KeySize)
		if err != nil {
			return err
		}
		defer imported.Destroy()
		if err := imported.CopyFrom(h.blob.Bytes(), 0); err != nil {
			return err
		}
		return fn(imported.Bytes())
	default:
		return vaulterr.ErrCipherNotInTheRightState
	}
}
