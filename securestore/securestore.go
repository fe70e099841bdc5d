// Package securestore implements the name-keyed encrypted-block map
// described in §4.5, plus the iterated strong-hash loop of §4.6 (which
// lives here because it needs the store's own allocator and primitives
// adapter).
package securestore

import (
	"sync"

	"github.com/jonathan-robertson/strongvault/cipherhandle"
	"github.com/jonathan-robertson/strongvault/memheap"
	"github.com/jonathan-robertson/strongvault/primitives"
	"github.com/jonathan-robertson/strongvault/secbuf"
	"github.com/jonathan-robertson/strongvault/vaulterr"
)

// strongHashRounds is the work-factor of the strong-hash loop: one
// initial hash plus this many rehash rounds.
const strongHashRounds = 10000

type entry struct {
	ciphertext   *secbuf.Buffer
	plaintextLen int
}

// Store is the SecureStore of §4.5: a single fixed-size allocator, a
// store-wide IV reused for every encryption, a name-keyed entry map, and
// an exposure counter.
//
// Store is not safe for concurrent use from more than one goroutine at a
// time for a single logical operation, though its internal map access is
// guarded by a mutex to make concurrent read-only lookups
// (e.g. DataSize alongside Store/Dispense) safe.
type Store struct {
	mu sync.RWMutex

	heap       *memheap.Heap
	primitives primitives.Adapter

	iv *secbuf.Buffer

	entries map[string]*entry

	exposure int
}

// Initialize allocates the store's pool and randomizes its IV. count and
// maxSize describe the block pool; see §4.5.
func Initialize(adapter primitives.Adapter, count, maxSize int) (*Store, error) {
	ivSize := adapter.BlockSize()
	heap, err := memheap.New(count+2, maxSize, ivSize)
	if err != nil {
		return nil, err
	}

	iv, err := secbuf.Alloc(heap, ivSize)
	if err != nil {
		heap.Destroy()
		return nil, err
	}
	if err := adapter.Randomize(iv.Bytes()); err != nil {
		heap.Destroy()
		return nil, err
	}

	return &Store{
		heap:       heap,
		primitives: adapter,
		iv:         iv,
		entries:    make(map[string]*entry),
	}, nil
}

// Reset destroys and re-initializes the store in place.
func (s *Store) Reset(count, maxSize int) error {
	s.Destroy()
	fresh, err := Initialize(s.primitives, count, maxSize)
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}

// Destroy zeroes the IV and every entry and releases the pool.
func (s *Store) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		e.ciphertext.Destroy()
	}
	s.entries = nil

	if s.iv != nil {
		s.iv.Destroy()
		s.iv = nil
	}
	if s.heap != nil {
		s.heap.Destroy()
		s.heap = nil
	}
	s.exposure = 0
}

// Heap exposes the store's backing allocator so callers that need a
// scratch buffer sharing the same pool (e.g. the vault's char-at-a-time
// strong-secret entry) don't have to keep a separate one.
func (s *Store) Heap() *memheap.Heap { return s.heap }

// AvailableMemory reports the pool's remaining capacity.
func (s *Store) AvailableMemory() int {
	if s.heap == nil {
		return 0
	}
	return s.heap.AvailableMemory()
}

// Exposure returns the current exposure count — the number of plaintext
// copies this store has handed to callers and not yet reclaimed.
func (s *Store) Exposure() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exposure
}

// DataSize returns the plaintext length stored under name, or 0 if
// absent.
func (s *Store) DataSize(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return 0
	}
	return e.plaintextLen
}

// Encrypt implements the §4.5 encryption path: plaintext is encrypted
// directly (or via a randomized-tail scratch buffer when ciphertext is
// larger, i.e. salted) into ciphertext under cipher and the store's IV.
// On success, plaintext is zeroed.
func (s *Store) Encrypt(cipher *cipherhandle.Handle, plaintext, ciphertext []byte) error {
	if !cipher.Prepared() && !cipher.Completed() {
		return vaulterr.ErrCipherNotInTheRightState
	}
	if len(ciphertext) < len(plaintext) {
		return vaulterr.ErrBufferTooSmall
	}

	var source []byte
	var scratch *secbuf.Buffer
	if len(ciphertext) > len(plaintext) {
		buf, err := secbuf.Alloc(s.heap, len(ciphertext))
		if err != nil {
			return err
		}
		scratch = buf
		if err := scratch.CopyFrom(plaintext, 0); err != nil {
			scratch.Destroy()
			return err
		}
		if err := s.primitives.Randomize(scratch.Bytes()[len(plaintext):]); err != nil {
			scratch.Destroy()
			return err
		}
		source = scratch.Bytes()
	} else {
		source = plaintext
	}

	err := cipher.WithKey(func(key []byte) error {
		return s.primitives.Encrypt(key, s.iv.Bytes(), source, ciphertext)
	})

	if scratch != nil {
		scratch.Destroy()
	}
	if err != nil {
		return err
	}

	for i := range plaintext {
		plaintext[i] = 0
	}
	return nil
}

// Decrypt implements the §4.5 decryption path: ciphertext is decrypted
// under cipher and the store's IV into plaintext. On success, ciphertext
// is zeroed (by the primitives layer) and the exposure counter is
// incremented — callers must eventually call Release to decrement it,
// whether the plaintext came from Decrypt directly or via Dispense
// (Dispense does not call Release itself).
func (s *Store) Decrypt(cipher *cipherhandle.Handle, ciphertext, plaintext []byte) error {
	if len(plaintext) < len(ciphertext) {
		return vaulterr.ErrBufferTooSmall
	}

	err := cipher.WithKey(func(key []byte) error {
		return s.primitives.Decrypt(key, s.iv.Bytes(), ciphertext, plaintext)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.exposure++
	s.mu.Unlock()
	return nil
}

// Release decrements the exposure counter after a caller is done with a
// plaintext buffer obtained from Decrypt/Dispense.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exposure > 0 {
		s.exposure--
	}
}

// StorePlaintext encrypts plaintext and inserts it under name, destroying
// any prior entry of the same name. storedSize may exceed len(plaintext)
// to enable the salted length-hiding path; 0 means len(plaintext). The
// stored size is then rounded up to a whole number of cipher blocks, and
// every byte past len(plaintext) is random salt, so only a block-aligned
// plaintext stored at its own length is stored without salt.
func (s *Store) StorePlaintext(name string, cipher *cipherhandle.Handle, plaintext []byte, storedSize int) error {
	if storedSize == 0 {
		storedSize = len(plaintext)
	}
	if rem := storedSize % s.primitives.BlockSize(); rem != 0 {
		storedSize += s.primitives.BlockSize() - rem
	}

	ciphertext, err := secbuf.Alloc(s.heap, storedSize)
	if err != nil {
		return err
	}

	if err := s.Encrypt(cipher, plaintext, ciphertext.Bytes()); err != nil {
		ciphertext.Destroy()
		return err
	}

	s.mu.Lock()
	if prior, ok := s.entries[name]; ok {
		prior.ciphertext.Destroy()
	}
	s.entries[name] = &entry{ciphertext: ciphertext, plaintextLen: len(plaintext)}
	s.mu.Unlock()

	return nil
}

// Dispense decrypts the named entry into out, destroys the entry, and
// zeroes cipher. out must be at least as large as the entry's stored
// (ciphertext) length.
func (s *Store) Dispense(name string, cipher *cipherhandle.Handle, out []byte) (int, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return 0, vaulterr.ErrDataNotFound
	}
	delete(s.entries, name)
	s.mu.Unlock()

	if len(out) < e.ciphertext.Len() {
		s.mu.Lock()
		s.entries[name] = e
		s.mu.Unlock()
		return 0, vaulterr.ErrBufferTooSmall
	}

	if err := s.Decrypt(cipher, e.ciphertext.Bytes(), out); err != nil {
		e.ciphertext.Destroy()
		return 0, err
	}

	n := e.plaintextLen
	e.ciphertext.Destroy()

	if err := cipher.Zero(); err != nil {
		return n, err
	}
	return n, nil
}

// DestroyEntry zeroes and frees the named entry without decrypting it.
func (s *Store) DestroyEntry(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		e.ciphertext.Destroy()
		delete(s.entries, name)
	}
}

// StrongHash implements §4.6: out = H(data), then 10000 rounds of
// out = H(H(out)), alternating between two buffers.
func (s *Store) StrongHash(data, out []byte) error {
	if err := s.primitives.Hash(data, out); err != nil {
		return err
	}

	tmp, err := secbuf.Alloc(s.heap, len(out))
	if err != nil {
		return err
	}
	defer tmp.Destroy()

	for i := 0; i < strongHashRounds; i++ {
		if err := s.primitives.Hash(out, tmp.Bytes()); err != nil {
			return err
		}
		if err := s.primitives.Hash(tmp.Bytes(), out); err != nil {
			return err
		}
	}
	return nil
}
