// Package genpass implements the deterministic password derivation
// algorithm of §4.8: a strong-hash byte stream is filtered through a
// recipe, retrying by dropping the first byte, shifting the rest left by
// one and filling the final slot with the next accepted hash byte, until
// every required character class is present or a safety budget is
// exhausted.
package genpass

import (
	"github.com/jonathan-robertson/strongvault/memheap"
	"github.com/jonathan-robertson/strongvault/recipe"
	"github.com/jonathan-robertson/strongvault/secbuf"
	"github.com/jonathan-robertson/strongvault/vaulterr"
)

// safetyBudget bounds the verify/retry loop (§4.8 step 4).
const safetyBudget = 10000

// Hasher produces the strong-hash stream this algorithm consumes and
// exposes the allocator its intermediate buffers should be drawn from.
// It is satisfied by *securestore.Store (kept as an interface here so
// genpass does not import securestore, avoiding a dependency cycle
// since securestore has no reason to depend on genpass).
type Hasher interface {
	StrongHash(data, out []byte) error
	Heap() *memheap.Heap
}

// Generate derives a password of exactly length bytes from
// strongMnemonic (already strong_secret||mnemonic, in that order) under
// rec, retrying internally until rec.Verified passes or the safety
// budget is exhausted (ErrUnableToMeetPasswordReqs). The hash stream and
// working password are held in h's heap for the duration and zeroed
// before returning; the final password is copied out into a plain
// buffer for the caller to use and zero in turn (the same boundary
// securestore.Dispense uses for its own output parameter).
func Generate(h Hasher, strongMnemonic []byte, rec *recipe.Recipe, hashSize, length int) ([]byte, error) {
	if length <= 0 {
		return nil, vaulterr.ErrSizeIsZero
	}

	heap := h.Heap()

	hashBuf, err := secbuf.Alloc(heap, hashSize)
	if err != nil {
		return nil, err
	}
	defer hashBuf.Destroy()
	hash := hashBuf.Bytes()

	if err := h.StrongHash(strongMnemonic, hash); err != nil {
		return nil, err
	}

	tmpBuf, err := secbuf.Alloc(heap, hashSize)
	if err != nil {
		return nil, err
	}
	defer tmpBuf.Destroy()
	tmp := tmpBuf.Bytes()

	pwBuf, err := secbuf.Alloc(heap, length)
	if err != nil {
		return nil, err
	}
	defer pwBuf.Destroy()
	password := pwBuf.Bytes()

	plen := 0
	pos := 0
	safety := safetyBudget

	for {
		for plen < length {
			for ; plen < length && pos < len(hash); pos++ {
				ch := absInt8(hash[pos])
				if rec.HasChar(ch) {
					password[plen] = ch
					plen++
				}
			}

			if pos >= len(hash) {
				copy(tmp, hash)
				if err := h.StrongHash(tmp, hash); err != nil {
					return nil, err
				}
				pos = 0
			}
		}

		if rec.Verified(password) {
			out := make([]byte, length)
			copy(out, password)
			return out, nil
		}

		safety--
		if safety < 0 {
			return nil, vaulterr.ErrUnableToMeetPasswordReqs
		}

		// §4.8 step 4 / DESIGN NOTES #2: shift the whole output left by
		// one and re-derive only the final byte, rather than rotating.
		plen = length - 1
		copy(password, password[1:])
		password[plen] = 0
	}
}

// absInt8 treats byte as a signed 8-bit value and returns its absolute
// value as a byte, pinning 0x80 ("abs(-128)") to 0 rather than leaving
// it as platform-defined (DESIGN NOTES #3).
func absInt8(b byte) byte {
	signed := int8(b)
	if signed == -128 {
		return 0
	}
	if signed < 0 {
		return byte(-signed)
	}
	return byte(signed)
}
