// Package primitives adapts the concrete cryptographic algorithms this
// system assumes are externally provided: AES-256 in CBC mode and
// SHA-512. It generalizes the teacher's ad hoc package-level
// Encrypt/Decrypt pair into the explicit key/IV adapter contract the
// vault's higher-level components depend on.
package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"io"

	"github.com/jonathan-robertson/strongvault/vaulterr"
)

const (
	// BlockSize is the AES block size in bytes.
	BlockSize = aes.BlockSize // 16

	// HashSize is the SHA-512 digest size in bytes.
	HashSize = sha512.Size // 64

	// KeySize is the AES-256 key size in bytes.
	KeySize = 32
)

// Adapter is the capability set any conforming crypto backend provides.
// strongvault ships exactly one implementation, Std; see SPEC_FULL.md
// Open Question 1 for why no second "pure" backend exists in Go.
type Adapter interface {
	BlockSize() int
	HashSize() int
	KeySize() int

	// Randomize fills buf with cryptographically strong random bytes.
	Randomize(buf []byte) error

	// Hash writes a digest of data into out, chaining SHA-512 blocks to
	// fill out when it is larger than HashSize, or truncating when
	// smaller.
	Hash(data, out []byte) error

	// Encrypt AES-256-CBC-encrypts plaintext (which must already be a
	// multiple of BlockSize) into ciphertext using key and iv. iv is not
	// modified or written back.
	Encrypt(key, iv, plaintext, ciphertext []byte) error

	// Decrypt is the inverse of Encrypt. On success, ciphertext is
	// zeroed.
	Decrypt(key, iv, ciphertext, plaintext []byte) error

	// DeriveKey turns a secret of any length >= 1 into a KeySize-byte
	// symmetric key: secrets at least KeySize long are truncated to
	// their first KeySize bytes; shorter secrets are stretched
	// deterministically via Hash. This is the adapter's PrepareKey
	// contract (§4.3) — it is NOT a password KDF (no iteration, no
	// salt) and must not be used as one.
	DeriveKey(secret []byte) ([KeySize]byte, error)
}

// Std is the standard-library-backed Adapter: crypto/aes, crypto/cipher,
// crypto/sha512, crypto/rand.
type Std struct{}

var _ Adapter = Std{}

// BlockSize implements Adapter.
func (Std) BlockSize() int { return BlockSize }

// HashSize implements Adapter.
func (Std) HashSize() int { return HashSize }

// KeySize implements Adapter.
func (Std) KeySize() int { return KeySize }

// Randomize implements Adapter.
func (Std) Randomize(buf []byte) error {
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return vaulterr.New(vaulterr.Unknown, "randomize: "+err.Error())
	}
	return nil
}

// Hash implements Adapter, chaining SHA-512 blocks per §4.3: out[0:64] =
// H(data); out[k:k+64] = H(out[k-64:k]) until out is filled, with any
// trailing remainder filled by hashing the prior block into scratch and
// copying the prefix. If out is smaller than one digest, the prefix of
// H(data) is copied.
func (Std) Hash(data, out []byte) error {
	if len(out) == 0 {
		return vaulterr.ErrSizeIsZero
	}

	first := sha512.Sum512(data)

	if len(out) <= HashSize {
		copy(out, first[:])
		return nil
	}

	copy(out[:HashSize], first[:])

	pos := HashSize
	prev := first
	for pos < len(out) {
		next := sha512.Sum512(prev[:])
		remaining := len(out) - pos
		if remaining >= HashSize {
			copy(out[pos:pos+HashSize], next[:])
			pos += HashSize
		} else {
			copy(out[pos:], next[:remaining])
			pos += remaining
		}
		prev = next
	}
	return nil
}

// Encrypt implements Adapter.
func (Std) Encrypt(key, iv, plaintext, ciphertext []byte) error {
	if len(key) != KeySize {
		return vaulterr.ErrBadPointer
	}
	if len(iv) != BlockSize {
		return vaulterr.ErrBadPointer
	}
	if len(plaintext)%BlockSize != 0 {
		return vaulterr.New(vaulterr.BadPointer, "plaintext is not a multiple of the block size")
	}
	if len(ciphertext) < len(plaintext) {
		return vaulterr.ErrBufferTooSmall
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return vaulterr.New(vaulterr.Unknown, err.Error())
	}

	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext[:len(plaintext)], plaintext)
	return nil
}

// Decrypt implements Adapter. On success ciphertext is zeroed.
func (Std) Decrypt(key, iv, ciphertext, plaintext []byte) error {
	if len(key) != KeySize {
		return vaulterr.ErrBadPointer
	}
	if len(iv) != BlockSize {
		return vaulterr.ErrBadPointer
	}
	if len(ciphertext)%BlockSize != 0 {
		return vaulterr.New(vaulterr.BadPointer, "ciphertext is not a multiple of the block size")
	}
	if len(plaintext) < len(ciphertext) {
		return vaulterr.ErrBufferTooSmall
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return vaulterr.New(vaulterr.Unknown, err.Error())
	}

	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext[:len(ciphertext)], ciphertext)

	for i := range ciphertext {
		ciphertext[i] = 0
	}
	return nil
}

// DeriveKey implements Adapter.
func (s Std) DeriveKey(secret []byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	if len(secret) == 0 {
		return key, vaulterr.ErrSizeIsZero
	}

	if len(secret) >= KeySize {
		copy(key[:], secret[:KeySize])
		return key, nil
	}

	var digest [HashSize]byte
	if err := s.Hash(secret, digest[:]); err != nil {
		return key, err
	}
	copy(key[:], digest[:KeySize])
	return key, nil
}
