// Package vault is the Password Manager façade (§4.9): it owns a single
// SecureStore, exposes character-at-a-time strong-secret entry, and
// orchestrates password generation end to end.
package vault

import (
	"log"
	"strings"

	"github.com/jonathan-robertson/strongvault/cipherhandle"
	"github.com/jonathan-robertson/strongvault/genpass"
	"github.com/jonathan-robertson/strongvault/primitives"
	"github.com/jonathan-robertson/strongvault/recipe"
	"github.com/jonathan-robertson/strongvault/secbuf"
	"github.com/jonathan-robertson/strongvault/securestore"
	"github.com/jonathan-robertson/strongvault/vaulterr"
)

// Default pool sizing, analogous to the teacher's service.Configuration
// defaults.
const (
	DefaultPoolBlockCount = 8
	DefaultMaxBlockSize   = 4096
)

// Config sizes the Manager's underlying SecureStore pool.
type Config struct {
	PoolBlockCount int
	MaxBlockSize   int
}

// DefaultConfig returns a Config sized for typical interactive use.
func DefaultConfig() Config {
	return Config{PoolBlockCount: DefaultPoolBlockCount, MaxBlockSize: DefaultMaxBlockSize}
}

// Manager is the Password Manager façade of §4.9.
//
// Manager is not safe for concurrent use; see SPEC_FULL.md §5.
type Manager struct {
	store      *securestore.Store
	primitives primitives.Adapter

	entry    *secbuf.Buffer // strong-secret entry scratch buffer, present while Start..Finish/Abort is in progress
	entryLen int
}

// New initializes a Manager and its SecureStore per cfg.
func New(cfg Config) (*Manager, error) {
	adapter := primitives.Std{}
	store, err := securestore.Initialize(adapter, cfg.PoolBlockCount, cfg.MaxBlockSize)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, primitives: adapter}, nil
}

// Destroy tears down the Manager's store (and any in-progress strong
// secret entry).
func (m *Manager) Destroy() {
	if m.entry != nil {
		if err := m.entry.Destroy(); err != nil {
			log.Println(err) // TODO: use more permanent logging solution
		}
		m.entry = nil
	}
	if m.store != nil {
		m.store.Destroy()
	}
}

// AvailableMemory reports the store's remaining pool capacity.
func (m *Manager) AvailableMemory() int { return m.store.AvailableMemory() }

// Exposure returns the store's current exposure count.
func (m *Manager) Exposure() int { return m.store.Exposure() }

// NewCipher returns a fresh Zeroed cipher handle bound to the manager's
// primitives adapter, backed by the store's own heap.
func (m *Manager) NewCipher() *cipherhandle.Handle { return cipherhandle.New(m.primitives, m.store.Heap()) }

// Store encrypts data under cipher and stores it by name, with optional
// salted (length-hiding) storage when storedSize > len(data).
func (m *Manager) Store(name string, cipher *cipherhandle.Handle, data []byte, storedSize int) error {
	return m.store.StorePlaintext(name, cipher, data, storedSize)
}

// Dispense decrypts the named entry into out and destroys the entry,
// zeroing cipher. The returned plaintext length may be less than
// len(out); callers must call Release once done with out.
func (m *Manager) Dispense(name string, cipher *cipherhandle.Handle, out []byte) (int, error) {
	return m.store.Dispense(name, cipher, out)
}

// Release decrements the exposure counter for a plaintext buffer
// obtained from Dispense.
func (m *Manager) Release() { m.store.Release() }

// DataSize returns the plaintext length stored under name, or 0.
func (m *Manager) DataSize(name string) int { return m.store.DataSize(name) }

// StartStrongPasswordEntry allocates a char-at-a-time entry scratch
// buffer of the given capacity.
func (m *Manager) StartStrongPasswordEntry(capacity int) error {
	if m.entry != nil {
		return vaulterr.ErrStrongPasswordEntryAlreadyStarted
	}
	if capacity <= 0 {
		return vaulterr.ErrSizeIsZero
	}

	buf, err := secbuf.Alloc(m.store.Heap(), capacity)
	if err != nil {
		return err
	}
	m.entry = buf
	m.entryLen = 0
	return nil
}

// PutStrongPasswordChar appends ch to the in-progress entry, or erases
// the last character when ch is '\b'.
func (m *Manager) PutStrongPasswordChar(ch byte) error {
	if m.entry == nil {
		return vaulterr.ErrStrongPasswordEntryNotStarted
	}

	if ch != '\b' {
		if m.entryLen >= m.entry.Len() {
			return vaulterr.ErrStrongPasswordEntryFull
		}
		m.entry.Bytes()[m.entryLen] = ch
		m.entryLen++
		return nil
	}

	if m.entryLen > 0 {
		m.entryLen--
		m.entry.Bytes()[m.entryLen] = 0
	}
	return nil
}

// FinishStrongPasswordEntry stores the entered secret under name using
// cipher and releases the scratch buffer.
func (m *Manager) FinishStrongPasswordEntry(name string, cipher *cipherhandle.Handle) error {
	if m.entry == nil {
		return vaulterr.ErrStrongPasswordEntryNotStarted
	}

	data := append([]byte(nil), m.entry.Bytes()[:m.entryLen]...)
	err := m.store.StorePlaintext(name, cipher, data, 0)

	for i := range data {
		data[i] = 0
	}
	m.entry.Destroy()
	m.entry = nil
	m.entryLen = 0
	return err
}

// AbortStrongPasswordEntry discards the in-progress entry without
// storing it.
func (m *Manager) AbortStrongPasswordEntry() error {
	if m.entry == nil {
		return vaulterr.ErrStrongPasswordEntryNotStarted
	}
	err := m.entry.Destroy()
	m.entry = nil
	m.entryLen = 0
	return err
}

// WithStrongSecret dispenses the named strong secret, invokes fn with
// its plaintext bytes, and always re-stores it under a fresh cipher
// before returning — even if fn returns an error. This supplements the
// distilled spec per original_source's ShowStrongPassword pattern (see
// SPEC_FULL.md "Supplemented Features"): Go's defer expresses the
// guaranteed restore more directly than the original's manual
// Dispense/Restore pairing.
func (m *Manager) WithStrongSecret(name string, cipher *cipherhandle.Handle, fn func(secret []byte) error) error {
	size := m.store.DataSize(name)
	if size == 0 {
		return vaulterr.ErrNoStrongPasswordStored
	}

	// Dispense needs room for the whole block-aligned ciphertext, not just
	// the plaintext length DataSize reports.
	bs := m.primitives.BlockSize()
	buf := make([]byte, (size+bs-1)/bs*bs)
	n, err := m.store.Dispense(name, cipher, buf)
	if err != nil {
		return err
	}
	defer func() {
		for i := range buf {
			buf[i] = 0
		}
	}()
	defer m.store.Release()

	fnErr := fn(buf[:n])

	fresh := m.NewCipher()
	if err := fresh.Prepare(nil); err != nil {
		if fnErr == nil {
			fnErr = err
		}
		return fnErr
	}
	if err := m.store.StorePlaintext(name, fresh, buf[:n], 0); err != nil {
		if fnErr == nil {
			fnErr = err
		}
	}
	return fnErr
}

// GeneratePassword dispenses the named strong secret, combines it with
// mnemonic (strong secret first, per §4.8), derives a password of
// length bytes satisfying rec, and re-stores the strong secret under a
// fresh cipher before returning.
func (m *Manager) GeneratePassword(name, mnemonic string, cipher *cipherhandle.Handle, rec *recipe.Recipe, length int) ([]byte, error) {
	var password []byte
	err := m.WithStrongSecret(name, cipher, func(secret []byte) error {
		strongMnemonic := make([]byte, len(secret)+len(mnemonic))
		copy(strongMnemonic, secret)
		copy(strongMnemonic[len(secret):], mnemonic)
		defer func() {
			for i := range strongMnemonic {
				strongMnemonic[i] = 0
			}
		}()

		pw, genErr := genpass.Generate(m.store, strongMnemonic, rec, m.primitives.HashSize(), length)
		if genErr != nil {
			return genErr
		}
		password = pw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return password, nil
}

// FormatWithSeparators splits password into evenly sized blocks joined
// by the recipe's separator, wrapping to a new line whenever the next
// block (plus a lookahead for its own trailing separator) would push the
// current line past width (0 means unlimited, i.e. the whole formatted
// string fits on one line). This is a line-for-line port of
// original_source's AddSeperators/addPer, including its look-ahead
// line-wrap decision; see SPEC_FULL.md "Supplemented Features".
func FormatWithSeparators(password string, rec *recipe.Recipe, width int) string {
	sep, ok := rec.Separator()
	n := len(password)

	blocks := separatedBlocksNeeded(n)
	if !ok || blocks <= 1 {
		return password
	}

	slen := n + blocks - 1
	max := width
	if max <= 0 {
		max = slen
	}

	block := n / blocks
	remainder := n % blocks

	var per int
	if remainder > 0 {
		per = blocks / remainder
		if blocks < 2*remainder {
			per++
		}
	}

	var out strings.Builder
	pos := 0
	lineLen := 0
	b := 0

	for i := 0; i < blocks-1; i++ {
		out.WriteString(password[pos : pos+block])
		pos += block
		lineLen += block

		if addPer(b, blocks, per, remainder) {
			out.WriteByte(password[pos])
			pos++
			lineLen++
			remainder--
		}

		next := block
		if addPer(b+1, blocks, per, remainder) {
			next++
		}
		if i < blocks-2 {
			next++
		}

		fits := lineLen+next <= max
		lineLen++
		if fits {
			out.WriteRune(sep)
		} else {
			out.WriteByte('\n')
			if remainder > 0 {
				per = (blocks - b) / remainder
				if blocks < 2*remainder {
					per++
				}
			}
			lineLen = 0
			b = -1
		}
		b++
	}

	out.WriteString(password[pos:n])
	return out.String()
}

// separatedBlocksNeeded picks the block count for a password of length n
// per original_source's search order: passwords under 6 characters never
// get separators; otherwise try divisors 5, 4, 3, else ceil(n/5), and if
// that yields more than 4 blocks retry the same search against 8, 7, 6, 5.
func separatedBlocksNeeded(n int) int {
	if n < 6 {
		return 1
	}
	blocks := pickDivisor(n, []int{5, 4, 3})
	if blocks > 4 {
		blocks = pickDivisor(n, []int{8, 7, 6, 5})
	}
	return blocks
}

func pickDivisor(n int, divisors []int) int {
	for _, d := range divisors {
		if n%d == 0 {
			return n / d
		}
	}
	return n/5 + 1
}

// addPer reports whether the block boundary at b (0-based, out of
// blocks total) should absorb one of the remainder's extra characters:
// either it falls on every per-th boundary, or it is one of the final
// remainder boundaries. Ported from original_source's addPer.
func addPer(b, blocks, per, remainder int) bool {
	if per != 0 && (b+1)%per == 0 {
		return true
	}
	return remainder != 0 && blocks-b <= remainder
}
