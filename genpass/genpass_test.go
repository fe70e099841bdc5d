package genpass_test

import (
	"testing"

	"github.com/jonathan-robertson/strongvault/genpass"
	"github.com/jonathan-robertson/strongvault/memheap"
	"github.com/jonathan-robertson/strongvault/primitives"
	"github.com/jonathan-robertson/strongvault/recipe"
	"github.com/jonathan-robertson/strongvault/securestore"
)

// allSupportedSpecials mirrors the original implementation's
// OSP_RECIPE_ALL_SUPPORTED_SPECIALS constant, which the pinned password
// fixtures below were generated against.
const allSupportedSpecials = "!@#$%^&*()_-+=[]{};:,.<>/?`~\\'\""

func alphanumericSpecialsRecipe() *recipe.Recipe {
	r := recipe.New()
	r.AddFlags(recipe.Numeric | recipe.Lowercase | recipe.Uppercase)
	r.SetSpecials(allSupportedSpecials)
	return r
}

func TestGeneratePasswordFixtures(t *testing.T) {
	s, err := securestore.Initialize(primitives.Std{}, 4, 128)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Destroy()

	strongSecret := []byte("This is a password. Just a stinkin password.")

	cases := []struct {
		mnemonic string
		want     string
	}{
		{"password", "KF>DQr}Q"},
		{"secret", "\\G8?eY2#"},
	}

	for _, c := range cases {
		mnemonic := append(append([]byte(nil), strongSecret...), []byte(c.mnemonic)...)
		got, err := genpass.Generate(s, mnemonic, alphanumericSpecialsRecipe(), primitives.HashSize, 8)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != c.want {
			t.Errorf("mnemonic %q: got %q, want %q", c.mnemonic, got, c.want)
		}
	}
}

func TestGenerateProducesExactLengthAndVerifiedOutput(t *testing.T) {
	s, err := securestore.Initialize(primitives.Std{}, 4, 128)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Destroy()

	rec := recipe.New()
	rec.AddFlags(recipe.Numeric | recipe.Lowercase | recipe.Uppercase |
		recipe.NumericRequired | recipe.LowercaseRequired | recipe.UppercaseRequired)

	got, err := genpass.Generate(s, []byte("any strong mnemonic at all"), rec, primitives.HashSize, 24)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 24 {
		t.Fatalf("length = %d, want 24", len(got))
	}
	for _, ch := range got {
		if !rec.HasChar(ch) {
			t.Fatalf("character %q not allowed by recipe", ch)
		}
	}
	if !rec.Verified(got) {
		t.Fatal("expected generated password to satisfy Verified")
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	s, err := securestore.Initialize(primitives.Std{}, 4, 128)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Destroy()

	rec := alphanumericSpecialsRecipe()
	mnemonic := []byte("deterministic input, same every time")

	a, err := genpass.Generate(s, append([]byte(nil), mnemonic...), rec, primitives.HashSize, 12)
	if err != nil {
		t.Fatal(err)
	}
	b, err := genpass.Generate(s, append([]byte(nil), mnemonic...), rec, primitives.HashSize, 12)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected deterministic output, got %q and %q", a, b)
	}
}

func TestGenerateRejectsZeroLength(t *testing.T) {
	s, err := securestore.Initialize(primitives.Std{}, 4, 128)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Destroy()

	if _, err := genpass.Generate(s, []byte("x"), recipe.New(), primitives.HashSize, 0); err == nil {
		t.Fatal("expected an error for zero length")
	}
}

// failingHasher lets the error path out of Generate be exercised without
// driving real AES/SHA-512 work, standing in for securestore.Store.
type failingHasher struct {
	err  error
	heap *memheap.Heap
}

func (f failingHasher) StrongHash(data, out []byte) error { return f.err }
func (f failingHasher) Heap() *memheap.Heap               { return f.heap }

func TestGeneratePropagatesHasherError(t *testing.T) {
	heap, err := memheap.New(4, primitives.HashSize, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer heap.Destroy()

	boom := &genpassBoom{}
	if _, err := genpass.Generate(failingHasher{err: boom, heap: heap}, []byte("x"), recipe.New(), primitives.HashSize, 4); err != boom {
		t.Fatalf("expected Generate to propagate the hasher's error unchanged, got %v", err)
	}
}

type genpassBoom struct{}

func (*genpassBoom) Error() string { return "boom" }
