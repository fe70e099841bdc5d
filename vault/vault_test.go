package vault_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan-robertson/strongvault/recipe"
	"github.com/jonathan-robertson/strongvault/vault"
)

func spacedSeparatorRecipe() *recipe.Recipe {
	r := recipe.New()
	r.SetSeparator(' ')
	return r
}

func TestFormatWithSeparatorsFixtures(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"333333", "333 333"},
		{"44444444", "4444 4444"},
		{"888888888888888888888888", "88888888 88888888 88888888"},
	}

	rec := spacedSeparatorRecipe()
	for _, c := range cases {
		got := vault.FormatWithSeparators(c.in, rec, 0)
		assert.Equal(t, c.want, got, "FormatWithSeparators(%q)", c.in)
	}
}

func TestFormatWithSeparatorsWidthWraps(t *testing.T) {
	rec := spacedSeparatorRecipe()
	got := vault.FormatWithSeparators("777777777777777777777", rec, 17)
	want := "7777777 7777777\n7777777"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFormatWithSeparatorsCustomSeparator(t *testing.T) {
	rec := recipe.New()
	rec.SetSeparator('-')
	got := vault.FormatWithSeparators("333333", rec, 0)
	if got != "333-333" {
		t.Fatalf("got %q, want %q", got, "333-333")
	}
}

func TestFormatWithSeparatorsNoSeparatorReturnsUnchanged(t *testing.T) {
	rec := recipe.New()
	got := vault.FormatWithSeparators("333333", rec, 0)
	if got != "333333" {
		t.Fatalf("expected unchanged password without a separator, got %q", got)
	}
}

func TestManagerStrongPasswordEntryAndGenerate(t *testing.T) {
	m, err := vault.New(vault.DefaultConfig())
	require.NoError(t, err)
	defer m.Destroy()

	cipher := m.NewCipher()
	require.NoError(t, cipher.Prepare([]byte("a fixed secret for this test")))

	strongSecret := "This is a password. Just a stinkin password."
	require.NoError(t, m.StartStrongPasswordEntry(len(strongSecret)))
	for i := 0; i < len(strongSecret); i++ {
		require.NoError(t, m.PutStrongPasswordChar(strongSecret[i]))
	}
	require.NoError(t, m.FinishStrongPasswordEntry("site", cipher))

	rec := recipe.New()
	rec.AddFlags(recipe.Numeric | recipe.Lowercase | recipe.Uppercase)
	rec.SetSpecials("!@#$%^&*()_-+=[]{};:,.<>/?`~\\'\"")

	cipher2 := m.NewCipher()
	require.NoError(t, cipher2.Prepare([]byte("a fixed secret for this test")))

	password, err := m.GeneratePassword("site", "password", cipher2, rec, 8)
	require.NoError(t, err)
	assert.Len(t, password, 8)
	assert.Equal(t, 0, m.Exposure())
	assert.Equal(t, len(strongSecret), m.DataSize("site"),
		"expected the strong secret to be restored after generation")
}

func TestPutStrongPasswordCharBackspace(t *testing.T) {
	m, err := vault.New(vault.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Destroy()

	if err := m.StartStrongPasswordEntry(4); err != nil {
		t.Fatal(err)
	}
	if err := m.PutStrongPasswordChar('a'); err != nil {
		t.Fatal(err)
	}
	if err := m.PutStrongPasswordChar('b'); err != nil {
		t.Fatal(err)
	}
	if err := m.PutStrongPasswordChar('\b'); err != nil {
		t.Fatal(err)
	}
	if err := m.PutStrongPasswordChar('c'); err != nil {
		t.Fatal(err)
	}

	cipher := m.NewCipher()
	if err := cipher.Prepare([]byte("backspace test secret")); err != nil {
		t.Fatal(err)
	}
	if err := m.FinishStrongPasswordEntry("entry", cipher); err != nil {
		t.Fatal(err)
	}
	if got := m.DataSize("entry"); got != 2 {
		t.Fatalf("data size = %d, want 2 (\"ac\")", got)
	}
}

func TestAbortStrongPasswordEntryDiscardsWithoutStoring(t *testing.T) {
	m, err := vault.New(vault.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Destroy()

	if err := m.StartStrongPasswordEntry(4); err != nil {
		t.Fatal(err)
	}
	if err := m.PutStrongPasswordChar('x'); err != nil {
		t.Fatal(err)
	}
	if err := m.AbortStrongPasswordEntry(); err != nil {
		t.Fatal(err)
	}

	if err := m.StartStrongPasswordEntry(4); err != nil {
		t.Fatal("expected a new entry to be startable after abort:", err)
	}
}
