package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/awnumar/memguard"

	"github.com/jonathan-robertson/strongvault/recipe"
	"github.com/jonathan-robertson/strongvault/vault"
)

func main() {
	// Tell memguard to listen out for interrupts, and cleanup in case of one.
	memguard.CatchInterrupt(func() {
		fmt.Println("Interrupt signal received. Exiting...")
	})
	// Make sure to destroy all LockedBuffers when returning.
	defer memguard.DestroyAll()

	m, err := vault.New(vault.DefaultConfig())
	if err != nil {
		fmt.Println("failed to start vault:", err)
		os.Exit(1)
	}
	defer m.Destroy()

	cipher := m.NewCipher()
	if err := cipher.Prepare(nil); err != nil {
		fmt.Println("failed to prepare cipher:", err)
		os.Exit(1)
	}

	fmt.Print("Enter your strong password, then press Enter: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return
	}
	line := scanner.Text()

	if err := m.StartStrongPasswordEntry(len(line)); err != nil {
		fmt.Println("failed to start entry:", err)
		os.Exit(1)
	}
	for i := 0; i < len(line); i++ {
		if err := m.PutStrongPasswordChar(line[i]); err != nil {
			fmt.Println("failed to enter character:", err)
			os.Exit(1)
		}
	}
	if err := m.FinishStrongPasswordEntry("default", cipher); err != nil {
		fmt.Println("failed to store strong password:", err)
		os.Exit(1)
	}

	fmt.Print("Enter a mnemonic for this site: ")
	if !scanner.Scan() {
		return
	}
	mnemonic := scanner.Text()

	rec := recipe.New()
	rec.AddFlags(recipe.Numeric | recipe.Lowercase | recipe.Uppercase |
		recipe.NumericRequired | recipe.LowercaseRequired | recipe.UppercaseRequired)
	rec.SetSpecials("!@#$%^&*()")

	password, err := m.GeneratePassword("default", mnemonic, cipher, rec, 16)
	if err != nil {
		fmt.Println("failed to generate password:", err)
		os.Exit(1)
	}
	defer func() {
		for i := range password {
			password[i] = 0
		}
	}()

	fmt.Println(vault.FormatWithSeparators(string(password), rec, 40))
}
