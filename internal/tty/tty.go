// Package tty collects a passphrase from the controlling terminal rather
// than stdin, so a passphrase prompt still works when stdin is itself the
// plaintext or ciphertext stream being piped through archive/extract.
package tty

import (
	"fmt"

	"golang.org/x/term"
)

// Prompter reads passphrases from the controlling terminal with local echo
// disabled. It satisfies internal/keyfile's Prompter interface.
type Prompter struct{}

// ReadPassphrase writes prompt to the terminal, reads a line with echo
// disabled, and returns the entered bytes without a trailing newline.
func (Prompter) ReadPassphrase(prompt string) ([]byte, error) {
	f, err := openController()
	if err != nil {
		return nil, fmt.Errorf("tty: open controlling terminal: %w", err)
	}
	defer f.Close()

	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("tty: controlling terminal is not a terminal")
	}

	if _, err := fmt.Fprint(f, prompt); err != nil {
		return nil, fmt.Errorf("tty: write prompt: %w", err)
	}

	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(f)
	if err != nil {
		return nil, fmt.Errorf("tty: read passphrase: %w", err)
	}
	return pass, nil
}

// IsInteractive reports whether the process has a controlling terminal at
// all, used by callers deciding whether a prompt is even possible.
func IsInteractive() bool {
	f, err := openController()
	if err != nil {
		return false
	}
	defer f.Close()
	return term.IsTerminal(int(f.Fd()))
}
