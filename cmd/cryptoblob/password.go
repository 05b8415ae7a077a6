package main

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/tez-capital/cryptoblob/keyring"
)

// isTTY reports whether f is attached to an interactive terminal.
func isTTY(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

// obtainPassword prompts for a passphrase without echoing it, falling
// back to a plain bufio read when stdin isn't a terminal (e.g. piped
// input in scripts/CI).
func obtainPassword(prompt string) ([]byte, error) {
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	if !isTTY(os.Stdin) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
			line = line[:len(line)-1]
		}
		return []byte(line), nil
	}

	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pass, nil
}

func obtainPasswordConfirmed(prompt string) ([]byte, error) {
	pass, err := obtainPassword(prompt)
	if err != nil {
		return nil, err
	}
	confirm, err := obtainPassword(prompt + " (confirm)")
	if err != nil {
		keyring.MemoryWipe(pass)
		return nil, err
	}
	defer keyring.MemoryWipe(confirm)

	if string(pass) != string(confirm) {
		keyring.MemoryWipe(pass)
		return nil, fmt.Errorf("passphrases do not match")
	}
	return pass, nil
}
