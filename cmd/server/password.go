package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordEnv supplies the data directory password without a prompt
const PasswordEnv = "HEALTHDASH_PASSWORD"

// readPassword returns $HEALTHDASH_PASSWORD or prompts on the terminal
func readPassword(prompt string) (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for password prompt; set %s", PasswordEnv)
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// readNewPassword prompts twice and requires both entries to match
func readNewPassword() (string, error) {
	pw, err := readPassword("New password: ")
	if err != nil {
		return "", err
	}
	if os.Getenv(PasswordEnv) != "" {
		return pw, nil
	}

	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pw, nil
}
