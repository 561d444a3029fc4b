package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// readSecret prompts on w and reads a secret without echo. When stdin is not
// a terminal the secret is read as a plain line so scripts can pipe it in.
func readSecret(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	b, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return string(b), nil
}

// readNewSecret asks for a secret twice and fails when the entries differ.
func readNewSecret(w io.Writer, prompt string) (string, error) {
	first, err := readSecret(w, prompt)
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", fmt.Errorf("empty secret")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return first, nil
	}
	second, err := readSecret(w, "Repeat: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("entries do not match")
	}
	return first, nil
}
