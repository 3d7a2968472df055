package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

func (a *app) readLine(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimSpace(line), nil
}

// readSecret does not echo on a terminal. Piped input is read as a plain line
// so scripts can drive the CLI.
func (a *app) readSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return a.readLine(label)
	}
	fmt.Fprint(a.out, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func (a *app) valueOrPrompt(value, label string) (string, error) {
	if value = strings.TrimSpace(value); value != "" {
		return value, nil
	}
	return a.readLine(label)
}
