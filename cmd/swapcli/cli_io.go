package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

func readPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		die("failed to read key: " + err.Error())
	}
	return strings.TrimSpace(string(b))
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

func maskHex(h string) string {
	h = strings.TrimSpace(h)
	if len(h) <= 10 {
		return "***"
	}
	return h[:6] + "…" + h[len(h)-4:]
}

func must(err error, msg string) {
	if err != nil {
		die(msg + ": " + err.Error())
	}
}

func die(msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}
