// Package output handles formatting CLI output as tables or JSON.
package output

import (
	"os"

	"golang.org/x/term"
)

// Format represents an output format.
type Format int

const (
	// FormatTable outputs human-readable tables.
	FormatTable Format = iota
	// FormatJSON outputs JSON.
	FormatJSON
)

// isTerminalFn checks whether stdout is a terminal. Replaceable in tests.
var isTerminalFn = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Detect returns the output format. An explicit flag wins, then the
// SKILLGAP_OUTPUT environment variable; otherwise a terminal gets tables
// and a pipe gets JSON.
func Detect(jsonFlag bool) Format {
	if jsonFlag {
		return FormatJSON
	}
	switch os.Getenv("SKILLGAP_OUTPUT") {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	}
	if isTerminalFn() {
		return FormatTable
	}
	return FormatJSON
}
