package parser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSyntax indicates YAML that could not be decoded.
	ErrSyntax = errors.New("yaml syntax error")

	// ErrFileTooLarge indicates input above the configured size limit.
	ErrFileTooLarge = errors.New("pack file too large")
)

// Error is a parse error with its source location.
type Error struct {
	File       string
	Line       int
	Column     int
	Message    string
	Suggestion string
	Err        error
}

// Error returns "file:line:column: message".
func (e *Error) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (%s)", e.Suggestion)
	}
	return b.String()
}

// Unwrap returns the sentinel this error belongs to.
func (e *Error) Unwrap() error {
	return e.Err
}
