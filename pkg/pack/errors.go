package pack

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedRule indicates a rule or pack definition that cannot be
	// evaluated (unknown operator, undeclared control, empty predicate...).
	ErrMalformedRule = errors.New("malformed rule")

	// ErrInvalidRef indicates a pack reference that is not "id@version".
	ErrInvalidRef = errors.New("invalid pack reference")
)

// RuleError describes a problem with a single rule or pack field.
type RuleError struct {
	PackID  string
	RuleID  string
	Field   string
	Message string
	Cause   error
}

// Error returns the error message.
func (e *RuleError) Error() string {
	var b strings.Builder
	b.WriteString("pack ")
	b.WriteString(e.PackID)
	if e.RuleID != "" {
		fmt.Fprintf(&b, " rule %s", e.RuleID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the cause when present, otherwise ErrMalformedRule.
func (e *RuleError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrMalformedRule, e.Cause}
	}
	return []error{ErrMalformedRule}
}

// ErrorList collects several pack errors.
type ErrorList struct {
	Errors []error
}

// Add appends err to the list. Nil errors are ignored.
func (l *ErrorList) Add(err error) {
	if err != nil {
		l.Errors = append(l.Errors, err)
	}
}

// HasErrors returns true if the list is not empty.
func (l *ErrorList) HasErrors() bool {
	return len(l.Errors) > 0
}

// Err returns the list as an error, or nil when it is empty.
func (l *ErrorList) Err() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

// Error returns all messages, one per line.
func (l *ErrorList) Error() string {
	if len(l.Errors) == 1 {
		return l.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors:", len(l.Errors))
	for _, err := range l.Errors {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (l *ErrorList) Unwrap() []error {
	return l.Errors
}
