package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1 // the evaluation or lint found blocking problems
	ExitError  = 2 // the command could not run
)

// ErrEvaluationFailed is returned by commands whose evaluation produced
// blocks. It maps to ExitFailed.
var ErrEvaluationFailed = errors.New("compliance evaluation failed")

// ErrLintFailed is returned when a linted pack file is invalid. It maps to
// ExitFailed.
var ErrLintFailed = errors.New("pack lint failed")

// ConfigError represents an invalid flag or configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrEvaluationFailed), errors.Is(err, ErrLintFailed):
		return ExitFailed
	default:
		return ExitError
	}
}
