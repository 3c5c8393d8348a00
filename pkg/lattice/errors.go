package lattice

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownClassification indicates a classification that is not part
	// of the lattice.
	ErrUnknownClassification = errors.New("unknown classification")

	// ErrUnknownEgress indicates an egress scope outside NONE/INTERNAL/EXTERNAL.
	ErrUnknownEgress = errors.New("unknown egress scope")

	// ErrAlreadyInitialized is returned by Init when the process lattice
	// has already been declared.
	ErrAlreadyInitialized = errors.New("lattice already initialized")
)

// ClassificationError reports a classification the lattice does not know.
type ClassificationError struct {
	Classification Classification
}

// Error returns the error message.
func (e *ClassificationError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnknownClassification, string(e.Classification))
}

// Unwrap returns ErrUnknownClassification so callers can use errors.Is.
func (e *ClassificationError) Unwrap() error {
	return ErrUnknownClassification
}
