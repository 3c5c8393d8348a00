package manager

import (
	"errors"
	"fmt"

	"skuldbot/compliance/pkg/pack"
)

var (
	// ErrPackNotFound is returned when a pinned (id, version) is not
	// registered or not available to the requesting tenant.
	ErrPackNotFound = errors.New("policy pack not found")

	// ErrDuplicateVersion is returned when registering an (id, version)
	// that already exists.
	ErrDuplicateVersion = errors.New("policy pack version already registered")

	// ErrNoPacks is returned when a composite is requested from no refs.
	ErrNoPacks = errors.New("no policy packs requested")

	// ErrUnknownTenant is returned when a tenant has no pack bindings.
	ErrUnknownTenant = errors.New("tenant has no policy pack bindings")
)

// RegistryError describes a failed registry operation on one pack.
type RegistryError struct {
	// Ref is the pack involved.
	Ref pack.Ref

	// TenantID is set for resolution errors.
	TenantID string

	// Operation is "register" or "resolve".
	Operation string

	// Err is the sentinel or validation error.
	Err error
}

func (e *RegistryError) Error() string {
	if e.TenantID != "" {
		return fmt.Sprintf("%s %s for tenant %q: %v", e.Operation, e.Ref, e.TenantID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Ref, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// LoadError represents a pack file that could not be read.
type LoadError struct {
	// FilePath is the path to the file that failed to load
	FilePath string

	// Message describes the error
	Message string

	// Cause is the underlying error
	Cause error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load pack file %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load pack file %q: %s", e.FilePath, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
