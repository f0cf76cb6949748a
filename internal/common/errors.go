// Package common defines shared constants and sentinel errors used across
// the FHIR storage engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrStorage    = errors.New("storage error")

	// Write-path errors.
	ErrValidation       = errors.New("validation error")
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// Read-path errors. A mapping error means a stored document could not be
	// turned back into an entry.
	ErrMapping   = errors.New("mapping error")
	ErrIntegrity = errors.New("blob digest mismatch")
)
