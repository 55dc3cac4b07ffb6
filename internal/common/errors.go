// Package common defines sentinel errors shared across service and transport
// layers. Callers should match these values with errors.Is.
package common

import "errors"

var (
	// Request/input errors.
	ErrValidation = errors.New("validation error")

	// Identity errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Record errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Storage errors.
	ErrUnavailable = errors.New("storage unavailable")
)
