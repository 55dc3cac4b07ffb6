// Package storage provides the document store behind the tracker: one
// document holding all users, projects, and todos, read and written whole.
package storage

import (
	"context"

	"timetrack-backend/internal/domain"
)

// Store is the injectable document store. Update runs fn with exclusive
// access to the current document and persists the result only when fn
// returns nil, so a request's whole read-modify-write cycle is serialized
// against concurrent writers.
type Store interface {
	// Load returns a snapshot of the current document.
	Load(ctx context.Context) (*domain.Document, error)

	// Update applies fn to the current document under the store's lock and
	// persists the mutated document. fn's error aborts the write and is
	// returned unchanged.
	Update(ctx context.Context, fn func(*domain.Document) error) error

	Health() map[string]string
	Close() error
}
