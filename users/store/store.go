// Package store holds the collection backends behind the user service.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists for the requested ID.
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned by Insert when the ID is already taken.
var ErrDuplicateID = errors.New("duplicate id")

// ErrClosed is returned by any operation on a store after Close.
var ErrClosed = errors.New("store is closed")

// Store is an ordered collection of records keyed by an opaque string ID.
//
// Records keep the position they were inserted at; Replace updates a record in
// place and Delete removes it without reordering the rest.
//
// Every method is atomic with respect to the others: a Replace or Delete that
// returns ErrNotFound has not modified the collection.
//
// Implementations:
//   - MemStore: map plus insertion-order slice (default)
//   - SQLiteStore: in-process, in-memory SQLite database
//
// Type parameter R is the record type. SQL-backed stores require R to be
// JSON-serializable.
type Store[R any] interface {
	// Insert appends rec under id. Returns ErrDuplicateID if id exists.
	Insert(ctx context.Context, id string, rec R) error

	// Get returns the record stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) (R, error)

	// Replace overwrites the record stored under id, keeping its position.
	// Returns ErrNotFound if id does not exist.
	Replace(ctx context.Context, id string, rec R) error

	// Delete removes the record stored under id. Returns ErrNotFound if id
	// does not exist.
	Delete(ctx context.Context, id string) error

	// List returns every record in insertion order.
	List(ctx context.Context) ([]R, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Ping reports whether the store can serve requests. Returns ErrClosed
	// after Close.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
