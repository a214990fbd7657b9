package store

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemStore is an in-memory implementation of Store[R].
//
// Records live in a map for lookup plus a slice of IDs that remembers insertion
// order. MemStore is thread-safe; every method holds the store lock for its
// whole read-check-mutate sequence.
//
// Limitations:
//   - Data is lost when the process terminates
//   - Delete is O(n) in the number of records because the order slice is compacted
type MemStore[R any] struct {
	mu      sync.RWMutex
	records map[string]R
	order   []string
	closed  bool
	log     *zap.Logger
}

// NewMemStore creates a new, empty in-memory store. logger may be nil.
func NewMemStore[R any](logger *zap.Logger) *MemStore[R] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemStore[R]{
		records: make(map[string]R),
		order:   make([]string, 0),
		log:     logger,
	}
}

// Insert appends a record.
func (m *MemStore[R]) Insert(_ context.Context, id string, rec R) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.records[id]; exists {
		return ErrDuplicateID
	}

	m.records[id] = rec
	m.order = append(m.order, id)
	m.log.Debug("record inserted", zap.String("id", id), zap.Int("count", len(m.order)))
	return nil
}

// Get looks up a record by exact ID.
func (m *MemStore[R]) Get(_ context.Context, id string) (R, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero R
	if m.closed {
		return zero, ErrClosed
	}

	rec, exists := m.records[id]
	if !exists {
		return zero, ErrNotFound
	}
	return rec, nil
}

// Replace overwrites an existing record without moving it.
func (m *MemStore[R]) Replace(_ context.Context, id string, rec R) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.records[id]; !exists {
		return ErrNotFound
	}

	m.records[id] = rec
	m.log.Debug("record replaced", zap.String("id", id))
	return nil
}

// Delete removes a record and closes the gap in the order slice.
func (m *MemStore[R]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.records[id]; !exists {
		return ErrNotFound
	}

	delete(m.records, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.log.Debug("record deleted", zap.String("id", id), zap.Int("count", len(m.order)))
	return nil
}

// List returns a copy of all records in insertion order.
func (m *MemStore[R]) List(_ context.Context) ([]R, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	out := make([]R, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

// Count returns the number of stored records.
func (m *MemStore[R]) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return len(m.order), nil
}

// Ping returns ErrClosed once the store is closed.
func (m *MemStore[R]) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close drops all records. Further calls return ErrClosed.
func (m *MemStore[R]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	m.order = nil
	return nil
}
