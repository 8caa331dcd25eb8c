package store

import (
	"context"
	"sync"

	"github.com/sweetpotato0/miniagent/memory"
)

// InMemoryStore implements memory.Store using in-memory storage
type InMemoryStore struct {
	records []memory.Record
	mu      sync.RWMutex
}

// NewInMemoryStore creates a new in-memory memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make([]memory.Record, 0),
	}
}

// Append adds a record to the store
func (s *InMemoryStore) Append(ctx context.Context, rec memory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Embedding = append([]float32(nil), rec.Embedding...)
	s.records = append(s.records, rec)
	return nil
}

// Load returns a copy of all records in insertion order
func (s *InMemoryStore) Load(ctx context.Context) ([]memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]memory.Record(nil), s.records...), nil
}

// Clear removes all records from the store
func (s *InMemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]memory.Record, 0)
	return nil
}

// Count returns the number of records in the store
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
