package storage

import (
	"context"
	"sync"

	"mercator-hq/callisto/pkg/model"
)

// MemoryStore keeps the proxy list in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.Record
	saves   int
}

// NewMemoryStore creates a MemoryStore seeded with records.
func NewMemoryStore(records ...model.Record) *MemoryStore {
	return &MemoryStore{records: cloneRecords(records)}
}

// Load implements registry.Store.
func (s *MemoryStore) Load(ctx context.Context) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records), nil
}

// Save implements registry.Store.
func (s *MemoryStore) Save(ctx context.Context, records []model.Record) error {
	if err := ctx.Err(); err != nil {
		return NewStorageError("memory", "save", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = cloneRecords(records)
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close implements Backend.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneRecords(records []model.Record) []model.Record {
	out := make([]model.Record, len(records))
	for i, r := range records {
		r.Hosts = append([]string(nil), r.Hosts...)
		out[i] = r
	}
	return out
}
