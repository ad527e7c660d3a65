package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

// RecordStore is an in-memory implementation of uploads.RecordStore.
// It stores records in memory and is safe for concurrent use.
// Data is lost on service restart - for persistence, use the sqlite or
// BigQuery store.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*uploads.Record
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]*uploads.Record),
	}
}

// Create implements uploads.RecordStore.
func (s *RecordStore) Create(ctx context.Context, rec *uploads.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("record already exists: %s", rec.ID)
	}
	// Store a copy to avoid external modifications
	s.records[rec.ID] = rec.Clone()

	return nil
}

// Get implements uploads.RecordStore.
func (s *RecordStore) Get(ctx context.Context, id string) (*uploads.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", uploads.ErrNotFound, id)
	}

	return rec.Clone(), nil
}

// List implements uploads.RecordStore, oldest first.
func (s *RecordStore) List(ctx context.Context) ([]*uploads.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*uploads.Record, 0, len(s.records))
	for _, rec := range s.records {
		result = append(result, rec.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Save implements uploads.RecordStore.
// Status, result and update time are replaced under one lock.
func (s *RecordStore) Save(ctx context.Context, rec *uploads.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.records[rec.ID]
	if !exists {
		return fmt.Errorf("%w: %s", uploads.ErrNotFound, rec.ID)
	}

	updated := stored.Clone()
	updated.Status = rec.Status
	updated.UpdatedAt = rec.UpdatedAt
	updated.Result = nil
	if rec.Result != nil {
		res := *rec.Result
		updated.Result = &res
	}
	s.records[rec.ID] = updated

	return nil
}

// Begin implements uploads.RecordStore. The status check and the write
// happen under one lock.
func (s *RecordStore) Begin(ctx context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.records[id]
	if !exists {
		return false, fmt.Errorf("%w: %s", uploads.ErrNotFound, id)
	}

	updated := stored.Clone()
	if !updated.Begin(now) {
		return false, nil
	}
	s.records[id] = updated
	return true, nil
}

// Ensure RecordStore implements uploads.RecordStore.
var _ uploads.RecordStore = (*RecordStore)(nil)
