// Package cache puts an in-process read cache in front of a record store.
package cache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

// RecordStore caches terminal records read through it. Pending and
// processing records always go to the backing store, since another process
// may be moving them along.
type RecordStore struct {
	next  uploads.RecordStore
	cache *cache.Cache
}

// NewRecordStore wraps next with a cache whose entries expire after ttl.
func NewRecordStore(next uploads.RecordStore, ttl time.Duration) *RecordStore {
	return &RecordStore{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Create implements uploads.RecordStore.
func (s *RecordStore) Create(ctx context.Context, rec *uploads.Record) error {
	return s.next.Create(ctx, rec)
}

// Get implements uploads.RecordStore.
func (s *RecordStore) Get(ctx context.Context, id string) (*uploads.Record, error) {
	if cached, found := s.cache.Get(id); found {
		return cached.(*uploads.Record).Clone(), nil
	}

	rec, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.remember(rec)
	return rec, nil
}

// List implements uploads.RecordStore. Listing always reads through.
func (s *RecordStore) List(ctx context.Context) ([]*uploads.Record, error) {
	return s.next.List(ctx)
}

// Save implements uploads.RecordStore. The entry is dropped before the write
// so a failed save never leaves a newer cached copy than the store holds.
func (s *RecordStore) Save(ctx context.Context, rec *uploads.Record) error {
	s.cache.Delete(rec.ID)
	if err := s.next.Save(ctx, rec); err != nil {
		return err
	}
	s.remember(rec)
	return nil
}

// Begin implements uploads.RecordStore.
func (s *RecordStore) Begin(ctx context.Context, id string, now time.Time) (bool, error) {
	s.cache.Delete(id)
	return s.next.Begin(ctx, id, now)
}

func (s *RecordStore) remember(rec *uploads.Record) {
	if rec.Status.Terminal() {
		s.cache.SetDefault(rec.ID, rec.Clone())
	}
}

// Len returns the number of cached records.
func (s *RecordStore) Len() int {
	return s.cache.ItemCount()
}

var _ uploads.RecordStore = (*RecordStore)(nil)
