package store

import (
	"context"
	"sync"

	"github.com/weatherdash/proxy/internal/models"
)

// RecordStore is a keyed store of timestamped records. Get returns the record
// if present, Put unconditionally overwrites. Records carry no TTL at the
// store level; staleness is decided by the caller at read time.
type RecordStore interface {
	Get(ctx context.Context, key string) (models.CacheRecord, bool, error)
	Put(ctx context.Context, key string, record models.CacheRecord) error
}

// InMemoryStore implements RecordStore with a mutex-guarded map. Contents do
// not survive a restart; use BoltStore where durability matters.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]models.CacheRecord
}

// NewInMemoryStore creates an empty in-memory record store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		data: make(map[string]models.CacheRecord),
	}
}

// Get retrieves the record for key if present.
func (s *InMemoryStore) Get(ctx context.Context, key string) (models.CacheRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[key]
	if !ok {
		return models.CacheRecord{}, false, nil
	}
	return rec, true, nil
}

// Put stores record under key, overwriting any existing record.
func (s *InMemoryStore) Put(ctx context.Context, key string, record models.CacheRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = record
	return nil
}
