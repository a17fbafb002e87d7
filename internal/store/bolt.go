package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/weatherdash/proxy/internal/models"
)

var recordsBucket = []byte("records")

// BoltStore implements RecordStore on a bbolt file. It is the durable
// backend: records survive process restarts, the way the browser original
// kept them in localStorage.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path and ensures the records
// bucket exists. The open times out rather than blocking forever when
// another process holds the file lock.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open record store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(recordsBucket)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get retrieves the record for key. A record that fails to decode is
// returned as an error; the freshness layer reads that as a miss.
func (s *BoltStore) Get(ctx context.Context, key string) (models.CacheRecord, bool, error) {
	if ctx.Err() != nil {
		return models.CacheRecord{}, false, ctx.Err()
	}
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get([]byte(key))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return models.CacheRecord{}, false, err
	}
	if raw == nil {
		return models.CacheRecord{}, false, nil
	}
	var rec models.CacheRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.CacheRecord{}, false, fmt.Errorf("decode record %s: %w", key, err)
	}
	return rec, true, nil
}

// Put writes record under key as a single whole-record overwrite.
func (s *BoltStore) Put(ctx context.Context, key string, record models.CacheRecord) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).Put([]byte(key), raw)
	})
}

// Ping checks that the database file is readable. Used for health checks.
func (s *BoltStore) Ping() error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

// Close closes the underlying database. Call during shutdown.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
