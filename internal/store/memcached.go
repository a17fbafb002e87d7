package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/weatherdash/proxy/internal/models"
)

// MemcachedStore implements RecordStore on memcached. A shared-cache option
// for deployments where the record store should live outside the process;
// records are stored without expiry since freshness is a read-side decision.
type MemcachedStore struct {
	client *memcache.Client
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Get implements RecordStore.Get. Returns false, nil on a miss.
func (s *MemcachedStore) Get(ctx context.Context, key string) (models.CacheRecord, bool, error) {
	if ctx.Err() != nil {
		return models.CacheRecord{}, false, ctx.Err()
	}
	item, err := s.client.Get(key)
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return models.CacheRecord{}, false, nil
		}
		return models.CacheRecord{}, false, err
	}
	var rec models.CacheRecord
	if err := json.Unmarshal(item.Value, &rec); err != nil {
		return models.CacheRecord{}, false, err
	}
	return rec, true, nil
}

// Put implements RecordStore.Put.
func (s *MemcachedStore) Put(ctx context.Context, key string, record models.CacheRecord) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(&memcache.Item{
		Key:   key,
		Value: raw,
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}
