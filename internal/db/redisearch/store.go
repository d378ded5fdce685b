// Package redisearch is a RediSearch-backed store driver built on rueidis.
// Documents live as JSON values under "<index>:<id>" keys; one FT index per
// logical index covers that prefix. Scrolling is emulated with client-side
// cursors because FT.SEARCH pages by offset.
package redisearch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esmap/internal/db"
)

var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a RediSearch store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store implements db.Store via rueidis against Redis 8+.
type Store struct {
	client rueidis.Client
	log    *zap.Logger

	scrollMu sync.Mutex
	scrolls  map[string]*cursor
}

// New creates a RediSearch store.
func New(cfg Config, log *zap.Logger) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("redisearch: addrs is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("redisearch: create client: %w", err)
	}

	return &Store{client: client, log: log, scrolls: make(map[string]*cursor)}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("redisearch: timeout waiting for store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// docKey is the storage key for a document.
func docKey(index, id string) string {
	return index + ":" + id
}

// docID recovers the identifier from a storage key.
func docID(index, key string) string {
	return strings.TrimPrefix(key, index+":")
}

// mappingKey stores the mapping document for an index.
func mappingKey(index string) string {
	return "esmap:mapping:" + index
}

// versionKey is the hash tracking per-document versions for an index.
func versionKey(index string) string {
	return "esmap:ver:" + index
}

func rueidisIsNil(err error) bool {
	return rueidis.IsRedisNil(err)
}

// isRedisErr checks if err is a Redis server error containing substr
// (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
