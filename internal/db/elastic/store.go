// Package elastic is the Elasticsearch store driver, built on the official
// v8 low-level client. Request bodies are rendered by the emitter in this
// package; responses are decoded into ordered documents so field order
// survives the round trip.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/domain"
)

// Config holds connection settings for the Elasticsearch driver.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
}

// Store is the Elasticsearch driver.
type Store struct {
	client *elasticsearch.Client
	log    *zap.Logger
}

var _ db.Store = (*Store)(nil)

// New creates a Store connected to the configured cluster.
func New(cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("elastic: create client: %w", err)
	}
	return &Store{client: client, log: log}, nil
}

// Ping checks whether the cluster is reachable.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return &db.Error{Op: db.OpPing, Status: res.StatusCode, Err: fmt.Errorf("unexpected status %s", res.Status())}
	}
	return nil
}

// WaitForReady polls the cluster until it responds or the timeout elapses.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if lastErr = s.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("elastic: not ready after %s: %w", timeout, lastErr)
}

// Close releases nothing: the underlying client has no shutdown hook.
func (s *Store) Close() {}

// esError is the error envelope of an Elasticsearch failure response.
type esError struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// decodeError maps a failure response to a db.Error, translating the
// well-known backend error types to the domain sentinels.
func decodeError(op string, res *esapi.Response) error {
	var envelope esError
	status := res.StatusCode
	reason := res.Status()

	if err := json.NewDecoder(res.Body).Decode(&envelope); err == nil && envelope.Error.Type != "" {
		reason = envelope.Error.Type + ": " + envelope.Error.Reason
	}

	var sentinel error
	switch {
	case envelope.Error.Type == "index_not_found_exception":
		sentinel = domain.ErrIndexNotFound
	case envelope.Error.Type == "resource_already_exists_exception":
		sentinel = domain.ErrIndexExists
	case envelope.Error.Type == "version_conflict_engine_exception" || status == 409:
		sentinel = domain.ErrVersionConflict
	case status == 404:
		sentinel = domain.ErrDocumentNotFound
	}

	err := fmt.Errorf("%s", reason)
	if sentinel != nil {
		err = fmt.Errorf("%w: %s", sentinel, reason)
	}
	return &db.Error{Op: op, Status: status, Err: err}
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}
