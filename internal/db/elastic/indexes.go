package elastic

import (
	"bytes"
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/domain/document"
)

// CreateIndex creates the index with the given mapping and settings.
func (s *Store) CreateIndex(ctx context.Context, name string, mapping, settings *document.Document) error {
	body := document.New()
	if settings != nil && settings.Len() > 0 {
		body.Set("settings", settings)
	}
	if mapping != nil && mapping.Len() > 0 {
		body.Set("mappings", mapping)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	res, err := s.client.Indices.Create(
		name,
		s.client.Indices.Create.WithBody(bytes.NewReader(data)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError(db.OpCreateIndex, res)
	}
	s.log.Info("index created", zap.String("index", name))
	return nil
}

// DeleteIndex drops the index.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	res, err := s.client.Indices.Delete(
		[]string{name},
		s.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpDeleteIndex, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError(db.OpDeleteIndex, res)
	}
	s.log.Info("index deleted", zap.String("index", name))
	return nil
}

// IndexExists reports whether the index is present.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := s.client.Indices.Exists(
		[]string{name},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, &db.Error{Op: db.OpIndexExists, Err: err}
	}
	defer closeBody(res)

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, decodeError(db.OpIndexExists, res)
	}
}

// PutMapping updates the field mapping of an existing index.
func (s *Store) PutMapping(ctx context.Context, name string, mapping *document.Document) error {
	data, err := json.Marshal(mapping)
	if err != nil {
		return &db.Error{Op: db.OpPutMapping, Err: err}
	}

	res, err := s.client.Indices.PutMapping(
		[]string{name},
		bytes.NewReader(data),
		s.client.Indices.PutMapping.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpPutMapping, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError(db.OpPutMapping, res)
	}
	return nil
}

// GetMapping fetches the field mapping of the index.
func (s *Store) GetMapping(ctx context.Context, name string) (*document.Document, error) {
	res, err := s.client.Indices.GetMapping(
		s.client.Indices.GetMapping.WithIndex(name),
		s.client.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpGetMapping, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, decodeError(db.OpGetMapping, res)
	}

	// Response shape: {"<index>": {"mappings": {...}}}
	envelope := document.New()
	if err := json.NewDecoder(res.Body).Decode(envelope); err != nil {
		return nil, &db.Error{Op: db.OpGetMapping, Err: err}
	}
	entry, ok := envelope.Get(name)
	if !ok {
		// Alias lookups come back keyed by the concrete index name.
		for _, key := range envelope.Keys() {
			entry, _ = envelope.Get(key)
			break
		}
	}
	inner, ok := entry.(*document.Document)
	if !ok {
		return document.New(), nil
	}
	m, ok := inner.Get("mappings")
	if !ok {
		return document.New(), nil
	}
	md, ok := m.(*document.Document)
	if !ok {
		return document.New(), nil
	}
	return md, nil
}

// RefreshIndex makes recent writes visible to search.
func (s *Store) RefreshIndex(ctx context.Context, name string) error {
	res, err := s.client.Indices.Refresh(
		s.client.Indices.Refresh.WithIndex(name),
		s.client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpRefresh, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError(db.OpRefresh, res)
	}
	return nil
}
