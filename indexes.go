package esmap

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/esmap/internal/db"
)

// Indexes is the index lifecycle surface. Names are resolved through the
// client's index prefix, matching Operations and Repository.
type Indexes struct {
	client *Client
}

// Create creates an index with the given mapping and settings; either may be
// nil.
func (ix *Indexes) Create(ctx context.Context, name string, mapping, settings *Document) error {
	index := ix.client.indexPrefix + name
	start := time.Now()
	err := ix.client.store.CreateIndex(ctx, index, mapping, settings)
	ix.client.obs.observe(ctx, index, "indices.create", start, err)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Delete removes an index and its documents.
func (ix *Indexes) Delete(ctx context.Context, name string) error {
	index := ix.client.indexPrefix + name
	start := time.Now()
	err := ix.client.store.DeleteIndex(ctx, index)
	ix.client.obs.observe(ctx, index, "indices.delete", start, err)
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}

// Exists reports whether the index exists.
func (ix *Indexes) Exists(ctx context.Context, name string) (bool, error) {
	index := ix.client.indexPrefix + name
	ok, err := ix.client.store.IndexExists(ctx, index)
	if err != nil {
		return false, fmt.Errorf("index exists: %w", err)
	}
	return ok, nil
}

// PutMapping updates the field mapping of an existing index.
func (ix *Indexes) PutMapping(ctx context.Context, name string, mapping *Document) error {
	index := ix.client.indexPrefix + name
	start := time.Now()
	err := ix.client.store.PutMapping(ctx, index, mapping)
	ix.client.obs.observe(ctx, index, "indices.put_mapping", start, err)
	if err != nil {
		return fmt.Errorf("put mapping: %w", err)
	}
	return nil
}

// GetMapping returns the field mapping of an index.
func (ix *Indexes) GetMapping(ctx context.Context, name string) (*Document, error) {
	index := ix.client.indexPrefix + name
	doc, err := ix.client.store.GetMapping(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("get mapping: %w", err)
	}
	return doc, nil
}

// Refresh makes pending writes visible to search.
func (ix *Indexes) Refresh(ctx context.Context, name string) error {
	index := ix.client.indexPrefix + name
	err := ix.client.store.RefreshIndex(ctx, index)
	if err != nil {
		return fmt.Errorf("refresh index: %w", err)
	}
	return nil
}

// MappingFor builds the index mapping document for the prototype's entity
// metadata.
func (ix *Indexes) MappingFor(prototype any) (*Document, error) {
	e, err := ix.client.reg.EntityOf(prototype)
	if err != nil {
		return nil, fmt.Errorf("mapping for: %w", err)
	}
	doc, err := db.BuildMapping(ix.client.reg, e)
	if err != nil {
		return nil, fmt.Errorf("mapping for: %w", err)
	}
	return doc, nil
}
