package esmap

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/esmap/internal/db"
)

// BulkItem is one document write in a bulk request. An empty ID asks the
// backend to generate one.
type BulkItem struct {
	ID  string
	Doc *Document
}

// Operations is the document-level surface bound to a single index. It works
// on raw documents; use Repository for typed access.
type Operations struct {
	client *Client
	index  string
}

// IndexName returns the resolved index this surface operates on.
func (o *Operations) IndexName() string { return o.index }

// Index writes a document under the given id. An empty id asks the backend
// to generate one.
func (o *Operations) Index(ctx context.Context, id string, doc *Document) (IndexedInfo, error) {
	start := time.Now()
	info, err := o.client.store.Index(ctx, db.IndexRequest{
		Index:   o.index,
		ID:      id,
		Doc:     doc,
		Refresh: o.client.refreshWrites,
	})
	o.client.obs.observe(ctx, o.index, "index", start, err)
	if err != nil {
		return IndexedInfo{}, fmt.Errorf("index: %w", err)
	}
	return info, nil
}

// Get retrieves a document by id.
func (o *Operations) Get(ctx context.Context, id string) (*Document, error) {
	start := time.Now()
	doc, err := o.client.store.Get(ctx, o.index, id)
	o.client.obs.observe(ctx, o.index, "get", start, err)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return doc, nil
}

// Exists reports whether a document with the given id exists.
func (o *Operations) Exists(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ok, err := o.client.store.Exists(ctx, o.index, id)
	o.client.obs.observe(ctx, o.index, "exists", start, err)
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return ok, nil
}

// Delete removes a document by id.
func (o *Operations) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := o.client.store.Delete(ctx, o.index, id)
	o.client.obs.observe(ctx, o.index, "delete", start, err)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Bulk writes a batch of documents in one round trip.
func (o *Operations) Bulk(ctx context.Context, items []BulkItem) ([]IndexedInfo, error) {
	reqs := make([]db.IndexRequest, len(items))
	for i, item := range items {
		reqs[i] = db.IndexRequest{
			Index:   o.index,
			ID:      item.ID,
			Doc:     item.Doc,
			Refresh: o.client.refreshWrites,
		}
	}
	start := time.Now()
	infos, err := o.client.store.Bulk(ctx, reqs)
	o.client.obs.observe(ctx, o.index, "bulk", start, err)
	if err != nil {
		return infos, fmt.Errorf("bulk: %w", err)
	}
	return infos, nil
}

// DeleteByQuery removes every document matching the query and returns the
// number deleted.
func (o *Operations) DeleteByQuery(ctx context.Context, q *Query) (int64, error) {
	start := time.Now()
	n, err := o.client.store.DeleteByQuery(ctx, o.index, q)
	o.client.obs.observe(ctx, o.index, "delete_by_query", start, err)
	if err != nil {
		return 0, fmt.Errorf("delete by query: %w", err)
	}
	return n, nil
}

// Search executes the query and returns the raw hits.
func (o *Operations) Search(ctx context.Context, q *Query) (*Hits, error) {
	start := time.Now()
	hits, err := o.client.store.Search(ctx, o.index, q)
	o.client.obs.observe(ctx, o.index, "search", start, err)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	o.client.obs.observeHits(o.index, len(hits.Hits))
	return hits, nil
}

// Count returns the number of documents matching the query.
func (o *Operations) Count(ctx context.Context, q *Query) (int64, error) {
	start := time.Now()
	n, err := o.client.store.Count(ctx, o.index, q)
	o.client.obs.observe(ctx, o.index, "count", start, err)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Stream opens a scroll over the query and returns a pull iterator of raw
// documents. The caller must Close the stream.
func (o *Operations) Stream(ctx context.Context, q *Query) (*Stream[*Document], error) {
	return openStream(ctx, o.client, o.index, q, func(h hitRecord) (*Document, error) {
		return h.Doc, nil
	})
}
