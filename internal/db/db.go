// Package db defines the storage contract the mapping layer runs against.
// Drivers live in subpackages; consumers depend on the narrow sub-interfaces
// rather than the full facade.
package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/query"
)

// Store is the main storage facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	DocumentStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexRequest carries one document write. A zero ID asks the backend to
// generate one. SeqNo and PrimaryTerm above zero request optimistic
// concurrency control on the write.
type IndexRequest struct {
	Index       string
	ID          string
	Doc         *document.Document
	Routing     string
	SeqNo       int64
	PrimaryTerm int64
	Refresh     bool
}

// DocumentStore provides single-document and bulk CRUD.
type DocumentStore interface {
	Index(ctx context.Context, req IndexRequest) (domain.IndexedInfo, error)
	Get(ctx context.Context, index, id string) (*document.Document, error)
	Exists(ctx context.Context, index, id string) (bool, error)
	Delete(ctx context.Context, index, id string) error
	Bulk(ctx context.Context, reqs []IndexRequest) ([]domain.IndexedInfo, error)
	DeleteByQuery(ctx context.Context, index string, q *query.Query) (int64, error)
}

// IndexManager provides index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, name string, mapping, settings *document.Document) error
	DeleteIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	PutMapping(ctx context.Context, name string, mapping *document.Document) error
	GetMapping(ctx context.Context, name string) (*document.Document, error)
	RefreshIndex(ctx context.Context, name string) error
}

// Searcher executes queries and scroll cursors against an index.
type Searcher interface {
	Search(ctx context.Context, index string, q *query.Query) (*query.Hits, error)
	Count(ctx context.Context, index string, q *query.Query) (int64, error)
	OpenScroll(ctx context.Context, index string, q *query.Query) (*query.Hits, error)
	ContinueScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*query.Hits, error)
	ClearScroll(ctx context.Context, scrollID string) error
}
