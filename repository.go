package esmap

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/domain/query"
	"github.com/kailas-cloud/esmap/internal/mapping"
)

// findAllPageSize bounds unscoped FindAll reads. Larger result sets should
// go through SearchForStream.
const findAllPageSize = 1000

// Repository is the typed persistence surface for one entity type. T must be
// a struct carrying esmap tags; ID is the type of its id property.
type Repository[T any, ID comparable] struct {
	client *Client
	entity *mapping.Entity
	typ    reflect.Type
	index  string
}

// NewRepository creates a repository for T, parsing its metadata once.
func NewRepository[T any, ID comparable](c *Client) (*Repository[T, ID], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	e, err := c.reg.Entity(t)
	if err != nil {
		return nil, fmt.Errorf("new repository: %w", err)
	}
	return &Repository[T, ID]{
		client: c,
		entity: e,
		typ:    t,
		index:  c.indexName(e),
	}, nil
}

// IndexName returns the resolved store index for this repository.
func (r *Repository[T, ID]) IndexName() string { return r.index }

// EnsureIndex creates the entity's index with a mapping generated from its
// metadata, if it does not exist yet (idempotent).
func (r *Repository[T, ID]) EnsureIndex(ctx context.Context) error {
	ok, err := r.client.store.IndexExists(ctx, r.index)
	if err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	if ok {
		return nil
	}
	m, err := db.BuildMapping(r.client.reg, r.entity)
	if err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	start := time.Now()
	err = r.client.store.CreateIndex(ctx, r.index, m, nil)
	r.client.obs.observe(ctx, r.index, "indices.create", start, err)
	if err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	return nil
}

// Save writes the entity and applies the store-assigned id, version, and
// concurrency metadata back onto it. A non-zero sequence number on the
// entity makes the write conditional (ErrVersionConflict on a stale copy).
func (r *Repository[T, ID]) Save(ctx context.Context, item *T) error {
	req, err := r.indexRequest(item)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	start := time.Now()
	info, err := r.client.store.Index(ctx, req)
	r.client.obs.observe(ctx, r.index, "index", start, err)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := r.client.conv.ApplyIndexedInfo(item, info); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// SaveAll writes the entities in one bulk request and applies write-back to
// each.
func (r *Repository[T, ID]) SaveAll(ctx context.Context, items []*T) error {
	if len(items) == 0 {
		return nil
	}
	reqs := make([]db.IndexRequest, len(items))
	for i, item := range items {
		req, err := r.indexRequest(item)
		if err != nil {
			return fmt.Errorf("save all: item %d: %w", i, err)
		}
		reqs[i] = req
	}
	start := time.Now()
	infos, err := r.client.store.Bulk(ctx, reqs)
	r.client.obs.observe(ctx, r.index, "bulk", start, err)
	if err != nil {
		return fmt.Errorf("save all: %w", err)
	}
	for i := range infos {
		if i >= len(items) {
			break
		}
		if err := r.client.conv.ApplyIndexedInfo(items[i], infos[i]); err != nil {
			return fmt.Errorf("save all: item %d: %w", i, err)
		}
	}
	return nil
}

func (r *Repository[T, ID]) indexRequest(item *T) (db.IndexRequest, error) {
	doc, err := r.client.conv.Write(item)
	if err != nil {
		return db.IndexRequest{}, err
	}
	id, err := r.client.conv.EntityID(item)
	if err != nil {
		return db.IndexRequest{}, err
	}
	req := db.IndexRequest{
		Index:   r.index,
		ID:      id,
		Doc:     doc,
		Refresh: r.client.refreshWrites,
	}
	req.SeqNo, req.PrimaryTerm = r.concurrency(item)
	return req, nil
}

// concurrency reads the entity's sequence number and primary term for
// conditional writes; zero values mean unconditional.
func (r *Repository[T, ID]) concurrency(item *T) (seqNo, primaryTerm int64) {
	rv := reflect.ValueOf(item).Elem()
	if p := r.entity.SeqNoProperty(); p != nil {
		seqNo = rv.FieldByIndex(p.FieldIndex()).Int()
	}
	if p := r.entity.PrimaryTermProperty(); p != nil {
		primaryTerm = rv.FieldByIndex(p.FieldIndex()).Int()
	}
	return seqNo, primaryTerm
}

// FindByID retrieves one entity. Returns ErrDocumentNotFound for a missing
// id.
func (r *Repository[T, ID]) FindByID(ctx context.Context, id ID) (T, error) {
	var zero T
	start := time.Now()
	doc, err := r.client.store.Get(ctx, r.index, idString(id))
	r.client.obs.observe(ctx, r.index, "get", start, err)
	if err != nil {
		return zero, fmt.Errorf("find by id: %w", err)
	}
	return r.decode(doc)
}

// ExistsByID reports whether a document with the given id exists.
func (r *Repository[T, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	ok, err := r.client.store.Exists(ctx, r.index, idString(id))
	if err != nil {
		return false, fmt.Errorf("exists by id: %w", err)
	}
	return ok, nil
}

// DeleteByID removes one entity by id.
func (r *Repository[T, ID]) DeleteByID(ctx context.Context, id ID) error {
	start := time.Now()
	err := r.client.store.Delete(ctx, r.index, idString(id))
	r.client.obs.observe(ctx, r.index, "delete", start, err)
	if err != nil {
		return fmt.Errorf("delete by id: %w", err)
	}
	return nil
}

// Delete removes the given entity by its id property.
func (r *Repository[T, ID]) Delete(ctx context.Context, item *T) error {
	id, err := r.client.conv.EntityID(item)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	start := time.Now()
	err = r.client.store.Delete(ctx, r.index, id)
	r.client.obs.observe(ctx, r.index, "delete", start, err)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// FindAll returns every entity, capped at the first 1000 matches. Use
// SearchForStream for unbounded reads.
func (r *Repository[T, ID]) FindAll(ctx context.Context) ([]T, error) {
	q := query.New(MatchAll()).WithPage(0, findAllPageSize)
	hits, err := r.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find all: %w", err)
	}
	items := make([]T, len(hits))
	for i, h := range hits {
		items[i] = h.Item
	}
	return items, nil
}

// Count returns the number of stored entities.
func (r *Repository[T, ID]) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := r.client.store.Count(ctx, r.index, query.New(MatchAll()))
	r.client.obs.observe(ctx, r.index, "count", start, err)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// DeleteAll removes every stored entity and returns the number deleted.
func (r *Repository[T, ID]) DeleteAll(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := r.client.store.DeleteByQuery(ctx, r.index, query.New(MatchAll()))
	r.client.obs.observe(ctx, r.index, "delete_by_query", start, err)
	if err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	return n, nil
}

// Search executes the query and hydrates each hit into T, applying the score
// onto a declared score property.
func (r *Repository[T, ID]) Search(ctx context.Context, q *Query) ([]Hit[T], error) {
	start := time.Now()
	hits, err := r.client.store.Search(ctx, r.index, q)
	r.client.obs.observe(ctx, r.index, "search", start, err)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	r.client.obs.observeHits(r.index, len(hits.Hits))

	out := make([]Hit[T], 0, len(hits.Hits))
	for _, h := range hits.Hits {
		item, err := r.decodeHit(h)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		out = append(out, Hit[T]{
			Item:       item,
			ID:         h.ID,
			Score:      h.Score,
			SortValues: h.SortValues,
			Highlights: h.Highlights,
		})
	}
	return out, nil
}

// SearchCount returns the number of matches for the query.
func (r *Repository[T, ID]) SearchCount(ctx context.Context, q *Query) (int64, error) {
	start := time.Now()
	n, err := r.client.store.Count(ctx, r.index, q)
	r.client.obs.observe(ctx, r.index, "count", start, err)
	if err != nil {
		return 0, fmt.Errorf("search count: %w", err)
	}
	return n, nil
}

// SearchForStream opens a scroll over the query and returns a typed pull
// iterator. The caller must Close the stream.
func (r *Repository[T, ID]) SearchForStream(ctx context.Context, q *Query) (*Stream[T], error) {
	return openStream(ctx, r.client, r.index, q, r.decodeHit)
}

func (r *Repository[T, ID]) decodeHit(h hitRecord) (T, error) {
	item, err := r.decode(h.Doc)
	if err != nil {
		return item, err
	}
	if h.Score != 0 {
		if err := r.client.conv.ApplyScore(&item, h.Score); err != nil {
			return item, err
		}
	}
	return item, nil
}

func (r *Repository[T, ID]) decode(doc *Document) (T, error) {
	var zero T
	v, err := r.client.conv.Read(doc, r.typ)
	if err != nil {
		return zero, err
	}
	item, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("decode: document resolved to %T, want %s", v, r.typ)
	}
	return item, nil
}

// Derive compiles a query-method name like FindByNameAndPriceLessThan into a
// reusable query. Parsing and arity validation happen here, not per call.
func (r *Repository[T, ID]) Derive(method string) (*DerivedQuery[T, ID], error) {
	tree, err := r.client.deriver.Tree(r.typ, method)
	r.client.obs.observeDerive(err)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", method, err)
	}
	return &DerivedQuery[T, ID]{repo: r, tree: tree}, nil
}

// Native prepares a backend-native query template with ?0-style positional
// placeholders.
func (r *Repository[T, ID]) Native(template string) *TemplateQuery[T, ID] {
	return &TemplateQuery[T, ID]{repo: r, template: template}
}

func idString(id any) string {
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprint(id)
}
