// Package memory is an in-process store driver. It keeps documents in
// mutex-guarded maps and evaluates criteria directly, which makes it the
// default backend for tests and examples.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/query"
)

type record struct {
	doc         *document.Document
	version     int64
	seqNo       int64
	primaryTerm int64
}

type index struct {
	mapping  *document.Document
	settings *document.Document
	docs     map[string]*record
	order    []string // insertion order, for deterministic iteration
	nextSeq  int64
}

type scrollState struct {
	hits    []query.Hit
	total   int64
	pos     int
	size    int
	expires time.Time
}

// Store is the in-memory driver.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]*index

	scrollMu sync.Mutex
	scrolls  map[string]*scrollState

	now func() time.Time
}

var _ db.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		indexes: make(map[string]*index),
		scrolls: make(map[string]*scrollState),
		now:     time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// WaitForReady always succeeds.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// Close drops all data.
func (s *Store) Close() {
	s.mu.Lock()
	s.indexes = make(map[string]*index)
	s.mu.Unlock()

	s.scrollMu.Lock()
	s.scrolls = make(map[string]*scrollState)
	s.scrollMu.Unlock()
}

// getIndex returns the named index, creating it when create is set.
// Callers must hold the write lock when create is true.
func (s *Store) getIndex(name string, create bool) (*index, bool) {
	idx, ok := s.indexes[name]
	if !ok && create {
		idx = &index{docs: make(map[string]*record), nextSeq: 1}
		s.indexes[name] = idx
	}
	return idx, idx != nil
}

// Index writes one document, generating an identifier when none is given
// and bumping the version. A stale sequence number is rejected.
func (s *Store) Index(_ context.Context, req db.IndexRequest) (domain.IndexedInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(req)
}

func (s *Store) indexLocked(req db.IndexRequest) (domain.IndexedInfo, error) {
	idx, _ := s.getIndex(req.Index, true)

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	prev, exists := idx.docs[id]
	if req.SeqNo > 0 || req.PrimaryTerm > 0 {
		if !exists || prev.seqNo != req.SeqNo || prev.primaryTerm != req.PrimaryTerm {
			return domain.IndexedInfo{}, &db.Error{Op: db.OpIndex, Status: 409, Err: domain.ErrVersionConflict}
		}
	}

	rec := &record{doc: cloneDoc(req.Doc), version: 1, seqNo: idx.nextSeq, primaryTerm: 1}
	idx.nextSeq++
	if exists {
		rec.version = prev.version + 1
	} else {
		idx.order = append(idx.order, id)
	}
	idx.docs[id] = rec

	return domain.IndexedInfo{ID: id, Version: rec.version, SeqNo: rec.seqNo, PrimaryTerm: rec.primaryTerm}, nil
}

// Get fetches one document by identifier.
func (s *Store) Get(_ context.Context, indexName, id string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.getIndex(indexName, false)
	if !ok {
		return nil, &db.Error{Op: db.OpGet, Status: 404, Err: domain.ErrIndexNotFound}
	}
	rec, ok := idx.docs[id]
	if !ok {
		return nil, &db.Error{Op: db.OpGet, Status: 404, Err: domain.ErrDocumentNotFound}
	}
	return cloneDoc(rec.doc), nil
}

// Exists reports whether the document is present.
func (s *Store) Exists(_ context.Context, indexName, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.getIndex(indexName, false)
	if !ok {
		return false, nil
	}
	_, ok = idx.docs[id]
	return ok, nil
}

// Delete removes one document by identifier.
func (s *Store) Delete(_ context.Context, indexName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.getIndex(indexName, false)
	if !ok {
		return &db.Error{Op: db.OpDelete, Status: 404, Err: domain.ErrIndexNotFound}
	}
	if _, ok := idx.docs[id]; !ok {
		return &db.Error{Op: db.OpDelete, Status: 404, Err: domain.ErrDocumentNotFound}
	}
	delete(idx.docs, id)
	idx.order = removeString(idx.order, id)
	return nil
}

// Bulk applies all writes in order. Failures abort the batch and report
// how far it got through the partial result slice.
func (s *Store) Bulk(_ context.Context, reqs []db.IndexRequest) ([]domain.IndexedInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.IndexedInfo, 0, len(reqs))
	for _, req := range reqs {
		info, err := s.indexLocked(req)
		if err != nil {
			return out, &db.Error{Op: db.OpBulk, Err: err}
		}
		out = append(out, info)
	}
	return out, nil
}

// DeleteByQuery removes every matching document and returns the count.
func (s *Store) DeleteByQuery(_ context.Context, indexName string, q *query.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.getIndex(indexName, false)
	if !ok {
		return 0, &db.Error{Op: db.OpDeleteByQuery, Status: 404, Err: domain.ErrIndexNotFound}
	}

	var removed int64
	for _, id := range append([]string(nil), idx.order...) {
		match, err := evalCriteria(q.Criteria(), idx.docs[id].doc)
		if err != nil {
			return removed, &db.Error{Op: db.OpDeleteByQuery, Err: err}
		}
		if match {
			delete(idx.docs, id)
			idx.order = removeString(idx.order, id)
			removed++
		}
	}
	return removed, nil
}

// CreateIndex creates an empty index with the given mapping.
func (s *Store) CreateIndex(_ context.Context, name string, mapping, settings *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.indexes[name]; exists {
		return &db.Error{Op: db.OpCreateIndex, Status: 400, Err: domain.ErrIndexExists}
	}
	idx, _ := s.getIndex(name, true)
	idx.mapping = mapping
	idx.settings = settings
	return nil
}

// DeleteIndex drops the index and everything in it.
func (s *Store) DeleteIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.indexes[name]; !exists {
		return &db.Error{Op: db.OpDeleteIndex, Status: 404, Err: domain.ErrIndexNotFound}
	}
	delete(s.indexes, name)
	return nil
}

// IndexExists reports whether the index was created.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

// PutMapping replaces the stored mapping.
func (s *Store) PutMapping(_ context.Context, name string, mapping *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.getIndex(name, false)
	if !ok {
		return &db.Error{Op: db.OpPutMapping, Status: 404, Err: domain.ErrIndexNotFound}
	}
	idx.mapping = mapping
	return nil
}

// GetMapping returns the stored mapping.
func (s *Store) GetMapping(_ context.Context, name string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.getIndex(name, false)
	if !ok {
		return nil, &db.Error{Op: db.OpGetMapping, Status: 404, Err: domain.ErrIndexNotFound}
	}
	if idx.mapping == nil {
		return document.New(), nil
	}
	return idx.mapping, nil
}

// RefreshIndex is a no-op: writes are visible immediately.
func (s *Store) RefreshIndex(_ context.Context, name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.indexes[name]; !ok {
		return &db.Error{Op: db.OpRefresh, Status: 404, Err: domain.ErrIndexNotFound}
	}
	return nil
}

// Search evaluates the query against the index and returns one page.
func (s *Store) Search(_ context.Context, indexName string, q *query.Query) (*query.Hits, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.collect(indexName, q)
	if err != nil {
		return nil, err
	}
	return page(hits, q.From(), q.Size()), nil
}

// Count returns the number of matches, ignoring pagination.
func (s *Store) Count(_ context.Context, indexName string, q *query.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.collect(indexName, q)
	if err != nil {
		return 0, err
	}
	return hits.Total, nil
}

// collect runs the full match/sort pipeline without pagination.
func (s *Store) collect(indexName string, q *query.Query) (*query.Hits, error) {
	idx, ok := s.getIndex(indexName, false)
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Status: 404, Err: domain.ErrIndexNotFound}
	}
	if q.IsNative() {
		return nil, &db.Error{Op: db.OpSearch, Err: domain.NewConversionError(q.Native(), "memory query", "native queries need a real backend")}
	}

	var hits []query.Hit
	for _, id := range idx.order {
		rec := idx.docs[id]
		match, err := evalCriteria(q.Criteria(), rec.doc)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		if !match {
			continue
		}
		hits = append(hits, query.Hit{ID: id, Score: 1, Doc: project(rec.doc, q.SourceFields())})
	}

	sortHits(hits, q.Sorts())
	return &query.Hits{Total: int64(len(hits)), MaxScore: maxScore(hits), Hits: hits}, nil
}

// OpenScroll snapshots the full result set and returns the first batch.
func (s *Store) OpenScroll(ctx context.Context, indexName string, q *query.Query) (*query.Hits, error) {
	s.mu.RLock()
	all, err := s.collect(indexName, q)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	keepAlive := q.ScrollKeepAlive()
	if keepAlive <= 0 {
		keepAlive = time.Minute
	}
	size := q.Size()
	if size <= 0 {
		size = query.DefaultSize
	}

	state := &scrollState{hits: all.Hits, total: all.Total, size: size, expires: s.now().Add(keepAlive)}
	scrollID := uuid.NewString()

	s.scrollMu.Lock()
	s.scrolls[scrollID] = state
	s.scrollMu.Unlock()

	return s.nextBatch(scrollID, state, keepAlive), nil
}

// ContinueScroll returns the next batch for the cursor.
func (s *Store) ContinueScroll(_ context.Context, scrollID string, keepAlive time.Duration) (*query.Hits, error) {
	s.scrollMu.Lock()
	defer s.scrollMu.Unlock()

	state, ok := s.scrolls[scrollID]
	if !ok || s.now().After(state.expires) {
		delete(s.scrolls, scrollID)
		return nil, &db.Error{Op: db.OpScroll, Status: 404, Err: domain.ErrScrollExpired}
	}
	if keepAlive <= 0 {
		keepAlive = time.Minute
	}
	return s.nextBatch(scrollID, state, keepAlive), nil
}

// nextBatch pops up to size hits off the snapshot. Callers hold scrollMu
// or have exclusive access to a freshly created state.
func (s *Store) nextBatch(scrollID string, state *scrollState, keepAlive time.Duration) *query.Hits {
	end := state.pos + state.size
	if end > len(state.hits) {
		end = len(state.hits)
	}
	batch := state.hits[state.pos:end]
	state.pos = end
	state.expires = s.now().Add(keepAlive)

	return &query.Hits{Total: state.total, MaxScore: maxScore(batch), Hits: batch, ScrollID: scrollID}
}

// ClearScroll drops the cursor.
func (s *Store) ClearScroll(_ context.Context, scrollID string) error {
	s.scrollMu.Lock()
	defer s.scrollMu.Unlock()
	delete(s.scrolls, scrollID)
	return nil
}

func page(all *query.Hits, from, size int) *query.Hits {
	hits := all.Hits
	if from > len(hits) {
		from = len(hits)
	}
	if from < 0 {
		from = 0
	}
	end := len(hits)
	if size > 0 && from+size < end {
		end = from + size
	}
	return &query.Hits{Total: all.Total, MaxScore: all.MaxScore, Hits: hits[from:end]}
}

func maxScore(hits []query.Hit) float64 {
	var m float64
	for _, h := range hits {
		if h.Score > m {
			m = h.Score
		}
	}
	return m
}

// sortHits orders hits by the sort clauses, falling back to the snapshot
// order for ties.
func sortHits(hits []query.Hit, sorts []query.Sort) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(hits, func(i, j int) bool {
		for _, s := range sorts {
			vi, _ := lookupPath(hits[i].Doc, s.Field)
			vj, _ := lookupPath(hits[j].Doc, s.Field)
			c := compareValues(first(vi), first(vj))
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func first(vals []any) any {
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

// project returns a copy restricted to the requested source fields.
func project(doc *document.Document, fields []string) *document.Document {
	if len(fields) == 0 {
		return cloneDoc(doc)
	}
	out := document.New()
	for _, f := range fields {
		if v, ok := doc.Get(f); ok {
			out.Set(f, v)
		}
	}
	return out
}

// cloneDoc deep-copies via the JSON codec, which also normalizes value
// types the way a real backend round trip would.
func cloneDoc(doc *document.Document) *document.Document {
	if doc == nil {
		return document.New()
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		cp := document.New()
		_ = doc.Walk(func(k string, v any) error {
			cp.Set(k, v)
			return nil
		})
		return cp
	}
	out := document.New()
	if err := json.Unmarshal(raw, out); err != nil {
		return doc
	}
	return out
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
