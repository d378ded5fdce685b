package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/query"
)

// searchResult is the response envelope of search and scroll calls.
type searchResult struct {
	ScrollID string `json:"_scroll_id"`
	Shards   struct {
		Total      int `json:"total"`
		Failed     int `json:"failed"`
		Failures   []struct {
			Index  string `json:"index"`
			Shard  int    `json:"shard"`
			Status int    `json:"status"`
			Reason struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"reason"`
		} `json:"failures"`
	} `json:"_shards"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []struct {
			ID        string               `json:"_id"`
			Score     *float64             `json:"_score"`
			Routing   string               `json:"_routing"`
			Source    *document.Document   `json:"_source"`
			Sort      []any                `json:"sort"`
			Highlight map[string][]string  `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search executes one page of the query.
func (s *Store) Search(ctx context.Context, index string, q *query.Query) (*query.Hits, error) {
	body, err := EmitSearchBody(q)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	res, err := s.client.Search(
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(bytes.NewReader(data)),
		s.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, decodeError(db.OpSearch, res)
	}
	return s.decodeHits(db.OpSearch, res.Body, q)
}

// Count returns the number of matches.
func (s *Store) Count(ctx context.Context, index string, q *query.Query) (int64, error) {
	clause, err := emitQueryClause(q)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	data, err := json.Marshal(map[string]any{"query": clause})
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}

	res, err := s.client.Count(
		s.client.Count.WithIndex(index),
		s.client.Count.WithBody(bytes.NewReader(data)),
		s.client.Count.WithContext(ctx),
	)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return 0, decodeError(db.OpCount, res)
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return out.Count, nil
}

// OpenScroll starts a scroll cursor and returns the first batch.
func (s *Store) OpenScroll(ctx context.Context, index string, q *query.Query) (*query.Hits, error) {
	body, err := EmitSearchBody(q)
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Err: err}
	}
	delete(body, "from") // scroll does not allow an offset
	data, err := json.Marshal(body)
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Err: err}
	}

	keepAlive := q.ScrollKeepAlive()
	if keepAlive <= 0 {
		keepAlive = time.Minute
	}

	res, err := s.client.Search(
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(bytes.NewReader(data)),
		s.client.Search.WithScroll(keepAlive),
		s.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, decodeError(db.OpScroll, res)
	}
	return s.decodeHits(db.OpScroll, res.Body, q)
}

// ContinueScroll fetches the next batch for the cursor.
func (s *Store) ContinueScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*query.Hits, error) {
	if keepAlive <= 0 {
		keepAlive = time.Minute
	}
	res, err := s.client.Scroll(
		s.client.Scroll.WithScrollID(scrollID),
		s.client.Scroll.WithScroll(keepAlive),
		s.client.Scroll.WithContext(ctx),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, decodeError(db.OpScroll, res)
	}
	return s.decodeHits(db.OpScroll, res.Body, nil)
}

// ClearScroll releases the cursor on the backend.
func (s *Store) ClearScroll(ctx context.Context, scrollID string) error {
	res, err := s.client.ClearScroll(
		s.client.ClearScroll.WithScrollID(scrollID),
		s.client.ClearScroll.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpClearScroll, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError(db.OpClearScroll, res)
	}
	return nil
}

// decodeHits parses a search response body. Shard failures abort the call
// unless the query opted into partial results, in which case they are
// reported alongside the hits.
func (s *Store) decodeHits(op string, body io.Reader, q *query.Query) (*query.Hits, error) {
	var out searchResult
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, &db.Error{Op: op, Err: err}
	}

	hits := &query.Hits{
		Total:    out.Hits.Total.Value,
		ScrollID: out.ScrollID,
	}
	if out.Hits.MaxScore != nil {
		hits.MaxScore = *out.Hits.MaxScore
	}
	for _, h := range out.Hits.Hits {
		hit := query.Hit{
			ID:         h.ID,
			Doc:        h.Source,
			SortValues: h.Sort,
			Highlights: h.Highlight,
			Routing:    h.Routing,
		}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		hits.Hits = append(hits.Hits, hit)
	}
	for _, f := range out.Shards.Failures {
		hits.Failures = append(hits.Failures, query.ShardFailure{
			Index:  f.Index,
			Shard:  f.Shard,
			Status: f.Status,
			Reason: f.Reason.Type + ": " + f.Reason.Reason,
		})
	}

	if out.Shards.Failed > 0 && (q == nil || !q.PartialAllowed()) {
		return hits, &db.Error{Op: op, Err: fmt.Errorf("%d of %d shards failed", out.Shards.Failed, out.Shards.Total)}
	}
	return hits, nil
}
