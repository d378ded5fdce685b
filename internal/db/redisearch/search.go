package redisearch

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/query"
)

// cursor is the client-side scroll state: FT.SEARCH pages by offset, so a
// scroll is just a remembered query plus a position.
type cursor struct {
	index    string
	queryStr string
	sorts    []query.Sort
	pos      int
	size     int
	expires  time.Time
}

// queryString picks the pre-rendered native fragment or emits one from the
// criteria chain. Native queries are raw FT.SEARCH query strings here.
func queryString(q *query.Query) (string, error) {
	if q.IsNative() {
		return q.Native(), nil
	}
	return EmitQueryString(q.Criteria())
}

// Search executes one page of the query.
func (s *Store) Search(ctx context.Context, index string, q *query.Query) (*query.Hits, error) {
	queryStr, err := queryString(q)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return s.runSearch(ctx, index, queryStr, q.Sorts(), q.From(), q.Size())
}

// Count returns the number of matches via LIMIT 0 0.
func (s *Store) Count(ctx context.Context, index string, q *query.Query) (int64, error) {
	queryStr, err := queryString(q)
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, queryStr, "LIMIT", "0", "0", "DIALECT", "2").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, searchError(db.OpCount, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return total, nil
}

// OpenScroll opens a client-side cursor and returns the first batch.
func (s *Store) OpenScroll(ctx context.Context, index string, q *query.Query) (*query.Hits, error) {
	queryStr, err := queryString(q)
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Err: err}
	}

	size := q.Size()
	if size <= 0 {
		size = query.DefaultSize
	}
	keepAlive := q.ScrollKeepAlive()
	if keepAlive <= 0 {
		keepAlive = time.Minute
	}

	cur := &cursor{index: index, queryStr: queryStr, sorts: q.Sorts(), size: size, expires: time.Now().Add(keepAlive)}
	scrollID := uuid.NewString()

	hits, err := s.advance(ctx, cur, keepAlive)
	if err != nil {
		return nil, err
	}
	hits.ScrollID = scrollID

	s.scrollMu.Lock()
	s.scrolls[scrollID] = cur
	s.scrollMu.Unlock()
	return hits, nil
}

// ContinueScroll fetches the next batch for the cursor.
func (s *Store) ContinueScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*query.Hits, error) {
	s.scrollMu.Lock()
	cur, ok := s.scrolls[scrollID]
	if ok && time.Now().After(cur.expires) {
		delete(s.scrolls, scrollID)
		ok = false
	}
	s.scrollMu.Unlock()

	if !ok {
		return nil, &db.Error{Op: db.OpScroll, Status: 404, Err: domain.ErrScrollExpired}
	}
	if keepAlive <= 0 {
		keepAlive = time.Minute
	}

	hits, err := s.advance(ctx, cur, keepAlive)
	if err != nil {
		return nil, err
	}
	hits.ScrollID = scrollID
	return hits, nil
}

// ClearScroll drops the cursor.
func (s *Store) ClearScroll(_ context.Context, scrollID string) error {
	s.scrollMu.Lock()
	defer s.scrollMu.Unlock()
	delete(s.scrolls, scrollID)
	return nil
}

// advance runs one page at the cursor position and moves it forward.
func (s *Store) advance(ctx context.Context, cur *cursor, keepAlive time.Duration) (*query.Hits, error) {
	hits, err := s.runSearch(ctx, cur.index, cur.queryStr, cur.sorts, cur.pos, cur.size)
	if err != nil {
		return nil, err
	}
	cur.pos += len(hits.Hits)
	cur.expires = time.Now().Add(keepAlive)
	return hits, nil
}

// runSearch issues FT.SEARCH and decodes the RESP2 reply. JSON indexes
// return documents in the "$" field of each hit.
func (s *Store) runSearch(ctx context.Context, index, queryStr string, sorts []query.Sort, from, size int) (*query.Hits, error) {
	args := []string{index, queryStr}

	// FT.SEARCH supports a single SORTBY attribute.
	if len(sorts) > 0 {
		dir := "ASC"
		if sorts[0].Desc {
			dir = "DESC"
		}
		args = append(args, "SORTBY", attrName(sorts[0].Field), dir)
	}

	args = append(args, "LIMIT", strconv.Itoa(from), strconv.Itoa(size), "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, searchError(db.OpSearch, err)
	}
	return s.parseSearchResult(index, raw)
}

// searchKeys runs the query with NOCONTENT and returns matching keys.
func (s *Store) searchKeys(ctx context.Context, index, queryStr string, limit int) ([]string, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(index, queryStr, "NOCONTENT", "LIMIT", "0", strconv.Itoa(limit), "DIALECT", "2").
		Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, searchError(db.OpSearch, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	// NOCONTENT reply: [total, key1, key2, ...]
	keys := make([]string, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		key, err := msg.ToString()
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// parseSearchResult decodes the 2-stride reply: [total, key1, fields1, ...].
func (s *Store) parseSearchResult(index string, raw []rueidis.RedisMessage) (*query.Hits, error) {
	if len(raw) == 0 {
		return &query.Hits{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	hits := &query.Hits{Total: total}
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		hit := query.Hit{ID: docID(index, key), Score: 1}
		for j := 0; j+1 < len(fields); j += 2 {
			name, err := fields[j].ToString()
			if err != nil || name != "$" {
				continue
			}
			payload, err := fields[j+1].ToString()
			if err != nil {
				continue
			}
			doc, err := decodeJSONDoc(payload)
			if err != nil {
				return nil, &db.Error{Op: db.OpSearch, Err: err}
			}
			hit.Doc = doc
		}
		hits.Hits = append(hits.Hits, hit)
	}
	if hits.Total > 0 {
		hits.MaxScore = 1
	}
	return hits, nil
}

func searchError(op string, err error) error {
	if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
		return &db.Error{Op: op, Status: 404, Err: domain.ErrIndexNotFound}
	}
	return &db.Error{Op: op, Err: err}
}
