package esmap

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/esmap/internal/domain/query"
)

const defaultScrollKeepAlive = time.Minute

type hitRecord = query.Hit

// Stream is a pull iterator over a scrolled search. Batches are fetched
// lazily; not calling Next is the backpressure. Streams must be closed.
//
//	stream, _ := repo.SearchForStream(ctx, q)
//	defer stream.Close(ctx)
//	for stream.Next(ctx) {
//	    use(stream.Item())
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream[T any] struct {
	client *Client
	index  string
	decode func(hitRecord) (T, error)

	keepAlive time.Duration
	scrollID  string
	total     int64

	batch []hitRecord
	pos   int
	cur   T
	err   error
	done  bool
}

func openStream[T any](
	ctx context.Context, c *Client, index string, q *Query,
	decode func(hitRecord) (T, error),
) (*Stream[T], error) {
	keepAlive := q.ScrollKeepAlive()
	if keepAlive == 0 {
		keepAlive = defaultScrollKeepAlive
		q = q.WithScroll(keepAlive)
	}

	start := time.Now()
	hits, err := c.store.OpenScroll(ctx, index, q)
	c.obs.observe(ctx, index, "scroll", start, err)
	if err != nil {
		return nil, fmt.Errorf("open scroll: %w", err)
	}
	c.obs.observeScroll(1)

	return &Stream[T]{
		client:    c,
		index:     index,
		decode:    decode,
		keepAlive: keepAlive,
		scrollID:  hits.ScrollID,
		total:     hits.Total,
		batch:     hits.Hits,
	}, nil
}

// Next advances the stream. It returns false when the stream is exhausted or
// failed; check Err afterwards.
func (s *Stream[T]) Next(ctx context.Context) bool {
	if s.done || s.err != nil {
		return false
	}

	for s.pos >= len(s.batch) {
		if s.scrollID == "" {
			s.done = true
			return false
		}
		hits, err := s.client.store.ContinueScroll(ctx, s.scrollID, s.keepAlive)
		if err != nil {
			s.err = fmt.Errorf("continue scroll: %w", err)
			return false
		}
		if hits.ScrollID != "" {
			s.scrollID = hits.ScrollID
		}
		if len(hits.Hits) == 0 {
			s.done = true
			return false
		}
		s.batch = hits.Hits
		s.pos = 0
	}

	item, err := s.decode(s.batch[s.pos])
	if err != nil {
		s.err = err
		return false
	}
	s.pos++
	s.cur = item
	return true
}

// Item returns the element produced by the last successful Next.
func (s *Stream[T]) Item() T { return s.cur }

// Err returns the first error hit while streaming, nil on clean exhaustion.
func (s *Stream[T]) Err() error { return s.err }

// Total returns the total number of matches reported when the scroll opened.
func (s *Stream[T]) Total() int64 { return s.total }

// Close releases the server-side scroll context. Safe to call more than once.
func (s *Stream[T]) Close(ctx context.Context) error {
	if s.scrollID == "" {
		return nil
	}
	id := s.scrollID
	s.scrollID = ""
	s.done = true
	s.client.obs.observeScroll(-1)
	if err := s.client.store.ClearScroll(ctx, id); err != nil {
		return fmt.Errorf("clear scroll: %w", err)
	}
	return nil
}
