// Package query provides the executable query value: a criteria chain plus
// sort, pagination, projection, and scroll settings, and the result carrier
// types returned by the store.
package query

import (
	"time"

	"github.com/kailas-cloud/esmap/internal/domain/criteria"
	"github.com/kailas-cloud/esmap/internal/domain/document"
)

// DefaultSize is the page size applied when none is requested.
const DefaultSize = 10

// Sort is one sort clause appended to a query.
type Sort struct {
	Field string
	Desc  bool
}

// Query is a complete, store-agnostic search request.
type Query struct {
	criteria criteria.Criteria
	native   string // raw native query fragment, bypasses the emitter

	sorts        []Sort
	from         int
	size         int
	sourceFields []string
	minScore     float64
	countOnly    bool
	allowPartial bool
	keepAlive    time.Duration
}

// New creates a query over a criteria chain.
func New(c criteria.Criteria) *Query {
	return &Query{criteria: c, size: DefaultSize}
}

// NewNative creates a query from a rendered native query fragment.
func NewNative(fragment string) *Query {
	return &Query{criteria: criteria.MatchAll(), native: fragment, size: DefaultSize}
}

// Criteria returns the criteria chain.
func (q *Query) Criteria() criteria.Criteria { return q.criteria }

// Native returns the raw native fragment, empty for criteria queries.
func (q *Query) Native() string { return q.native }

// IsNative reports whether the query bypasses the criteria emitter.
func (q *Query) IsNative() bool { return q.native != "" }

// WithSort appends a sort clause.
func (q *Query) WithSort(field string, desc bool) *Query {
	q.sorts = append(q.sorts, Sort{Field: field, Desc: desc})
	return q
}

// WithPage sets the result window.
func (q *Query) WithPage(from, size int) *Query {
	q.from = from
	if size > 0 {
		q.size = size
	}
	return q
}

// WithSource restricts the returned document fields.
func (q *Query) WithSource(fields ...string) *Query {
	q.sourceFields = fields
	return q
}

// WithMinScore drops hits scoring below the threshold.
func (q *Query) WithMinScore(s float64) *Query {
	q.minScore = s
	return q
}

// CountOnly marks the query as count semantics: no hits, no sort, no window.
func (q *Query) CountOnly() *Query {
	q.countOnly = true
	return q
}

// AllowPartialResults opts into partial results on shard failures instead
// of a store error.
func (q *Query) AllowPartialResults() *Query {
	q.allowPartial = true
	return q
}

// WithScroll sets the scroll keep-alive, enabling cursor continuation.
func (q *Query) WithScroll(keepAlive time.Duration) *Query {
	q.keepAlive = keepAlive
	return q
}

// Sorts returns the sort clauses in declaration order.
func (q *Query) Sorts() []Sort { return q.sorts }

// From returns the window offset.
func (q *Query) From() int { return q.from }

// Size returns the window size.
func (q *Query) Size() int { return q.size }

// SourceFields returns the projected fields, nil for the full document.
func (q *Query) SourceFields() []string { return q.sourceFields }

// MinScore returns the score threshold, 0 if unset.
func (q *Query) MinScore() float64 { return q.minScore }

// IsCountOnly reports whether the query carries count semantics.
func (q *Query) IsCountOnly() bool { return q.countOnly }

// PartialAllowed reports whether partial shard results are acceptable.
func (q *Query) PartialAllowed() bool { return q.allowPartial }

// ScrollKeepAlive returns the scroll keep-alive, 0 when scrolling is off.
func (q *Query) ScrollKeepAlive() time.Duration { return q.keepAlive }

// Hit is a single search result.
type Hit struct {
	ID         string
	Score      float64
	Doc        *document.Document
	SortValues []any
	Highlights map[string][]string
	Routing    string
}

// ShardFailure describes one failed shard in a partial result.
type ShardFailure struct {
	Index  string
	Shard  int
	Status int
	Reason string
}

// Hits is the ordered result set of a search.
type Hits struct {
	Total    int64
	MaxScore float64
	Hits     []Hit
	ScrollID string
	Failures []ShardFailure
}
