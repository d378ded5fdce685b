package esmap

import (
	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/criteria"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
	"github.com/kailas-cloud/esmap/internal/domain/query"
	"github.com/kailas-cloud/esmap/internal/mapping"
)

// Document is an insertion-ordered field map, the wire representation of an
// entity.
type Document = document.Document

// NewDocument creates an empty document.
func NewDocument() *Document { return document.New() }

// DocumentFromMap creates a document from a plain map. Key order follows the
// map's sorted keys.
func DocumentFromMap(m map[string]any) *Document { return document.FromMap(m) }

// Criteria is an immutable filter condition chain.
type Criteria = criteria.Criteria

// Where starts a criteria chain on the given store field.
func Where(field string) Criteria { return criteria.Where(field) }

// MatchAll is the empty criteria matching every document.
func MatchAll() Criteria { return criteria.MatchAll() }

// Query pairs criteria with sorting, pagination, projection, and scroll
// settings.
type Query = query.Query

// Sort is one sort clause of a query.
type Sort = query.Sort

// Hits is the untyped result set of a search.
type Hits = query.Hits

// ShardFailure describes one failed shard in a partial result.
type ShardFailure = query.ShardFailure

// IndexedInfo is the store-side identity and concurrency metadata returned
// after a write.
type IndexedInfo = domain.IndexedInfo

// NewQuery creates a query from criteria.
func NewQuery(c Criteria) *Query { return query.New(c) }

// NativeQuery creates a query from a backend-native query fragment.
func NativeQuery(fragment string) *Query { return query.NewNative(fragment) }

// Point is a geographic coordinate pair.
type Point = geo.Point

// Box is a geographic bounding box.
type Box = geo.Box

// Distance is a length with a unit, used in geo criteria.
type Distance = geo.Distance

// NewPoint creates a validated geo point.
func NewPoint(lat, lon float64) (Point, error) { return geo.NewPoint(lat, lon) }

// ParseDistance parses strings like "5km", "3mi", or "250m".
func ParseDistance(s string) (Distance, error) { return geo.ParseDistance(s) }

// NamingStrategy derives an index name from an entity type name.
type NamingStrategy = mapping.NamingStrategy

// Hit is a typed search result.
type Hit[T any] struct {
	Item       T
	ID         string
	Score      float64
	SortValues []any
	Highlights map[string][]string
}
