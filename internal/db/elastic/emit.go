package elastic

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/criteria"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
	"github.com/kailas-cloud/esmap/internal/domain/query"
)

// EmitSearchBody renders a query into the search-body DSL as a generic map.
// Native fragments are passed through untouched as the query clause.
func EmitSearchBody(q *query.Query) (map[string]any, error) {
	body := map[string]any{
		"track_total_hits": true,
	}

	clause, err := emitQueryClause(q)
	if err != nil {
		return nil, err
	}
	body["query"] = clause

	if !q.IsCountOnly() {
		body["from"] = q.From()
		body["size"] = q.Size()
	}
	if sorts := q.Sorts(); len(sorts) > 0 {
		body["sort"] = emitSort(sorts)
	}
	if fields := q.SourceFields(); len(fields) > 0 {
		body["_source"] = fields
	}
	if q.MinScore() > 0 {
		body["min_score"] = q.MinScore()
	}
	return body, nil
}

func emitQueryClause(q *query.Query) (any, error) {
	if q.IsNative() {
		return json.RawMessage(q.Native()), nil
	}
	return EmitCriteria(q.Criteria())
}

// EmitCriteria renders a criteria chain into the bool-query DSL. And-runs
// become must groups; groups separated by Or land in a should clause with
// minimum_should_match 1.
func EmitCriteria(c criteria.Criteria) (any, error) {
	if c.IsMatchAll() {
		return map[string]any{"match_all": map[string]any{}}, nil
	}

	// Split the left-leaning chain into Or-separated groups of And-runs,
	// matching the chain's left-associative evaluation order.
	var groups [][]criteria.Criteria
	var current []criteria.Criteria
	for _, node := range c.Chain() {
		if node.Join() == criteria.JoinOr && len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, node)
	}
	groups = append(groups, current)

	rendered := make([]any, 0, len(groups))
	for _, group := range groups {
		clause, err := emitGroup(group)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, clause)
	}

	if len(rendered) == 1 {
		return rendered[0], nil
	}
	return map[string]any{
		"bool": map[string]any{
			"should":               rendered,
			"minimum_should_match": 1,
		},
	}, nil
}

func emitGroup(group []criteria.Criteria) (any, error) {
	var must, mustNot []any
	for _, node := range group {
		clause, negated, err := emitLeaf(node)
		if err != nil {
			return nil, err
		}
		if clause == nil {
			continue // match-all placeholder leaves nothing to emit
		}
		if negated {
			mustNot = append(mustNot, clause)
		} else {
			must = append(must, clause)
		}
	}

	if len(must) == 1 && len(mustNot) == 0 {
		return must[0], nil
	}
	if len(must) == 0 && len(mustNot) == 0 {
		return map[string]any{"match_all": map[string]any{}}, nil
	}

	b := map[string]any{}
	if len(must) > 0 {
		b["must"] = must
	}
	if len(mustNot) > 0 {
		b["must_not"] = mustNot
	}
	return map[string]any{"bool": b}, nil
}

// emitLeaf renders one constraint. The negated flag tells the caller to
// place the clause under must_not; Empty and IsNull invert the underlying
// exists clause themselves.
func emitLeaf(node criteria.Criteria) (clause any, negated bool, err error) {
	field := node.Field()
	args := node.Values()
	negated = node.Negated()

	switch node.Op() {
	case criteria.OpMatchAll:
		// A field leaf with no operator applied constrains nothing.
		return nil, false, nil
	case criteria.OpEquals:
		return map[string]any{"term": map[string]any{field: emitValue(args[0])}}, negated, nil
	case criteria.OpContains:
		return map[string]any{"wildcard": map[string]any{field: "*" + fmt.Sprintf("%v", args[0]) + "*"}}, negated, nil
	case criteria.OpStartsWith:
		return map[string]any{"prefix": map[string]any{field: fmt.Sprintf("%v", args[0])}}, negated, nil
	case criteria.OpEndsWith:
		return map[string]any{"wildcard": map[string]any{field: "*" + fmt.Sprintf("%v", args[0])}}, negated, nil
	case criteria.OpGreaterThan:
		return rangeClause(field, "gt", args[0]), negated, nil
	case criteria.OpGreaterThanEqual:
		return rangeClause(field, "gte", args[0]), negated, nil
	case criteria.OpLessThan:
		return rangeClause(field, "lt", args[0]), negated, nil
	case criteria.OpLessThanEqual:
		return rangeClause(field, "lte", args[0]), negated, nil
	case criteria.OpBetween:
		return map[string]any{"range": map[string]any{field: map[string]any{
			"gte": emitValue(args[0]),
			"lte": emitValue(args[1]),
		}}}, negated, nil
	case criteria.OpIn:
		return map[string]any{"terms": map[string]any{field: emitValues(args)}}, negated, nil
	case criteria.OpNotIn:
		return map[string]any{"terms": map[string]any{field: emitValues(args)}}, !negated, nil
	case criteria.OpExists:
		return map[string]any{"exists": map[string]any{"field": field}}, negated, nil
	case criteria.OpEmpty:
		return map[string]any{"exists": map[string]any{"field": field}}, !negated, nil
	case criteria.OpNotEmpty:
		return map[string]any{"exists": map[string]any{"field": field}}, negated, nil
	case criteria.OpWithin:
		center := args[0].(geo.Point)
		dist := args[1].(geo.Distance)
		return map[string]any{"geo_distance": map[string]any{
			"distance": dist.String(),
			field:      map[string]any{"lat": center.Lat, "lon": center.Lon},
		}}, negated, nil
	case criteria.OpBoundedBy:
		box := args[0].(geo.Box)
		return map[string]any{"geo_bounding_box": map[string]any{
			field: map[string]any{
				"top_left":     map[string]any{"lat": box.TopLeft.Lat, "lon": box.TopLeft.Lon},
				"bottom_right": map[string]any{"lat": box.BottomRight.Lat, "lon": box.BottomRight.Lon},
			},
		}}, negated, nil
	case criteria.OpRaw:
		return json.RawMessage(args[0].(string)), negated, nil
	default:
		return nil, false, fmt.Errorf("%w: %s for elasticsearch", domain.ErrUnsupportedOperator, node.Op())
	}
}

func rangeClause(field, bound string, v any) map[string]any {
	return map[string]any{"range": map[string]any{field: map[string]any{bound: emitValue(v)}}}
}

func emitValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func emitValues(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = emitValue(v)
	}
	return out
}

func emitSort(sorts []query.Sort) []any {
	out := make([]any, len(sorts))
	for i, s := range sorts {
		dir := "asc"
		if s.Desc {
			dir = "desc"
		}
		out[i] = map[string]any{s.Field: dir}
	}
	return out
}
