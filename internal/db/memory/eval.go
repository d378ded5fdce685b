package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/criteria"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
)

// evalCriteria evaluates the criteria chain against one document. Or splits
// the chain into groups; within a group the And-ed leaves must all hold, and
// the document matches when any group does.
func evalCriteria(c criteria.Criteria, doc *document.Document) (bool, error) {
	groupMatch := true
	anyGroup := false
	for i, node := range c.Chain() {
		if i > 0 && node.Join() == criteria.JoinOr {
			if groupMatch {
				anyGroup = true
			}
			groupMatch = true
		}
		leaf, err := evalLeaf(node, doc)
		if err != nil {
			return false, err
		}
		if node.Negated() {
			leaf = !leaf
		}
		groupMatch = groupMatch && leaf
	}
	return anyGroup || groupMatch, nil
}

func evalLeaf(node criteria.Criteria, doc *document.Document) (bool, error) {
	if node.Op() == criteria.OpMatchAll {
		return true, nil
	}

	vals, present := lookupPath(doc, node.Field())
	args := node.Values()

	switch node.Op() {
	case criteria.OpEquals:
		return anyMatch(vals, func(v any) bool { return compareValues(v, args[0]) == 0 }), nil
	case criteria.OpContains:
		needle := fmt.Sprintf("%v", args[0])
		return anyMatch(vals, func(v any) bool {
			if s, ok := v.(string); ok && strings.Contains(s, needle) {
				return true
			}
			return compareValues(v, args[0]) == 0
		}), nil
	case criteria.OpStartsWith:
		prefix := fmt.Sprintf("%v", args[0])
		return anyMatch(vals, func(v any) bool {
			s, ok := v.(string)
			return ok && strings.HasPrefix(s, prefix)
		}), nil
	case criteria.OpEndsWith:
		suffix := fmt.Sprintf("%v", args[0])
		return anyMatch(vals, func(v any) bool {
			s, ok := v.(string)
			return ok && strings.HasSuffix(s, suffix)
		}), nil
	case criteria.OpGreaterThan:
		return anyMatch(vals, func(v any) bool { return compareValues(v, args[0]) > 0 }), nil
	case criteria.OpGreaterThanEqual:
		return anyMatch(vals, func(v any) bool { return compareValues(v, args[0]) >= 0 }), nil
	case criteria.OpLessThan:
		return anyMatch(vals, func(v any) bool { return compareValues(v, args[0]) < 0 }), nil
	case criteria.OpLessThanEqual:
		return anyMatch(vals, func(v any) bool { return compareValues(v, args[0]) <= 0 }), nil
	case criteria.OpBetween:
		return anyMatch(vals, func(v any) bool {
			return compareValues(v, args[0]) >= 0 && compareValues(v, args[1]) <= 0
		}), nil
	case criteria.OpIn:
		return anyMatch(vals, func(v any) bool {
			for _, a := range args {
				if compareValues(v, a) == 0 {
					return true
				}
			}
			return false
		}), nil
	case criteria.OpNotIn:
		if !present {
			return true, nil
		}
		return !anyMatch(vals, func(v any) bool {
			for _, a := range args {
				if compareValues(v, a) == 0 {
					return true
				}
			}
			return false
		}), nil
	case criteria.OpExists:
		return present, nil
	case criteria.OpEmpty:
		return !present || allEmpty(vals), nil
	case criteria.OpNotEmpty:
		return present && !allEmpty(vals), nil
	case criteria.OpWithin:
		center := args[0].(geo.Point)
		dist := args[1].(geo.Distance)
		return anyMatch(vals, func(v any) bool {
			p, ok := asGeoPoint(v)
			return ok && geo.Haversine(center, p) <= dist.Meters()
		}), nil
	case criteria.OpBoundedBy:
		box := args[0].(geo.Box)
		return anyMatch(vals, func(v any) bool {
			p, ok := asGeoPoint(v)
			return ok && box.Contains(p)
		}), nil
	default:
		return false, fmt.Errorf("%w: %s in memory driver", domain.ErrUnsupportedOperator, node.Op())
	}
}

// lookupPath resolves a dotted field path against nested documents,
// flattening arrays at every step. present reports whether the path led
// to any value at all.
func lookupPath(doc *document.Document, path string) (vals []any, present bool) {
	if doc == nil {
		return nil, false
	}
	current := []any{doc}
	for _, seg := range strings.Split(path, ".") {
		var next []any
		for _, c := range current {
			d, ok := c.(*document.Document)
			if !ok {
				continue
			}
			v, ok := d.Get(seg)
			if !ok {
				continue
			}
			next = append(next, flatten(v)...)
		}
		if len(next) == 0 {
			return nil, false
		}
		current = next
	}
	return current, true
}

func flatten(v any) []any {
	if arr, ok := v.([]any); ok {
		var out []any
		for _, e := range arr {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []any{v}
}

func anyMatch(vals []any, pred func(any) bool) bool {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if pred(v) {
			return true
		}
	}
	return false
}

func allEmpty(vals []any) bool {
	for _, v := range vals {
		switch t := v.(type) {
		case nil:
		case string:
			if t != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// asGeoPoint reads a {lat, lon} sub-document back into a point.
func asGeoPoint(v any) (geo.Point, bool) {
	d, ok := v.(*document.Document)
	if !ok {
		return geo.Point{}, false
	}
	lat, okLat := d.Get("lat")
	lon, okLon := d.Get("lon")
	if !okLat || !okLon {
		return geo.Point{}, false
	}
	latF, okLat := toFloat(lat)
	lonF, okLon := toFloat(lon)
	if !okLat || !okLon {
		return geo.Point{}, false
	}
	return geo.Point{Lat: latF, Lon: lonF}, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}

// compareValues orders two scalars: numbers numerically, everything else
// by string form. Returns -1, 0, or 1; unrelated types compare by text.
func compareValues(a, b any) int {
	if t, ok := a.(time.Time); ok {
		a = t.UTC().Format(time.RFC3339Nano)
	}
	if t, ok := b.(time.Time); ok {
		b = t.UTC().Format(time.RFC3339Nano)
	}
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}
