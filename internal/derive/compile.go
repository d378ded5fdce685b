package derive

import (
	"fmt"
	"reflect"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/criteria"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
	"github.com/kailas-cloud/esmap/internal/domain/query"
	"github.com/kailas-cloud/esmap/internal/mapping"
)

// Compile binds positional arguments to the parsed tree and produces an
// executable query. Argument count mismatches are rejected before any
// criteria are built.
func (t *PartTree) Compile(args ...any) (*query.Query, error) {
	if len(args) != t.ArgCount {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d",
			domain.ErrInvalidQueryMethod, t.Method, t.ArgCount, len(args))
	}

	c := criteria.MatchAll()
	first := true
	next := 0
	for gi, group := range t.Groups {
		for pi, part := range group {
			partArgs := args[next : next+part.ArgCount]
			next += part.ArgCount

			var base criteria.Criteria
			switch {
			case first:
				base = criteria.Where(part.Path)
				first = false
			case pi == 0 && gi > 0:
				base = c.Or(part.Path)
			default:
				base = c.And(part.Path)
			}

			applied, err := applyKeyword(base, part, partArgs)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", t.Method, err)
			}
			c = applied
		}
	}

	q := query.New(c)
	for _, s := range t.Sorts {
		q = q.WithSort(s.Field, s.Desc)
	}
	if t.Subject == SubjectCount || t.Subject == SubjectExists {
		q = q.CountOnly()
	}
	return q, nil
}

func applyKeyword(c criteria.Criteria, part Part, args []any) (criteria.Criteria, error) {
	switch part.Keyword {
	case KwSimple:
		if part.Property != nil && part.Property.FieldType() == mapping.FieldGeoPoint {
			point, err := asPoint(args[0])
			if err != nil {
				return criteria.Criteria{}, err
			}
			return c.Within(point, geo.Distance{}), nil
		}
		return c.Is(args[0]), nil
	case KwNot:
		return c.Is(args[0]).Not(), nil
	case KwContaining:
		s, err := asString(part, args[0])
		if err != nil {
			return criteria.Criteria{}, err
		}
		return c.Contains(s), nil
	case KwNotContaining:
		s, err := asString(part, args[0])
		if err != nil {
			return criteria.Criteria{}, err
		}
		return c.Contains(s).Not(), nil
	case KwStartingWith:
		s, err := asString(part, args[0])
		if err != nil {
			return criteria.Criteria{}, err
		}
		return c.StartsWith(s), nil
	case KwEndingWith:
		s, err := asString(part, args[0])
		if err != nil {
			return criteria.Criteria{}, err
		}
		return c.EndsWith(s), nil
	case KwGreaterThan:
		return c.GreaterThan(args[0]), nil
	case KwGreaterThanEqual:
		return c.GreaterThanEqual(args[0]), nil
	case KwLessThan:
		return c.LessThan(args[0]), nil
	case KwLessThanEqual:
		return c.LessThanEqual(args[0]), nil
	case KwBetween:
		return c.Between(args[0], args[1]), nil
	case KwIn:
		return c.In(spread(args[0])...), nil
	case KwNotIn:
		return c.NotIn(spread(args[0])...), nil
	case KwExists, KwIsNotNull:
		return c.Exists(), nil
	case KwIsNull:
		return c.Exists().Not(), nil
	case KwEmpty:
		return c.Empty(), nil
	case KwNotEmpty:
		return c.NotEmpty(), nil
	case KwTrue:
		return c.IsTrue(), nil
	case KwFalse:
		return c.IsFalse(), nil
	case KwWithin, KwNear:
		point, err := asPoint(args[0])
		if err != nil {
			return criteria.Criteria{}, err
		}
		dist, err := asDistance(args[1])
		if err != nil {
			return criteria.Criteria{}, err
		}
		return c.Within(point, dist), nil
	default:
		return criteria.Criteria{}, fmt.Errorf("%w: keyword %d", domain.ErrUnsupportedOperator, part.Keyword)
	}
}

func asString(part Part, arg any) (string, error) {
	s, ok := arg.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s takes a string argument, got %T", domain.ErrConversion, part.Path, arg)
	}
	return s, nil
}

// spread flattens a slice argument for In and NotIn so callers may pass
// either a []T or a single value.
func spread(arg any) []any {
	rv := reflect.ValueOf(arg)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{arg}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func asPoint(arg any) (geo.Point, error) {
	switch v := arg.(type) {
	case geo.Point:
		return v, nil
	case *geo.Point:
		if v != nil {
			return *v, nil
		}
	}
	return geo.Point{}, fmt.Errorf("%w: geo argument must be a point, got %T", domain.ErrConversion, arg)
}

func asDistance(arg any) (geo.Distance, error) {
	switch v := arg.(type) {
	case geo.Distance:
		return v, nil
	case string:
		return geo.ParseDistance(v)
	case float64:
		return geo.Distance{Value: v, Unit: geo.Kilometers}, nil
	}
	return geo.Distance{}, fmt.Errorf("%w: distance argument must be a distance, got %T", domain.ErrConversion, arg)
}
