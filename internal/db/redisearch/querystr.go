package redisearch

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/criteria"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
)

// attrName maps a dotted field path onto the flat attribute alias used in
// the FT schema. FT.SEARCH attribute names cannot contain dots.
func attrName(path string) string {
	return strings.ReplaceAll(path, ".", "__")
}

// EmitQueryString renders a criteria chain into an FT.SEARCH query string.
// And-runs join with spaces; Or-separated groups join with | inside one
// parenthesized group.
func EmitQueryString(c criteria.Criteria) (string, error) {
	if c.IsMatchAll() {
		return "*", nil
	}

	var groups []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			groups = append(groups, strings.Join(current, " "))
			current = nil
		}
	}

	for _, node := range c.Chain() {
		if node.Join() == criteria.JoinOr {
			flush()
		}
		clause, err := emitLeaf(node)
		if err != nil {
			return "", err
		}
		if clause == "" {
			continue
		}
		current = append(current, clause)
	}
	flush()

	switch len(groups) {
	case 0:
		return "*", nil
	case 1:
		return groups[0], nil
	}
	for i, g := range groups {
		groups[i] = "(" + g + ")"
	}
	return "(" + strings.Join(groups, " | ") + ")", nil
}

func emitLeaf(node criteria.Criteria) (string, error) {
	clause, err := emitClause(attrName(node.Field()), node)
	if err != nil || clause == "" {
		return "", err
	}
	if node.Negated() {
		// Negating an already-negative clause flips it back to positive.
		if strings.HasPrefix(clause, "-") {
			return clause[1:], nil
		}
		return "-" + clause, nil
	}
	return clause, nil
}

func emitClause(field string, node criteria.Criteria) (string, error) {
	args := node.Values()

	switch node.Op() {
	case criteria.OpMatchAll:
		return "", nil
	case criteria.OpEquals:
		if f, ok := asNumber(args[0]); ok {
			return fmt.Sprintf("@%s:[%g %g]", field, f, f), nil
		}
		return fmt.Sprintf("@%s:{%s}", field, escapeTag(formatValue(args[0]))), nil
	case criteria.OpContains:
		return fmt.Sprintf("@%s:{*%s*}", field, escapeTag(formatValue(args[0]))), nil
	case criteria.OpStartsWith:
		return fmt.Sprintf("@%s:{%s*}", field, escapeTag(formatValue(args[0]))), nil
	case criteria.OpEndsWith:
		return fmt.Sprintf("@%s:{*%s}", field, escapeTag(formatValue(args[0]))), nil
	case criteria.OpGreaterThan:
		return numericRange(field, args[0], nil, true, false)
	case criteria.OpGreaterThanEqual:
		return numericRange(field, args[0], nil, false, false)
	case criteria.OpLessThan:
		return numericRange(field, nil, args[0], false, true)
	case criteria.OpLessThanEqual:
		return numericRange(field, nil, args[0], false, false)
	case criteria.OpBetween:
		return numericRange(field, args[0], args[1], false, false)
	case criteria.OpIn:
		return tagUnion(field, args), nil
	case criteria.OpNotIn:
		return "-" + tagUnion(field, args), nil
	case criteria.OpExists:
		return fmt.Sprintf("-ismissing(@%s)", field), nil
	case criteria.OpEmpty:
		return fmt.Sprintf("ismissing(@%s)", field), nil
	case criteria.OpNotEmpty:
		return fmt.Sprintf("-ismissing(@%s)", field), nil
	case criteria.OpWithin:
		center := args[0].(geo.Point)
		dist := args[1].(geo.Distance)
		unit := dist.Unit
		if unit == "" {
			unit = geo.Meters
		}
		return fmt.Sprintf("@%s:[%g %g %g %s]", field, center.Lon, center.Lat, dist.Value, unit), nil
	case criteria.OpRaw:
		return args[0].(string), nil
	default:
		return "", fmt.Errorf("%w: %s for redisearch", domain.ErrUnsupportedOperator, node.Op())
	}
}

// numericRange renders @field:[min max], marking exclusive bounds with a
// leading paren as FT.SEARCH expects.
func numericRange(field string, lower, upper any, exclLower, exclUpper bool) (string, error) {
	minBound := "-inf"
	maxBound := "+inf"

	if lower != nil {
		f, ok := asNumber(lower)
		if !ok {
			return "", domain.NewConversionError(lower, "numeric range bound", "not a number")
		}
		if exclLower {
			minBound = fmt.Sprintf("(%g", f)
		} else {
			minBound = fmt.Sprintf("%g", f)
		}
	}
	if upper != nil {
		f, ok := asNumber(upper)
		if !ok {
			return "", domain.NewConversionError(upper, "numeric range bound", "not a number")
		}
		if exclUpper {
			maxBound = fmt.Sprintf("(%g", f)
		} else {
			maxBound = fmt.Sprintf("%g", f)
		}
	}
	return fmt.Sprintf("@%s:[%s %s]", field, minBound, maxBound), nil
}

func tagUnion(field string, vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = escapeTag(formatValue(v))
	}
	return fmt.Sprintf("@%s:{%s}", field, strings.Join(parts, "|"))
}

func asNumber(v any) (float64, bool) {
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

func formatValue(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}
