// Package criteria provides the immutable boolean expression tree used as
// the query intermediate representation. Chains are built fluently; every
// operator and combinator returns a new value, leaving the receiver intact.
package criteria

import (
	"github.com/kailas-cloud/esmap/internal/domain/geo"
)

// Operator enumerates the constraint kinds a leaf can carry.
type Operator int

const (
	// OpMatchAll matches every document (empty criteria).
	OpMatchAll Operator = iota
	// OpEquals matches documents whose field equals the operand.
	OpEquals
	// OpContains matches substrings.
	OpContains
	// OpStartsWith matches prefixes.
	OpStartsWith
	// OpEndsWith matches suffixes.
	OpEndsWith
	// OpGreaterThan is an exclusive lower bound.
	OpGreaterThan
	// OpGreaterThanEqual is an inclusive lower bound.
	OpGreaterThanEqual
	// OpLessThan is an exclusive upper bound.
	OpLessThan
	// OpLessThanEqual is an inclusive upper bound.
	OpLessThanEqual
	// OpBetween is an inclusive two-sided range.
	OpBetween
	// OpIn matches any of the operand values.
	OpIn
	// OpNotIn matches none of the operand values.
	OpNotIn
	// OpExists matches documents carrying the field.
	OpExists
	// OpEmpty matches documents whose field is absent or empty.
	OpEmpty
	// OpNotEmpty matches documents whose field has a non-empty value.
	OpNotEmpty
	// OpWithin matches geo points within a distance of a center point.
	OpWithin
	// OpBoundedBy matches geo points inside a bounding box.
	OpBoundedBy
	// OpRaw carries a native expression fragment passed through untouched.
	OpRaw
)

// String returns the operator name used in error messages.
func (o Operator) String() string {
	switch o {
	case OpMatchAll:
		return "match_all"
	case OpEquals:
		return "equals"
	case OpContains:
		return "contains"
	case OpStartsWith:
		return "starts_with"
	case OpEndsWith:
		return "ends_with"
	case OpGreaterThan:
		return "greater_than"
	case OpGreaterThanEqual:
		return "greater_than_equal"
	case OpLessThan:
		return "less_than"
	case OpLessThanEqual:
		return "less_than_equal"
	case OpBetween:
		return "between"
	case OpIn:
		return "in"
	case OpNotIn:
		return "not_in"
	case OpExists:
		return "exists"
	case OpEmpty:
		return "empty"
	case OpNotEmpty:
		return "not_empty"
	case OpWithin:
		return "within"
	case OpBoundedBy:
		return "bounded_by"
	case OpRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Join is the boolean combinator linking a node to its predecessor.
type Join int

const (
	// JoinNone marks the head of a chain.
	JoinNone Join = iota
	// JoinAnd conjoins with the predecessor.
	JoinAnd
	// JoinOr disjoins with the predecessor.
	JoinOr
)

// Criteria is one node of a left-leaning chain: a field constraint plus an
// optional link to the preceding chain. The zero value is a match-all node.
type Criteria struct {
	prev    *Criteria
	join    Join
	field   string
	op      Operator
	values  []any
	negated bool
}

// Where starts a new criteria chain bound to a field path.
func Where(field string) Criteria {
	return Criteria{field: field, op: OpMatchAll}
}

// MatchAll returns the explicit always-true empty criteria.
func MatchAll() Criteria {
	return Criteria{op: OpMatchAll}
}

// And starts a new leaf for field, conjoined with the chain so far.
func (c Criteria) And(field string) Criteria {
	head := c
	return Criteria{prev: &head, join: JoinAnd, field: field, op: OpMatchAll}
}

// Or starts a new leaf for field, disjoined with the chain so far.
func (c Criteria) Or(field string) Criteria {
	head := c
	return Criteria{prev: &head, join: JoinOr, field: field, op: OpMatchAll}
}

// AndCriteria conjoins a fully built criteria chain with this one.
func (c Criteria) AndCriteria(other Criteria) Criteria {
	head := c
	res := other
	res.setChainPrev(&head, JoinAnd)
	return res
}

// OrCriteria disjoins a fully built criteria chain with this one.
func (c Criteria) OrCriteria(other Criteria) Criteria {
	head := c
	res := other
	res.setChainPrev(&head, JoinOr)
	return res
}

// setChainPrev deep-copies the chain of the receiver and attaches prev to
// its head, keeping the original untouched.
func (c *Criteria) setChainPrev(prev *Criteria, join Join) {
	if c.prev != nil {
		cp := *c.prev
		c.prev = &cp
		c.prev.setChainPrev(prev, join)
		return
	}
	c.prev = prev
	c.join = join
}

func (c Criteria) withOp(op Operator, values ...any) Criteria {
	c.op = op
	c.values = values
	return c
}

// Is constrains the current field to equal value.
func (c Criteria) Is(value any) Criteria { return c.withOp(OpEquals, value) }

// Contains constrains the current field to contain value as a substring.
func (c Criteria) Contains(value string) Criteria { return c.withOp(OpContains, value) }

// StartsWith constrains the current field to start with value.
func (c Criteria) StartsWith(value string) Criteria { return c.withOp(OpStartsWith, value) }

// EndsWith constrains the current field to end with value.
func (c Criteria) EndsWith(value string) Criteria { return c.withOp(OpEndsWith, value) }

// GreaterThan sets an exclusive lower bound.
func (c Criteria) GreaterThan(value any) Criteria { return c.withOp(OpGreaterThan, value) }

// GreaterThanEqual sets an inclusive lower bound.
func (c Criteria) GreaterThanEqual(value any) Criteria { return c.withOp(OpGreaterThanEqual, value) }

// LessThan sets an exclusive upper bound.
func (c Criteria) LessThan(value any) Criteria { return c.withOp(OpLessThan, value) }

// LessThanEqual sets an inclusive upper bound.
func (c Criteria) LessThanEqual(value any) Criteria { return c.withOp(OpLessThanEqual, value) }

// Between sets an inclusive two-sided range.
func (c Criteria) Between(lower, upper any) Criteria { return c.withOp(OpBetween, lower, upper) }

// In constrains the current field to one of values.
func (c Criteria) In(values ...any) Criteria { return c.withOp(OpIn, values...) }

// NotIn constrains the current field to none of values.
func (c Criteria) NotIn(values ...any) Criteria { return c.withOp(OpNotIn, values...) }

// Exists requires the current field to be present.
func (c Criteria) Exists() Criteria { return c.withOp(OpExists) }

// Empty requires the current field to be absent or empty.
func (c Criteria) Empty() Criteria { return c.withOp(OpEmpty) }

// NotEmpty requires the current field to carry a non-empty value.
func (c Criteria) NotEmpty() Criteria { return c.withOp(OpNotEmpty) }

// IsTrue constrains a boolean field to true.
func (c Criteria) IsTrue() Criteria { return c.withOp(OpEquals, true) }

// IsFalse constrains a boolean field to false.
func (c Criteria) IsFalse() Criteria { return c.withOp(OpEquals, false) }

// Within constrains a geo-point field to lie within distance of center.
// A zero distance is substituted with geo.DefaultWithinDistance (0.001km),
// turning the constraint into an equality-like geo filter.
func (c Criteria) Within(center geo.Point, distance geo.Distance) Criteria {
	if distance.IsZero() {
		distance = geo.DefaultWithinDistance
	}
	return c.withOp(OpWithin, center, distance)
}

// BoundedBy constrains a geo-point field to lie inside box.
func (c Criteria) BoundedBy(box geo.Box) Criteria { return c.withOp(OpBoundedBy, box) }

// Raw attaches a native expression fragment for the current field.
func (c Criteria) Raw(expr string) Criteria { return c.withOp(OpRaw, expr) }

// Not toggles negation on the current leaf.
func (c Criteria) Not() Criteria {
	c.negated = !c.negated
	return c
}

// Field returns the leaf's field path.
func (c Criteria) Field() string { return c.field }

// Op returns the leaf's operator.
func (c Criteria) Op() Operator { return c.op }

// Values returns the leaf's operand values.
func (c Criteria) Values() []any { return c.values }

// Negated reports whether the leaf is negated.
func (c Criteria) Negated() bool { return c.negated }

// Join returns how this node combines with its predecessor.
func (c Criteria) Join() Join { return c.join }

// IsMatchAll reports whether the whole chain is a single empty node.
func (c Criteria) IsMatchAll() bool {
	return c.prev == nil && c.op == OpMatchAll && c.field == "" && !c.negated
}

// Chain returns the nodes of the chain in source order, head first.
func (c Criteria) Chain() []Criteria {
	var stack []Criteria
	for n := &c; n != nil; n = n.prev {
		stack = append(stack, *n)
	}
	// reverse: prev links run tail-to-head
	out := make([]Criteria, len(stack))
	for i, n := range stack {
		out[len(stack)-1-i] = n
	}
	return out
}
