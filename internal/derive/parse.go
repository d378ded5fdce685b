// Package derive parses repository method names into part trees and
// compiles them into criteria queries. Parsing happens once per method and
// is cached; argument binding is strictly positional at call time.
package derive

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/query"
	"github.com/kailas-cloud/esmap/internal/mapping"
)

// Subject is the query intent carried by the method-name prefix.
type Subject int

const (
	// SubjectFind returns matching entities.
	SubjectFind Subject = iota
	// SubjectCount returns the number of matches.
	SubjectCount
	// SubjectExists reports whether any match exists.
	SubjectExists
	// SubjectDelete removes the matches.
	SubjectDelete
)

// Part is one parsed predicate: a resolved property path plus an operator
// keyword and its argument arity.
type Part struct {
	Path     string // dot-separated store-side field path
	Property *mapping.Property
	Keyword  Keyword
	ArgCount int
}

// PartTree is the parsed form of a derived method name: OR-groups of
// AND-ed parts, plus sort clauses from the OrderBy suffix.
type PartTree struct {
	Method   string
	Subject  Subject
	Groups   [][]Part
	Sorts    []query.Sort
	ArgCount int
}

var subjectPrefixes = []struct {
	prefix  string
	subject Subject
}{
	{"FindAll", SubjectFind},
	{"Find", SubjectFind},
	{"GetAll", SubjectFind},
	{"Get", SubjectFind},
	{"ReadAll", SubjectFind},
	{"Read", SubjectFind},
	{"QueryAll", SubjectFind},
	{"Query", SubjectFind},
	{"SearchAll", SubjectFind},
	{"Search", SubjectFind},
	{"StreamAll", SubjectFind},
	{"Stream", SubjectFind},
	{"CountAll", SubjectCount},
	{"Count", SubjectCount},
	{"ExistsAll", SubjectExists},
	{"Exists", SubjectExists},
	{"DeleteAll", SubjectDelete},
	{"Delete", SubjectDelete},
	{"RemoveAll", SubjectDelete},
	{"Remove", SubjectDelete},
}

// Parse splits a method name into a PartTree, resolving property paths
// against the entity metadata. All structural validation happens here so
// invalid methods fail at repository construction, not at call time.
func Parse(reg *mapping.Registry, e *mapping.Entity, method string) (*PartTree, error) {
	rest, subject, ok := stripSubject(method)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no recognized subject prefix", domain.ErrInvalidQueryMethod, method)
	}

	tree := &PartTree{Method: method, Subject: subject}

	humps := splitHumps(rest)

	// The OrderBy clause is everything after the last OrderBy token pair.
	predicate, order := splitOrderBy(humps)

	if len(predicate) > 0 {
		if predicate[0] != "By" {
			return nil, fmt.Errorf("%w: %q: expected By before predicate", domain.ErrInvalidQueryMethod, method)
		}
		groups, err := parsePredicate(reg, e, predicate[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", domain.ErrInvalidQueryMethod, method, err)
		}
		tree.Groups = groups
	}

	if len(order) > 0 {
		sorts, err := parseOrder(reg, e, order)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", domain.ErrInvalidQueryMethod, method, err)
		}
		tree.Sorts = sorts
	}

	for _, group := range tree.Groups {
		for _, part := range group {
			tree.ArgCount += part.ArgCount
		}
	}
	return tree, nil
}

func stripSubject(method string) (rest string, subject Subject, ok bool) {
	for _, sp := range subjectPrefixes {
		if strings.HasPrefix(method, sp.prefix) {
			return method[len(sp.prefix):], sp.subject, true
		}
	}
	return "", 0, false
}

// splitHumps breaks a camel-case token into its capitalized humps.
// "NameAndPriceLessThan" becomes [Name And Price Less Than]. An uppercase
// run stays one hump until a lowercase rune follows, so "ByURLLike"
// becomes [By URL Like].
func splitHumps(s string) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	var humps []string
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		prevUpper := unicode.IsUpper(runes[i-1])
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if !prevUpper || nextLower {
			humps = append(humps, string(runes[start:i]))
			start = i
		}
	}
	humps = append(humps, string(runes[start:]))
	return humps
}

// splitOrderBy cuts the trailing Order By clause off the hump list.
func splitOrderBy(humps []string) (predicate, order []string) {
	for i := len(humps) - 2; i >= 0; i-- {
		if humps[i] == "Order" && humps[i+1] == "By" {
			return humps[:i], humps[i+2:]
		}
	}
	return humps, nil
}

// parsePredicate emits one part per And-group, splitting groups on Or.
func parsePredicate(reg *mapping.Registry, e *mapping.Entity, humps []string) ([][]Part, error) {
	if len(humps) == 0 {
		return nil, nil
	}

	var groups [][]Part
	var current []Part
	var partHumps []string

	flushPart := func() error {
		if len(partHumps) == 0 {
			return fmt.Errorf("empty predicate part")
		}
		part, err := parsePart(reg, e, partHumps)
		if err != nil {
			return err
		}
		current = append(current, part)
		partHumps = nil
		return nil
	}

	for _, h := range humps {
		switch h {
		case "And":
			if err := flushPart(); err != nil {
				return nil, err
			}
		case "Or":
			if err := flushPart(); err != nil {
				return nil, err
			}
			groups = append(groups, current)
			current = nil
		default:
			partHumps = append(partHumps, h)
		}
	}
	if err := flushPart(); err != nil {
		return nil, err
	}
	groups = append(groups, current)
	return groups, nil
}

// parsePart matches the trailing operator keyword, then resolves the
// remaining humps as a property path.
func parsePart(reg *mapping.Registry, e *mapping.Entity, humps []string) (Part, error) {
	kw, propHumps := matchKeyword(humps)
	if len(propHumps) == 0 {
		return Part{}, fmt.Errorf("part %q has no property", strings.Join(humps, ""))
	}

	path, prop, err := resolvePath(reg, e, propHumps)
	if err != nil && kw != KwSimple {
		// A property name may end in a keyword spelling, e.g. CheckIn.
		// Retry the full hump list as a plain equality part.
		if p2, pr2, err2 := resolvePath(reg, e, humps); err2 == nil {
			return Part{Path: p2, Property: pr2, Keyword: KwSimple, ArgCount: KwSimple.arity(pr2)}, nil
		}
	}
	if err != nil {
		return Part{}, err
	}

	return Part{
		Path:     path,
		Property: prop,
		Keyword:  kw,
		ArgCount: kw.arity(prop),
	}, nil
}

// resolvePath greedily matches property names against camel humps,
// longest concatenation first, backtracking into nested entities on
// resolution failure.
func resolvePath(reg *mapping.Registry, e *mapping.Entity, humps []string) (string, *mapping.Property, error) {
	for take := len(humps); take >= 1; take-- {
		name := strings.Join(humps[:take], "")
		prop, ok := e.PropertyFold(name)
		if !ok {
			continue
		}
		rest := humps[take:]
		if len(rest) == 0 {
			return prop.StoreName(), prop, nil
		}
		if !prop.IsEntity() {
			continue // shorter match may lead into a nested entity
		}
		nestedType := prop.Type()
		if prop.IsCollection() {
			nestedType = prop.ElemType()
		}
		nested, err := reg.Entity(nestedType)
		if err != nil {
			continue
		}
		subPath, subProp, err := resolvePath(reg, nested, rest)
		if err != nil {
			continue
		}
		return prop.StoreName() + "." + subPath, subProp, nil
	}
	return "", nil, fmt.Errorf("%w: %s has no property matching %q",
		domain.ErrUnknownProperty, e.Name(), strings.Join(humps, ""))
}

// parseOrder parses the OrderBy clause: property paths optionally followed
// by Asc or Desc.
func parseOrder(reg *mapping.Registry, e *mapping.Entity, humps []string) ([]query.Sort, error) {
	var sorts []query.Sort
	var acc []string

	flush := func(desc bool) error {
		if len(acc) == 0 {
			return fmt.Errorf("order clause without property")
		}
		path, _, err := resolvePath(reg, e, acc)
		if err != nil {
			return err
		}
		sorts = append(sorts, query.Sort{Field: path, Desc: desc})
		acc = nil
		return nil
	}

	for _, h := range humps {
		switch h {
		case "Asc":
			if err := flush(false); err != nil {
				return nil, err
			}
		case "Desc":
			if err := flush(true); err != nil {
				return nil, err
			}
		default:
			acc = append(acc, h)
		}
	}
	if len(acc) > 0 {
		if err := flush(false); err != nil {
			return nil, err
		}
	}
	return sorts, nil
}
