package derive

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/criteria"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
	"github.com/kailas-cloud/esmap/internal/mapping"
)

type maker struct {
	Name    string `esmap:"name,keyword"`
	Country string `esmap:"country,keyword"`
}

type product struct {
	ID        string    `esmap:"id,id"`
	Name      string    `esmap:"name,text"`
	Price     float64   `esmap:"price,double"`
	Available bool      `esmap:"available,boolean"`
	Rating    int       `esmap:"rating,integer"`
	Tags      []string  `esmap:"tags,keyword"`
	Location  geo.Point `esmap:"location,geo_point"`
	Maker     maker     `esmap:"maker,object"`
	CheckIn   string    `esmap:"check_in,keyword"`
}

func newTestDeriver(t *testing.T) (*Deriver, reflect.Type) {
	t.Helper()
	reg := mapping.NewRegistry(nil)
	return NewDeriver(reg), reflect.TypeOf(product{})
}

func TestParseSimpleEquality(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "FindByName")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if tree.Subject != SubjectFind {
		t.Errorf("subject = %d, want SubjectFind", tree.Subject)
	}
	if tree.ArgCount != 1 {
		t.Errorf("arg count = %d, want 1", tree.ArgCount)
	}
	if len(tree.Groups) != 1 || len(tree.Groups[0]) != 1 {
		t.Fatalf("groups = %+v, want one group with one part", tree.Groups)
	}
	part := tree.Groups[0][0]
	if part.Path != "name" || part.Keyword != KwSimple {
		t.Errorf("part = %+v, want name/KwSimple", part)
	}
}

func TestParseAcronymProperty(t *testing.T) {
	type page struct {
		ID  string `esmap:"id,id"`
		URL string `esmap:"url,keyword"`
	}
	d := NewDeriver(mapping.NewRegistry(nil))
	typ := reflect.TypeOf(page{})

	tree, err := d.Tree(typ, "FindByURL")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	part := tree.Groups[0][0]
	if part.Path != "url" || part.Keyword != KwSimple {
		t.Errorf("part = %+v, want url/KwSimple", part)
	}

	tree, err = d.Tree(typ, "FindByURLStartingWith")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if got := tree.Groups[0][0].Keyword; got != KwStartingWith {
		t.Errorf("keyword = %v, want KwStartingWith", got)
	}
}

func TestParseAndCompileConjunction(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "FindByNameAndPriceLessThan")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	q, err := tree.Compile("a", 5.0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	chain := q.Criteria().Chain()
	if len(chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(chain))
	}
	if chain[0].Field() != "name" || chain[0].Op() != criteria.OpEquals {
		t.Errorf("first leaf = %s %s", chain[0].Field(), chain[0].Op())
	}
	if chain[1].Field() != "price" || chain[1].Op() != criteria.OpLessThan {
		t.Errorf("second leaf = %s %s", chain[1].Field(), chain[1].Op())
	}
	if chain[1].Join() != criteria.JoinAnd {
		t.Errorf("join = %d, want JoinAnd", chain[1].Join())
	}
	if got := chain[1].Values(); len(got) != 1 || got[0] != 5.0 {
		t.Errorf("values = %v, want [5]", got)
	}
}

func TestParseDisjunctionGrouping(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "FindByNameOrRatingGreaterThanEqual")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(tree.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(tree.Groups))
	}

	q, err := tree.Compile("a", 3)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	chain := q.Criteria().Chain()
	if chain[1].Join() != criteria.JoinOr {
		t.Errorf("join = %d, want JoinOr", chain[1].Join())
	}
	if chain[1].Op() != criteria.OpGreaterThanEqual {
		t.Errorf("op = %s, want greater_than_equal", chain[1].Op())
	}
}

func TestParseNestedPropertyPath(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "FindByMakerCountry")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if got := tree.Groups[0][0].Path; got != "maker.country" {
		t.Errorf("path = %q, want maker.country", got)
	}
}

func TestGeoPointEqualityUsesDefaultDistance(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "FindByLocation")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	q, err := tree.Compile(geo.Point{Lat: 52.52, Lon: 13.4})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	leaf := q.Criteria().Chain()[0]
	if leaf.Op() != criteria.OpWithin {
		t.Fatalf("op = %s, want within", leaf.Op())
	}
	dist := leaf.Values()[1].(geo.Distance)
	if dist.String() != "0.001km" {
		t.Errorf("distance = %s, want 0.001km", dist)
	}
}

func TestParseWithinKeyword(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "FindByLocationWithin")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if tree.ArgCount != 2 {
		t.Fatalf("arg count = %d, want 2", tree.ArgCount)
	}

	q, err := tree.Compile(geo.Point{Lat: 1, Lon: 2}, "5km")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	dist := q.Criteria().Chain()[0].Values()[1].(geo.Distance)
	if dist.String() != "5km" {
		t.Errorf("distance = %s, want 5km", dist)
	}
}

func TestParseOrderByClause(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "FindByAvailableTrueOrderByPriceDescNameAsc")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if tree.ArgCount != 0 {
		t.Errorf("arg count = %d, want 0", tree.ArgCount)
	}
	if len(tree.Sorts) != 2 {
		t.Fatalf("sorts = %+v, want 2", tree.Sorts)
	}
	if tree.Sorts[0].Field != "price" || !tree.Sorts[0].Desc {
		t.Errorf("first sort = %+v, want price desc", tree.Sorts[0])
	}
	if tree.Sorts[1].Field != "name" || tree.Sorts[1].Desc {
		t.Errorf("second sort = %+v, want name asc", tree.Sorts[1])
	}
}

func TestCountSubjectCompilesToCountOnly(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "CountByAvailableTrue")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if tree.Subject != SubjectCount {
		t.Errorf("subject = %d, want SubjectCount", tree.Subject)
	}

	q, err := tree.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !q.IsCountOnly() {
		t.Error("query is not count-only")
	}
	leaf := q.Criteria().Chain()[0]
	if leaf.Op() != criteria.OpEquals || leaf.Values()[0] != true {
		t.Errorf("leaf = %s %v, want equals true", leaf.Op(), leaf.Values())
	}
}

func TestParseInSpreadsSliceArgument(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "FindByTagsIn")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	q, err := tree.Compile([]string{"red", "blue"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := q.Criteria().Chain()[0].Values()
	if len(got) != 2 || got[0] != "red" || got[1] != "blue" {
		t.Errorf("values = %v, want [red blue]", got)
	}
}

func TestPropertyNameEndingInKeyword(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "FindByCheckIn")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	part := tree.Groups[0][0]
	if part.Path != "check_in" || part.Keyword != KwSimple {
		t.Errorf("part = %+v, want check_in/KwSimple", part)
	}
}

func TestParseRejectsUnknownProperty(t *testing.T) {
	d, typ := newTestDeriver(t)

	_, err := d.Tree(typ, "FindByColor")
	if !errors.Is(err, domain.ErrInvalidQueryMethod) {
		t.Errorf("err = %v, want ErrInvalidQueryMethod", err)
	}
	if !errors.Is(err, domain.ErrUnknownProperty) {
		t.Errorf("err = %v, want wrapped ErrUnknownProperty", err)
	}
}

func TestParseRejectsUnknownPrefix(t *testing.T) {
	d, typ := newTestDeriver(t)

	if _, err := d.Tree(typ, "FetchByName"); !errors.Is(err, domain.ErrInvalidQueryMethod) {
		t.Errorf("err = %v, want ErrInvalidQueryMethod", err)
	}
}

func TestCompileRejectsArgumentCountMismatch(t *testing.T) {
	d, typ := newTestDeriver(t)

	tree, err := d.Tree(typ, "FindByNameAndPriceBetween")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if tree.ArgCount != 3 {
		t.Fatalf("arg count = %d, want 3", tree.ArgCount)
	}
	if _, err := tree.Compile("a"); !errors.Is(err, domain.ErrInvalidQueryMethod) {
		t.Errorf("err = %v, want ErrInvalidQueryMethod", err)
	}
}

func TestTreeIsCachedPerMethod(t *testing.T) {
	d, typ := newTestDeriver(t)

	first, err := d.Tree(typ, "FindByName")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	second, err := d.Tree(typ, "FindByName")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if first != second {
		t.Error("expected the identical cached tree on repeat lookup")
	}
}

func TestRenderNative(t *testing.T) {
	out, err := RenderNative(`{"match": {"name": "?0"}}`, "chair")
	if err != nil {
		t.Fatalf("RenderNative: %v", err)
	}
	want := `{"match": {"name": "chair"}}`
	if out != want {
		t.Errorf("out = %s, want %s", out, want)
	}
}

func TestRenderNativeNumbersUnquoted(t *testing.T) {
	out, err := RenderNative(`{"range": {"price": {"lt": ?0}}}`, 5.5)
	if err != nil {
		t.Fatalf("RenderNative: %v", err)
	}
	want := `{"range": {"price": {"lt": 5.5}}}`
	if out != want {
		t.Errorf("out = %s, want %s", out, want)
	}
}

func TestRenderNativeValidatesBindings(t *testing.T) {
	if _, err := RenderNative(`{"term": {"a": ?1}}`, "x"); !errors.Is(err, domain.ErrInvalidQueryMethod) {
		t.Errorf("unbound placeholder: err = %v, want ErrInvalidQueryMethod", err)
	}
	if _, err := RenderNative(`{"match_all": {}}`, "x"); !errors.Is(err, domain.ErrInvalidQueryMethod) {
		t.Errorf("unused argument: err = %v, want ErrInvalidQueryMethod", err)
	}
}
