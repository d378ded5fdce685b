package redisearch

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/criteria"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
)

func assertQuery(t *testing.T, c criteria.Criteria, want string) {
	t.Helper()
	got, err := EmitQueryString(c)
	if err != nil {
		t.Fatalf("EmitQueryString: %v", err)
	}
	if got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestEmitMatchAll(t *testing.T) {
	assertQuery(t, criteria.MatchAll(), "*")
}

func TestEmitTagEquality(t *testing.T) {
	assertQuery(t, criteria.Where("name").Is("apple"), "@name:{apple}")
}

func TestEmitNumericEquality(t *testing.T) {
	assertQuery(t, criteria.Where("price").Is(5.0), "@price:[5 5]")
}

func TestEmitConjunction(t *testing.T) {
	c := criteria.Where("name").Is("apple").And("price").LessThan(5.0)
	assertQuery(t, c, "@name:{apple} @price:[-inf (5]")
}

func TestEmitDisjunctionGroups(t *testing.T) {
	c := criteria.Where("name").Is("apple").Or("price").GreaterThan(7.0).And("stock").Is(1)
	assertQuery(t, c, "((@name:{apple}) | (@price:[(7 +inf] @stock:[1 1]))")
}

func TestEmitNegation(t *testing.T) {
	assertQuery(t, criteria.Where("name").Is("apple").Not(), "-@name:{apple}")
	// double negation flips back
	assertQuery(t, criteria.Where("tags").NotIn("red").Not(), "@tags:{red}")
}

func TestEmitWildcards(t *testing.T) {
	assertQuery(t, criteria.Where("name").Contains("pp"), "@name:{*pp*}")
	assertQuery(t, criteria.Where("name").StartsWith("ap"), "@name:{ap*}")
	assertQuery(t, criteria.Where("name").EndsWith("le"), "@name:{*le}")
}

func TestEmitRanges(t *testing.T) {
	assertQuery(t, criteria.Where("price").Between(2.0, 6.0), "@price:[2 6]")
	assertQuery(t, criteria.Where("price").GreaterThanEqual(2.0), "@price:[2 +inf]")
}

func TestEmitMembership(t *testing.T) {
	assertQuery(t, criteria.Where("tags").In("red", "green"), "@tags:{red|green}")
}

func TestEmitExistence(t *testing.T) {
	assertQuery(t, criteria.Where("name").Exists(), "-ismissing(@name)")
	assertQuery(t, criteria.Where("name").Empty(), "ismissing(@name)")
}

func TestEmitGeo(t *testing.T) {
	c := criteria.Where("location").Within(geo.Point{Lat: 52.52, Lon: 13.405}, geo.Distance{Value: 5, Unit: geo.Kilometers})
	assertQuery(t, c, "@location:[13.405 52.52 5 km]")
}

func TestEmitBoundingBoxUnsupported(t *testing.T) {
	c := criteria.Where("location").BoundedBy(geo.Box{
		TopLeft:     geo.Point{Lat: 53, Lon: 13},
		BottomRight: geo.Point{Lat: 52, Lon: 14},
	})
	_, err := EmitQueryString(c)
	if !errors.Is(err, domain.ErrUnsupportedOperator) {
		t.Fatalf("err = %v, want ErrUnsupportedOperator", err)
	}
}

func TestEmitNestedFieldAlias(t *testing.T) {
	assertQuery(t, criteria.Where("maker.country").Is("de"), "@maker__country:{de}")
}

func TestEmitTagEscaping(t *testing.T) {
	got, err := EmitQueryString(criteria.Where("name").Is("a-b c"))
	if err != nil {
		t.Fatalf("EmitQueryString: %v", err)
	}
	if !strings.Contains(got, `a\-b\ c`) {
		t.Errorf("query = %q, want escaped dash and space", got)
	}
}

func TestBuildCreateArgsFromMapping(t *testing.T) {
	nested := document.New()
	nested.Set("properties", document.New().
		Set("country", document.New().Set("type", "keyword")))

	mapping := document.New()
	mapping.Set("properties", document.New().
		Set("name", document.New().Set("type", "text")).
		Set("price", document.New().Set("type", "double")).
		Set("available", document.New().Set("type", "boolean")).
		Set("location", document.New().Set("type", "geo_point")).
		Set("maker", nested))

	args, err := buildCreateArgs("products", mapping)
	if err != nil {
		t.Fatalf("buildCreateArgs: %v", err)
	}
	joined := strings.Join(args, " ")

	wantPrefix := "products ON JSON PREFIX 1 products: SCHEMA"
	if !strings.HasPrefix(joined, wantPrefix) {
		t.Errorf("args = %q, want prefix %q", joined, wantPrefix)
	}
	for _, fragment := range []string{
		"$.name AS name TEXT INDEXMISSING",
		"$.price AS price NUMERIC INDEXMISSING",
		"$.available AS available TAG INDEXMISSING",
		"$.location AS location GEO",
		"$.maker.country AS maker__country TAG INDEXMISSING",
	} {
		if !strings.Contains(joined, fragment) {
			t.Errorf("args %q missing %q", joined, fragment)
		}
	}
}

func TestBuildCreateArgsRejectsEmptyMapping(t *testing.T) {
	if _, err := buildCreateArgs("products", document.New()); err == nil {
		t.Error("expected an error for a mapping without fields")
	}
}
