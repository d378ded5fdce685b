package convert

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
	"github.com/kailas-cloud/esmap/internal/mapping"
)

type address struct {
	City string `esmap:"city,keyword"`
	Zip  string `esmap:"zip,keyword"`
}

type person struct {
	ID      string    `esmap:"id,id"`
	Name    string    `esmap:"name,text"`
	Age     int       `esmap:"age,integer"`
	Active  bool      `esmap:"active"`
	Home    address   `esmap:"home,object"`
	Stops   []address `esmap:"stops,nested"`
	Tags    []string  `esmap:"tags,keyword"`
	Rating  float64   `esmap:"rating,double"`
	Joined  time.Time `esmap:"joined,date"`
	Where   geo.Point `esmap:"where,geo_point"`
	Version int64     `esmap:"version,version"`
	Score   float64   `esmap:",score"`
}

func newConverter(t *testing.T) (*Converter, *mapping.Registry) {
	t.Helper()
	reg := mapping.NewRegistry(nil)
	return New(reg), reg
}

func TestWriteReadRoundTrip(t *testing.T) {
	c, _ := newConverter(t)

	src := person{
		ID:     "p1",
		Name:   "Ada",
		Age:    36,
		Active: true,
		Home:   address{City: "London", Zip: "N1"},
		Stops: []address{
			{City: "Paris", Zip: "75001"},
			{City: "Zurich", Zip: "8001"},
		},
		Tags:    []string{"math", "engines"},
		Rating:  4.5,
		Joined:  time.Date(2021, 5, 1, 10, 30, 0, 0, time.UTC),
		Where:   geo.Point{Lat: 51.5, Lon: -0.12},
		Version: 3,
	}

	doc, err := c.Write(src)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := c.Read(doc, reflect.TypeOf(person{}))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, src) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, src)
	}
}

func TestWriteSkipsScoreProperty(t *testing.T) {
	c, _ := newConverter(t)
	doc, err := c.Write(person{ID: "p1", Score: 9.9})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := doc.Get("score"); ok {
		t.Error("score property written to document")
	}
}

func TestWriteFieldOrderFollowsDeclaration(t *testing.T) {
	c, _ := newConverter(t)
	doc, err := c.Write(person{ID: "p1", Name: "x"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	keys := doc.Keys()
	if keys[0] != "id" || keys[1] != "name" {
		t.Errorf("keys = %v, want id,name,... order", keys)
	}
}

type shape struct {
	Kind string `esmap:"kind,keyword"`
}

type circle struct {
	shape
	Radius float64 `esmap:"radius,double"`
}

func TestPolymorphicAliasRoundTrip(t *testing.T) {
	c, reg := newConverter(t)
	if err := reg.RegisterSubtype("circle", circle{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	doc, err := c.Write(circle{shape: shape{Kind: "round"}, Radius: 2})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if alias, _ := doc.GetString(TypeAliasKey); alias != "circle" {
		t.Fatalf("alias = %q, want circle", alias)
	}

	// Read back requesting the base type: alias resolves the subtype.
	got, err := c.Read(doc, reflect.TypeOf(shape{}))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	cc, ok := got.(circle)
	if !ok {
		t.Fatalf("got %T, want circle", got)
	}
	if cc.Radius != 2 || cc.Kind != "round" {
		t.Errorf("got %+v", cc)
	}
}

func TestUnknownAliasFailsConversion(t *testing.T) {
	c, _ := newConverter(t)
	doc := document.New()
	doc.Set(TypeAliasKey, "ghost")
	doc.Set("kind", "x")

	_, err := c.Read(doc, reflect.TypeOf(shape{}))
	if !errors.Is(err, domain.ErrConversion) {
		t.Fatalf("err = %v, want ErrConversion", err)
	}
	var ce *domain.ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %T, want *ConversionError", err)
	}
	if ce.Value != "ghost" {
		t.Errorf("ConversionError.Value = %v", ce.Value)
	}
}

type upperConverter struct{}

func (upperConverter) ToStore(v any) (any, error)   { return strings.ToUpper(v.(string)), nil }
func (upperConverter) FromStore(v any) (any, error) { return strings.ToLower(v.(string)), nil }

type tagged struct {
	ID   string `esmap:"id,id"`
	Code string `esmap:"code,keyword,converter=upper"`
}

func TestNamedFieldConverter(t *testing.T) {
	c, _ := newConverter(t)
	c.RegisterNamed("upper", upperConverter{})

	doc, err := c.Write(tagged{ID: "1", Code: "abc"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if v, _ := doc.Get("code"); v != "ABC" {
		t.Errorf("code = %v, want ABC", v)
	}

	got, err := c.Read(doc, reflect.TypeOf(tagged{}))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.(tagged).Code != "abc" {
		t.Errorf("Code = %q, want abc", got.(tagged).Code)
	}
}

func TestTypeConverterPrecedence(t *testing.T) {
	// A named converter bound to the field wins over a type-bound one.
	c, _ := newConverter(t)
	c.RegisterNamed("upper", upperConverter{})
	c.RegisterForType(reflect.TypeOf(""), failConverter{})

	doc, err := c.Write(tagged{ID: "1", Code: "abc"})
	if err == nil {
		// ID has no named converter, so the type converter applies and fails.
		t.Fatal("expected type converter to reject the id field")
	}
	_ = doc
}

type failConverter struct{}

func (failConverter) ToStore(v any) (any, error) {
	return nil, errors.New("refused")
}
func (failConverter) FromStore(v any) (any, error) {
	return nil, errors.New("refused")
}

func TestCoercionFromJSONNumbers(t *testing.T) {
	c, _ := newConverter(t)

	// Documents decoded from the wire carry float64 numbers.
	doc := document.New()
	doc.Set("id", "p2")
	doc.Set("age", float64(41))
	doc.Set("rating", float64(3))
	doc.Set("version", float64(7))

	got, err := c.Read(doc, reflect.TypeOf(person{}))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	p := got.(person)
	if p.Age != 41 || p.Rating != 3 || p.Version != 7 {
		t.Errorf("got %+v", p)
	}
}

func TestCoercionFailure(t *testing.T) {
	c, _ := newConverter(t)

	doc := document.New()
	doc.Set("id", "p3")
	doc.Set("age", "not-a-number")

	_, err := c.Read(doc, reflect.TypeOf(person{}))
	if !errors.Is(err, domain.ErrConversion) {
		t.Fatalf("err = %v, want ErrConversion", err)
	}
}

func TestApplyIndexedInfo(t *testing.T) {
	c, _ := newConverter(t)

	p := person{Name: "new"}
	info := domain.IndexedInfo{ID: "gen-1", Version: 2, SeqNo: 10, PrimaryTerm: 1}
	if err := c.ApplyIndexedInfo(&p, info); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.ID != "gen-1" {
		t.Errorf("ID = %q, want gen-1", p.ID)
	}
	if p.Version != 2 {
		t.Errorf("Version = %d, want 2", p.Version)
	}

	// An existing id is never overwritten.
	q := person{ID: "keep"}
	_ = c.ApplyIndexedInfo(&q, info)
	if q.ID != "keep" {
		t.Errorf("ID = %q, want keep", q.ID)
	}
}

func TestApplyScore(t *testing.T) {
	c, _ := newConverter(t)
	p := person{}
	if err := c.ApplyScore(&p, 1.25); err != nil {
		t.Fatalf("apply score: %v", err)
	}
	if p.Score != 1.25 {
		t.Errorf("Score = %g, want 1.25", p.Score)
	}
}

func TestEntityID(t *testing.T) {
	c, _ := newConverter(t)
	id, err := c.EntityID(person{ID: "p9"})
	if err != nil {
		t.Fatalf("EntityID: %v", err)
	}
	if id != "p9" {
		t.Errorf("id = %q, want p9", id)
	}
}
