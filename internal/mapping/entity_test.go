package mapping

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
)

type product struct {
	ID        string    `esmap:"id,id"`
	Name      string    `esmap:"name,text"`
	Price     float64   `esmap:"price,double"`
	Available bool      `esmap:""`
	Tags      []string  `esmap:"tags,keyword"`
	Location  geo.Point `esmap:"location,geo_point"`
	Created   time.Time `esmap:"created_at,date"`
	Version   int64     `esmap:",version"`
	Secret    string    `esmap:"-"`
}

type baseDoc struct {
	ID string `esmap:"id,id"`
}

type article struct {
	baseDoc
	Title string `esmap:"title,text"`
}

func TestBuildEntityClassifiesFields(t *testing.T) {
	reg := NewRegistry(nil)
	e, err := reg.Entity(reflect.TypeOf(product{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e.Name() != "product" {
		t.Errorf("Name = %q", e.Name())
	}
	if e.IndexName() != "product" {
		t.Errorf("IndexName = %q, want product", e.IndexName())
	}
	if len(e.Properties()) != 8 {
		t.Fatalf("len(props) = %d, want 8 (Secret skipped)", len(e.Properties()))
	}

	id := e.IDProperty()
	if id == nil || id.StoreName() != "id" {
		t.Fatalf("id property = %+v", id)
	}
	ver := e.VersionProperty()
	if ver == nil || ver.StoreName() != "version" {
		t.Fatalf("version property = %+v", ver)
	}

	name, err := e.Property("Name")
	if err != nil {
		t.Fatalf("Property(Name): %v", err)
	}
	if name.FieldType() != FieldText {
		t.Errorf("Name fieldType = %s, want text", name.FieldType())
	}

	avail, err := e.Property("available")
	if err != nil {
		t.Fatalf("Property(available): %v", err)
	}
	if avail.FieldType() != FieldBoolean {
		t.Errorf("available inferred as %s, want boolean", avail.FieldType())
	}

	tags, _ := e.Property("tags")
	if !tags.IsCollection() || tags.ElemType().Kind() != reflect.String {
		t.Errorf("tags not detected as string collection")
	}

	loc, _ := e.Property("location")
	if loc.FieldType() != FieldGeoPoint {
		t.Errorf("location fieldType = %s", loc.FieldType())
	}

	created, _ := e.Property("created_at")
	if created.FieldType() != FieldDate {
		t.Errorf("created fieldType = %s", created.FieldType())
	}
}

func TestUnknownPropertyError(t *testing.T) {
	reg := NewRegistry(nil)
	e, _ := reg.Entity(reflect.TypeOf(product{}))

	_, err := e.Property("nope")
	if !errors.Is(err, domain.ErrUnknownProperty) {
		t.Fatalf("err = %v, want ErrUnknownProperty", err)
	}
}

func TestEmbeddedStructFlattened(t *testing.T) {
	reg := NewRegistry(nil)
	e, err := reg.Entity(reflect.TypeOf(article{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.IDProperty() == nil {
		t.Fatal("embedded id not promoted")
	}
	if got := e.IDProperty().FieldIndex(); len(got) != 2 {
		t.Errorf("id field index = %v, want nested path", got)
	}
	if len(e.Properties()) != 2 {
		t.Errorf("len(props) = %d, want 2", len(e.Properties()))
	}
}

func TestUnexportedFieldsSkipped(t *testing.T) {
	type widget struct {
		ID     string `esmap:"id,id"`
		hidden string
	}
	_ = widget{}.hidden

	reg := NewRegistry(nil)
	e, err := reg.Entity(reflect.TypeOf(widget{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Properties()) != 1 {
		t.Errorf("len(props) = %d, want 1", len(e.Properties()))
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	type bad struct {
		A string `esmap:"a,id"`
		B string `esmap:"b,id"`
	}
	reg := NewRegistry(nil)
	if _, err := reg.Entity(reflect.TypeOf(bad{})); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestNonNumericVersionRejected(t *testing.T) {
	type bad struct {
		ID string `esmap:"id,id"`
		V  string `esmap:"v,version"`
	}
	reg := NewRegistry(nil)
	if _, err := reg.Entity(reflect.TypeOf(bad{})); err == nil {
		t.Fatal("expected version type error")
	}
}

func TestSnakeCaseNaming(t *testing.T) {
	tests := map[string]string{
		"Product":     "product",
		"OrderItem":   "order_item",
		"HTTPLog":     "h_t_t_p_log",
		"userProfile": "user_profile",
	}
	for in, want := range tests {
		if got := SnakeCaseNaming(in); got != want {
			t.Errorf("SnakeCaseNaming(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegistryComputeOnce(t *testing.T) {
	reg := NewRegistry(nil)

	const n = 16
	var wg sync.WaitGroup
	out := make([]*Entity, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := reg.Entity(reflect.TypeOf(product{}))
			if err != nil {
				t.Errorf("Entity: %v", err)
				return
			}
			out[i] = e
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if out[i] != out[0] {
			t.Fatalf("entity %d is a distinct instance", i)
		}
	}
}

func TestSubtypeAliasRegistration(t *testing.T) {
	reg := NewRegistry(nil)
	if err := reg.RegisterSubtype("article", article{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	typ, err := reg.SubtypeFor("article")
	if err != nil {
		t.Fatalf("SubtypeFor: %v", err)
	}
	if typ != reflect.TypeOf(article{}) {
		t.Errorf("SubtypeFor = %v", typ)
	}

	if _, err := reg.SubtypeFor("ghost"); !errors.Is(err, domain.ErrUnknownAlias) {
		t.Errorf("err = %v, want ErrUnknownAlias", err)
	}

	e, _ := reg.Entity(reflect.TypeOf(article{}))
	if e.Alias() != "article" {
		t.Errorf("entity alias = %q, want article", e.Alias())
	}
}
