package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/criteria"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
	"github.com/kailas-cloud/esmap/internal/domain/query"
)

func seedProducts(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		id        string
		name      string
		price     float64
		available bool
		tags      []any
	}{
		{"1", "apple", 3, true, []any{"fruit", "red"}},
		{"2", "avocado", 7, true, []any{"fruit", "green"}},
		{"3", "anvil", 4, false, []any{"tool"}},
	}
	for _, r := range rows {
		doc := document.New()
		doc.Set("name", r.name)
		doc.Set("price", r.price)
		doc.Set("available", r.available)
		doc.Set("tags", r.tags)
		if _, err := s.Index(ctx, db.IndexRequest{Index: "products", ID: r.id, Doc: doc}); err != nil {
			t.Fatalf("Index %s: %v", r.id, err)
		}
	}
}

func TestIndexGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	doc := document.New()
	doc.Set("name", "apple")
	info, err := s.Index(ctx, db.IndexRequest{Index: "products", Doc: doc})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if info.ID == "" {
		t.Fatal("expected a generated id")
	}
	if info.Version != 1 {
		t.Errorf("version = %d, want 1", info.Version)
	}

	got, err := s.Get(ctx, "products", info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if name, _ := got.GetString("name"); name != "apple" {
		t.Errorf("name = %q, want apple", name)
	}

	if err := s.Delete(ctx, "products", info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "products", info.ID); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestReindexBumpsVersion(t *testing.T) {
	s := New()
	ctx := context.Background()

	doc := document.New().Set("name", "apple")
	first, err := s.Index(ctx, db.IndexRequest{Index: "products", ID: "1", Doc: doc})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	second, err := s.Index(ctx, db.IndexRequest{Index: "products", ID: "1", Doc: doc})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if second.Version != first.Version+1 {
		t.Errorf("version = %d, want %d", second.Version, first.Version+1)
	}
}

func TestOptimisticConcurrencyConflict(t *testing.T) {
	s := New()
	ctx := context.Background()

	doc := document.New().Set("name", "apple")
	info, err := s.Index(ctx, db.IndexRequest{Index: "products", ID: "1", Doc: doc})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	// correct seq_no succeeds
	if _, err := s.Index(ctx, db.IndexRequest{
		Index: "products", ID: "1", Doc: doc,
		SeqNo: info.SeqNo, PrimaryTerm: info.PrimaryTerm,
	}); err != nil {
		t.Fatalf("Index with matching seq_no: %v", err)
	}

	// stale seq_no is rejected
	_, err = s.Index(ctx, db.IndexRequest{
		Index: "products", ID: "1", Doc: doc,
		SeqNo: info.SeqNo, PrimaryTerm: info.PrimaryTerm,
	})
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Status != 409 {
		t.Errorf("err = %v, want db.Error with status 409", err)
	}
}

func TestSearchConjunction(t *testing.T) {
	s := New()
	seedProducts(t, s)

	c := criteria.Where("name").StartsWith("a").And("price").LessThan(5.0)
	hits, err := s.Search(context.Background(), "products", query.New(c))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits.Total != 2 {
		t.Fatalf("total = %d, want 2", hits.Total)
	}
	ids := map[string]bool{}
	for _, h := range hits.Hits {
		ids[h.ID] = true
	}
	if !ids["1"] || !ids["3"] {
		t.Errorf("ids = %v, want 1 and 3", ids)
	}
}

func TestSearchDisjunctionAndNegation(t *testing.T) {
	s := New()
	seedProducts(t, s)
	ctx := context.Background()

	c := criteria.Where("name").Is("anvil").Or("price").GreaterThan(6.0)
	hits, err := s.Search(ctx, "products", query.New(c))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits.Total != 2 {
		t.Errorf("total = %d, want 2", hits.Total)
	}

	neg := criteria.Where("available").IsTrue().Not()
	hits, err = s.Search(ctx, "products", query.New(neg))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits.Total != 1 || hits.Hits[0].ID != "3" {
		t.Errorf("hits = %+v, want only id 3", hits.Hits)
	}
}

func TestSearchCollectionMembership(t *testing.T) {
	s := New()
	seedProducts(t, s)

	c := criteria.Where("tags").In("tool", "green")
	hits, err := s.Search(context.Background(), "products", query.New(c))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits.Total != 2 {
		t.Errorf("total = %d, want 2", hits.Total)
	}
}

func TestSearchSortAndPagination(t *testing.T) {
	s := New()
	seedProducts(t, s)

	q := query.New(criteria.MatchAll()).WithSort("price", true).WithPage(0, 2)
	hits, err := s.Search(context.Background(), "products", q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits.Total != 3 {
		t.Errorf("total = %d, want 3", hits.Total)
	}
	if len(hits.Hits) != 2 {
		t.Fatalf("page length = %d, want 2", len(hits.Hits))
	}
	if hits.Hits[0].ID != "2" || hits.Hits[1].ID != "3" {
		t.Errorf("page = [%s %s], want [2 3]", hits.Hits[0].ID, hits.Hits[1].ID)
	}
}

func TestSearchGeoWithin(t *testing.T) {
	s := New()
	ctx := context.Background()

	add := func(id string, lat, lon float64) {
		loc := document.New()
		loc.Set("lat", lat)
		loc.Set("lon", lon)
		doc := document.New()
		doc.Set("location", loc)
		if _, err := s.Index(ctx, db.IndexRequest{Index: "places", ID: id, Doc: doc}); err != nil {
			t.Fatalf("Index: %v", err)
		}
	}
	add("berlin", 52.52, 13.405)
	add("potsdam", 52.4, 13.06)
	add("hamburg", 53.55, 9.99)

	center := geo.Point{Lat: 52.52, Lon: 13.405}
	c := criteria.Where("location").Within(center, geo.Distance{Value: 50, Unit: geo.Kilometers})
	hits, err := s.Search(ctx, "places", query.New(c))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits.Total != 2 {
		t.Errorf("total = %d, want berlin and potsdam", hits.Total)
	}
}

func TestCountIgnoresPagination(t *testing.T) {
	s := New()
	seedProducts(t, s)

	q := query.New(criteria.MatchAll()).WithPage(0, 1)
	n, err := s.Count(context.Background(), "products", q)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestDeleteByQuery(t *testing.T) {
	s := New()
	seedProducts(t, s)
	ctx := context.Background()

	removed, err := s.DeleteByQuery(ctx, "products", query.New(criteria.Where("available").IsFalse()))
	if err != nil {
		t.Fatalf("DeleteByQuery: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	n, err := s.Count(ctx, "products", query.New(criteria.MatchAll()))
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("remaining = %d, want 2", n)
	}
}

func TestIndexLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	mapping := document.New().Set("properties", document.New())
	if err := s.CreateIndex(ctx, "products", mapping, nil); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := s.CreateIndex(ctx, "products", mapping, nil); !errors.Is(err, domain.ErrIndexExists) {
		t.Errorf("duplicate create: err = %v, want ErrIndexExists", err)
	}

	ok, err := s.IndexExists(ctx, "products")
	if err != nil || !ok {
		t.Fatalf("IndexExists = %v, %v", ok, err)
	}

	got, err := s.GetMapping(ctx, "products")
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if _, ok := got.Get("properties"); !ok {
		t.Error("mapping lost the properties key")
	}

	if err := s.DeleteIndex(ctx, "products"); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	if err := s.DeleteIndex(ctx, "products"); !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("second delete: err = %v, want ErrIndexNotFound", err)
	}
}

func TestScrollWalksAllBatches(t *testing.T) {
	s := New()
	seedProducts(t, s)
	ctx := context.Background()

	q := query.New(criteria.MatchAll()).WithPage(0, 2).WithScroll(time.Minute)
	batch, err := s.OpenScroll(ctx, "products", q)
	if err != nil {
		t.Fatalf("OpenScroll: %v", err)
	}
	if len(batch.Hits) != 2 || batch.ScrollID == "" {
		t.Fatalf("first batch = %d hits, scroll id %q", len(batch.Hits), batch.ScrollID)
	}

	var seen []string
	for _, h := range batch.Hits {
		seen = append(seen, h.ID)
	}
	for {
		batch, err = s.ContinueScroll(ctx, batch.ScrollID, time.Minute)
		if err != nil {
			t.Fatalf("ContinueScroll: %v", err)
		}
		if len(batch.Hits) == 0 {
			break
		}
		for _, h := range batch.Hits {
			seen = append(seen, h.ID)
		}
	}
	if len(seen) != 3 {
		t.Errorf("walked %d docs, want 3", len(seen))
	}

	if err := s.ClearScroll(ctx, batch.ScrollID); err != nil {
		t.Fatalf("ClearScroll: %v", err)
	}
	if _, err := s.ContinueScroll(ctx, batch.ScrollID, time.Minute); !errors.Is(err, domain.ErrScrollExpired) {
		t.Errorf("cleared scroll: err = %v, want ErrScrollExpired", err)
	}
}

func TestScrollExpiry(t *testing.T) {
	s := New()
	seedProducts(t, s)
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }

	q := query.New(criteria.MatchAll()).WithPage(0, 1).WithScroll(time.Second)
	batch, err := s.OpenScroll(ctx, "products", q)
	if err != nil {
		t.Fatalf("OpenScroll: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := s.ContinueScroll(ctx, batch.ScrollID, time.Second); !errors.Is(err, domain.ErrScrollExpired) {
		t.Errorf("err = %v, want ErrScrollExpired", err)
	}
}
