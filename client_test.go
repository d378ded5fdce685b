package esmap

import (
	"context"
	"errors"
	"testing"
)

type product struct {
	ID          string   `esmap:"id,id"`
	Name        string   `esmap:"name,keyword"`
	Price       float64  `esmap:"price,double"`
	Available   bool     `esmap:"available,boolean"`
	Tags        []string `esmap:"tags,keyword"`
	Version     int64    `esmap:",version"`
	SeqNo       int64    `esmap:",seqno"`
	PrimaryTerm int64    `esmap:",primary_term"`
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	client, err := New(append([]Option{WithMemory()}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func newProductRepo(t *testing.T, client *Client) *Repository[product, string] {
	t.Helper()
	repo, err := NewRepository[product, string](client)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	return repo
}

func seedProducts(t *testing.T, repo *Repository[product, string]) []*product {
	t.Helper()
	items := []*product{
		{ID: "1", Name: "apple", Price: 3, Available: true, Tags: []string{"fruit", "fresh"}},
		{ID: "2", Name: "avocado", Price: 7, Available: true, Tags: []string{"fruit"}},
		{ID: "3", Name: "anvil", Price: 99, Available: false, Tags: []string{"hardware"}},
	}
	if err := repo.SaveAll(context.Background(), items); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	return items
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newProductRepo(t, newTestClient(t))

	item := &product{Name: "apple", Price: 3.5, Available: true, Tags: []string{"fruit"}}
	if err := repo.Save(ctx, item); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if item.ID == "" {
		t.Fatal("expected generated id written back")
	}
	if item.Version != 1 {
		t.Errorf("version = %d, want 1", item.Version)
	}

	got, err := repo.FindByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Name != "apple" || got.Price != 3.5 || !got.Available {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "fruit" {
		t.Errorf("tags = %v, want [fruit]", got.Tags)
	}

	ok, err := repo.ExistsByID(ctx, item.ID)
	if err != nil || !ok {
		t.Fatalf("ExistsByID = %v, %v, want true", ok, err)
	}

	if err := repo.DeleteByID(ctx, item.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if _, err := repo.FindByID(ctx, item.ID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("after delete err = %v, want ErrDocumentNotFound", err)
	}
}

func TestRepositorySaveConflictOnStaleCopy(t *testing.T) {
	ctx := context.Background()
	repo := newProductRepo(t, newTestClient(t))

	item := &product{ID: "1", Name: "apple", Price: 3}
	if err := repo.Save(ctx, item); err != nil {
		t.Fatalf("Save: %v", err)
	}
	stale := *item

	item.Price = 4
	if err := repo.Save(ctx, item); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	stale.Price = 5
	if err := repo.Save(ctx, &stale); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale Save err = %v, want ErrVersionConflict", err)
	}
}

func TestRepositoryDerivedFind(t *testing.T) {
	ctx := context.Background()
	repo := newProductRepo(t, newTestClient(t))
	seedProducts(t, repo)

	cheap, err := repo.Derive("FindByPriceLessThan")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	got, err := cheap.Find(ctx, 10.0)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (apple, avocado)", len(got))
	}

	byName, err := repo.Derive("FindByNameAndPriceLessThan")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	got, err = byName.Find(ctx, "apple", 5.0)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("got %+v, want only apple", got)
	}

	sorted, err := repo.Derive("FindByAvailableTrueOrderByPriceDesc")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	got, err = sorted.Find(ctx)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "1" {
		t.Errorf("order = %v, want [2 1]", ids(got))
	}
}

func TestRepositoryDerivedCountExistsDelete(t *testing.T) {
	ctx := context.Background()
	repo := newProductRepo(t, newTestClient(t))
	seedProducts(t, repo)

	count, err := repo.Derive("CountByAvailableTrue")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	n, err := count.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	exists, err := repo.Derive("ExistsByTagsIn")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	ok, err := exists.Exists(ctx, []string{"hardware"})
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Error("expected a hardware product to exist")
	}

	del, err := repo.Derive("DeleteByAvailableFalse")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	deleted, err := del.Delete(ctx)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	total, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 2 {
		t.Errorf("remaining = %d, want 2", total)
	}
}

func TestDerivedSubjectMismatch(t *testing.T) {
	ctx := context.Background()
	repo := newProductRepo(t, newTestClient(t))

	q, err := repo.Derive("FindByName")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if _, err := q.Count(ctx, "apple"); !errors.Is(err, ErrInvalidQueryMethod) {
		t.Errorf("Count on find method err = %v, want ErrInvalidQueryMethod", err)
	}
}

func TestDeriveFailsFastOnUnknownProperty(t *testing.T) {
	repo := newProductRepo(t, newTestClient(t))

	_, err := repo.Derive("FindByColor")
	if !errors.Is(err, ErrInvalidQueryMethod) {
		t.Errorf("err = %v, want ErrInvalidQueryMethod", err)
	}
	if !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("err = %v, want ErrUnknownProperty in chain", err)
	}
}

func TestRepositorySearchWithCriteria(t *testing.T) {
	ctx := context.Background()
	repo := newProductRepo(t, newTestClient(t))
	seedProducts(t, repo)

	q := NewQuery(Where("name").StartsWith("a").And("price").Between(2.0, 10.0)).
		WithSort("price", true)
	hits, err := repo.Search(ctx, q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len = %d, want 2", len(hits))
	}
	if hits[0].Item.ID != "2" || hits[1].Item.ID != "1" {
		t.Errorf("order = [%s %s], want [2 1]", hits[0].Item.ID, hits[1].Item.ID)
	}
	if hits[0].ID != "2" {
		t.Errorf("hit id = %q, want 2", hits[0].ID)
	}
}

func TestRepositoryStream(t *testing.T) {
	ctx := context.Background()
	repo := newProductRepo(t, newTestClient(t))

	items := make([]*product, 25)
	for i := range items {
		items[i] = &product{Name: "bulk", Price: float64(i), Available: true}
	}
	if err := repo.SaveAll(ctx, items); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	stream, err := repo.SearchForStream(ctx, NewQuery(MatchAll()))
	if err != nil {
		t.Fatalf("SearchForStream: %v", err)
	}
	defer stream.Close(ctx)

	if stream.Total() != 25 {
		t.Errorf("total = %d, want 25", stream.Total())
	}
	seen := 0
	for stream.Next(ctx) {
		if stream.Item().Name != "bulk" {
			t.Fatalf("unexpected item %+v", stream.Item())
		}
		seen++
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream err: %v", err)
	}
	if seen != 25 {
		t.Errorf("streamed %d items, want 25", seen)
	}
	if err := stream.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOperationsDocumentLevel(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	ops := client.Operations("things")

	doc := NewDocument().Set("name", "widget").Set("qty", 3)
	info, err := ops.Index(ctx, "w1", doc)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if info.ID != "w1" || info.Version != 1 {
		t.Errorf("info = %+v, want id w1 version 1", info)
	}

	got, err := ops.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if name, _ := got.GetString("name"); name != "widget" {
		t.Errorf("name = %q, want widget", name)
	}

	n, err := ops.Count(ctx, NewQuery(MatchAll()))
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	deleted, err := ops.DeleteByQuery(ctx, NewQuery(Where("name").Is("widget")))
	if err != nil {
		t.Fatalf("DeleteByQuery: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestNativeQueryNeedsRealBackend(t *testing.T) {
	ctx := context.Background()
	repo := newProductRepo(t, newTestClient(t))

	_, err := repo.Native(`{"term":{"name":"?0"}}`).Find(ctx, "apple")
	if err == nil {
		t.Fatal("expected the memory backend to reject native queries")
	}
}

func TestIndexPrefixAppliesEverywhere(t *testing.T) {
	client := newTestClient(t, WithIndexPrefix("test_"))

	repo, err := NewRepository[product, string](client)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	if repo.IndexName() != "test_product" {
		t.Errorf("repo index = %q, want test_product", repo.IndexName())
	}
	if got := client.Operations("product").IndexName(); got != "test_product" {
		t.Errorf("ops index = %q, want test_product", got)
	}
}

func TestIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	ix := client.Indexes()

	m, err := ix.MappingFor(product{})
	if err != nil {
		t.Fatalf("MappingFor: %v", err)
	}
	if _, ok := m.Get("properties"); !ok {
		t.Fatal("mapping without properties")
	}

	if err := ix.Create(ctx, "catalog", m, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ix.Create(ctx, "catalog", m, nil); !errors.Is(err, ErrIndexExists) {
		t.Errorf("second Create err = %v, want ErrIndexExists", err)
	}

	ok, err := ix.Exists(ctx, "catalog")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v, want true", ok, err)
	}
	got, err := ix.GetMapping(ctx, "catalog")
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if _, ok := got.Get("properties"); !ok {
		t.Error("stored mapping without properties")
	}

	if err := ix.Delete(ctx, "catalog"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ok, err = ix.Exists(ctx, "catalog")
	if err != nil || ok {
		t.Fatalf("Exists after delete = %v, %v, want false", ok, err)
	}
}

func ids(items []product) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.ID
	}
	return out
}
