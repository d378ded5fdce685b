// Package esmap maps Go structs onto document-search indexes and exposes
// typed repositories over Elasticsearch, RediSearch, or an embedded
// in-memory backend.
//
// # Low-level API — documents and queries
//
//	client, _ := esmap.New(esmap.WithElasticsearch([]string{"http://localhost:9200"}, "", ""))
//	ops := client.Operations("products")
//	ops.Index(ctx, "1", doc)
//	hits, _ := ops.Search(ctx, esmap.NewQuery(esmap.Where("price").LessThan(10)))
//
// # High-level API — schema-first with Go generics
//
//	type Product struct {
//	    ID        string  `esmap:"id,id"`
//	    Name      string  `esmap:"name,keyword"`
//	    Price     float64 `esmap:"price"`
//	    Available bool    `esmap:"available"`
//	}
//
//	repo, _ := esmap.NewRepository[Product, string](client)
//	_ = repo.EnsureIndex(ctx)
//	_ = repo.Save(ctx, &product)
//	byName, _ := repo.Derive("FindByNameAndPriceLessThan")
//	cheap, _ := byName.Find(ctx, "apple", 5.0)
package esmap
