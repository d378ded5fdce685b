package esmap

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/esmap/internal/derive"
	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/query"
)

// DerivedQuery is a compiled query-method name bound to a repository.
// Arguments bind positionally to the method's predicate parts on each call.
type DerivedQuery[T any, ID comparable] struct {
	repo *Repository[T, ID]
	tree *derive.PartTree
}

// Method returns the method name this query was derived from.
func (d *DerivedQuery[T, ID]) Method() string { return d.tree.Method }

// Query compiles the arguments into a standalone query, for callers that
// want to adjust paging or projection before executing.
func (d *DerivedQuery[T, ID]) Query(args ...any) (*Query, error) {
	q, err := d.tree.Compile(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.tree.Method, err)
	}
	return q, nil
}

// Find executes a find-subject method and returns the matching entities.
func (d *DerivedQuery[T, ID]) Find(ctx context.Context, args ...any) ([]T, error) {
	hits, err := d.FindHits(ctx, args...)
	if err != nil {
		return nil, err
	}
	items := make([]T, len(hits))
	for i, h := range hits {
		items[i] = h.Item
	}
	return items, nil
}

// FindHits is Find with per-hit scores and sort values.
func (d *DerivedQuery[T, ID]) FindHits(ctx context.Context, args ...any) ([]Hit[T], error) {
	if err := d.requireSubject(derive.SubjectFind); err != nil {
		return nil, err
	}
	q, err := d.Query(args...)
	if err != nil {
		return nil, err
	}
	return d.repo.Search(ctx, q)
}

// Stream executes a find-subject method as a scrolled stream.
func (d *DerivedQuery[T, ID]) Stream(ctx context.Context, args ...any) (*Stream[T], error) {
	if err := d.requireSubject(derive.SubjectFind); err != nil {
		return nil, err
	}
	q, err := d.Query(args...)
	if err != nil {
		return nil, err
	}
	return d.repo.SearchForStream(ctx, q)
}

// Count executes a count-subject method.
func (d *DerivedQuery[T, ID]) Count(ctx context.Context, args ...any) (int64, error) {
	if err := d.requireSubject(derive.SubjectCount); err != nil {
		return 0, err
	}
	q, err := d.Query(args...)
	if err != nil {
		return 0, err
	}
	return d.repo.SearchCount(ctx, q)
}

// Exists executes an exists-subject method.
func (d *DerivedQuery[T, ID]) Exists(ctx context.Context, args ...any) (bool, error) {
	if err := d.requireSubject(derive.SubjectExists); err != nil {
		return false, err
	}
	q, err := d.Query(args...)
	if err != nil {
		return false, err
	}
	n, err := d.repo.SearchCount(ctx, q)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete executes a delete-subject method and returns the number removed.
func (d *DerivedQuery[T, ID]) Delete(ctx context.Context, args ...any) (int64, error) {
	if err := d.requireSubject(derive.SubjectDelete); err != nil {
		return 0, err
	}
	q, err := d.Query(args...)
	if err != nil {
		return 0, err
	}
	r := d.repo
	start := time.Now()
	n, err := r.client.store.DeleteByQuery(ctx, r.index, q)
	r.client.obs.observe(ctx, r.index, "delete_by_query", start, err)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", d.tree.Method, err)
	}
	return n, nil
}

func (d *DerivedQuery[T, ID]) requireSubject(want derive.Subject) error {
	if d.tree.Subject != want {
		return fmt.Errorf("%s: %w: method subject does not allow this call",
			d.tree.Method, domain.ErrInvalidQueryMethod)
	}
	return nil
}

// TemplateQuery is a backend-native query template with ?0-style positional
// placeholders, bound to a repository.
type TemplateQuery[T any, ID comparable] struct {
	repo     *Repository[T, ID]
	template string
}

// Query renders the arguments into a native query.
func (t *TemplateQuery[T, ID]) Query(args ...any) (*Query, error) {
	rendered, err := derive.RenderNative(t.template, args...)
	if err != nil {
		return nil, fmt.Errorf("native query: %w", err)
	}
	return query.NewNative(rendered), nil
}

// Find renders and executes the template, returning the matching entities.
func (t *TemplateQuery[T, ID]) Find(ctx context.Context, args ...any) ([]T, error) {
	q, err := t.Query(args...)
	if err != nil {
		return nil, err
	}
	hits, err := t.repo.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	items := make([]T, len(hits))
	for i, h := range hits {
		items[i] = h.Item
	}
	return items, nil
}

// Count renders and executes the template as a count.
func (t *TemplateQuery[T, ID]) Count(ctx context.Context, args ...any) (int64, error) {
	q, err := t.Query(args...)
	if err != nil {
		return 0, err
	}
	return t.repo.SearchCount(ctx, q)
}
