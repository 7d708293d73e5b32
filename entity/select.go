package entity

import (
	"context"

	"github.com/gaborage/go-bricks-orm/database/query"
	"github.com/gaborage/go-bricks-orm/database/types"
)

// ActiveSelect is a deferred SELECT over the entity table. It mirrors the
// query.SelectBuilder surface and adds terminal methods that compile and run
// the query. Builder methods mutate and return the same ActiveSelect, so the
// terminal methods always see its final state.
//
// Plain filter maps passed to Where are validated like any other entity
// filter; the first validation error is reported by the terminal method.
type ActiveSelect[T any] struct {
	service *Service[T]
	builder *query.SelectBuilder
	err     error
}

// Query exposes the underlying builder, e.g. to use the select as a
// sub-select in another query.
func (a *ActiveSelect[T]) Query() *query.SelectBuilder {
	return a.builder
}

// Err returns the first error recorded while building.
func (a *ActiveSelect[T]) Err() error {
	return a.err
}

// Clone returns an independent copy.
func (a *ActiveSelect[T]) Clone() *ActiveSelect[T] {
	return &ActiveSelect[T]{service: a.service, builder: a.builder.Clone(), err: a.err}
}

// Columns replaces the select list.
func (a *ActiveSelect[T]) Columns(columns ...any) *ActiveSelect[T] {
	a.builder.Columns(columns...)
	return a
}

// AddColumns appends to the select list.
func (a *ActiveSelect[T]) AddColumns(columns ...any) *ActiveSelect[T] {
	a.builder.AddColumns(columns...)
	return a
}

// As aliases the entity table.
func (a *ActiveSelect[T]) As(alias string) *ActiveSelect[T] {
	a.builder.As(alias)
	return a
}

// Where adds a conjunctive filter. Plain maps must not hold undefined
// values or unknown columns; expressions and raw SQL pass through. A nil
// filter or an empty map adds nothing.
func (a *ActiveSelect[T]) Where(pred any, args ...any) *ActiveSelect[T] {
	switch pred.(type) {
	case nil:
		return a
	case query.Values, map[string]any:
		expr, err := a.service.condition(pred)
		if err != nil {
			a.fail(err)
			return a
		}
		if expr != nil {
			a.builder.Where(expr)
		}
		return a
	}
	a.builder.Where(pred, args...)
	return a
}

// Join adds a JOIN clause.
func (a *ActiveSelect[T]) Join(clause string, args ...any) *ActiveSelect[T] {
	a.builder.Join(clause, args...)
	return a
}

// LeftJoin adds a LEFT JOIN clause.
func (a *ActiveSelect[T]) LeftJoin(clause string, args ...any) *ActiveSelect[T] {
	a.builder.LeftJoin(clause, args...)
	return a
}

// RightJoin adds a RIGHT JOIN clause.
func (a *ActiveSelect[T]) RightJoin(clause string, args ...any) *ActiveSelect[T] {
	a.builder.RightJoin(clause, args...)
	return a
}

// InnerJoin adds an INNER JOIN clause.
func (a *ActiveSelect[T]) InnerJoin(clause string, args ...any) *ActiveSelect[T] {
	a.builder.InnerJoin(clause, args...)
	return a
}

// CrossJoin adds a CROSS JOIN clause.
func (a *ActiveSelect[T]) CrossJoin(clause string, args ...any) *ActiveSelect[T] {
	a.builder.CrossJoin(clause, args...)
	return a
}

// OrderBy appends ORDER BY terms.
func (a *ActiveSelect[T]) OrderBy(terms ...any) *ActiveSelect[T] {
	a.builder.OrderBy(terms...)
	return a
}

// GroupBy appends GROUP BY columns.
func (a *ActiveSelect[T]) GroupBy(columns ...string) *ActiveSelect[T] {
	a.builder.GroupBy(columns...)
	return a
}

// Having adds a HAVING filter.
func (a *ActiveSelect[T]) Having(pred any, args ...any) *ActiveSelect[T] {
	a.builder.Having(pred, args...)
	return a
}

// Limit caps the number of returned rows.
func (a *ActiveSelect[T]) Limit(limit uint64) *ActiveSelect[T] {
	a.builder.Limit(limit)
	return a
}

// Offset skips rows.
func (a *ActiveSelect[T]) Offset(offset uint64) *ActiveSelect[T] {
	a.builder.Offset(offset)
	return a
}

// Distinct toggles SELECT DISTINCT.
func (a *ActiveSelect[T]) Distinct(distinct bool) *ActiveSelect[T] {
	a.builder.Distinct(distinct)
	return a
}

// For sets the row locking mode.
func (a *ActiveSelect[T]) For(mode query.LockMode) *ActiveSelect[T] {
	a.builder.For(mode)
	return a
}

func (a *ActiveSelect[T]) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Fetch runs the query and returns every row.
func (a *ActiveSelect[T]) Fetch(ctx context.Context) ([]T, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.service.all(ctx, a.builder)
}

// FetchInto runs the query and decodes the rows into dest, a pointer to a
// slice of structs or scalars. Use it for projections that do not fit T.
func (a *ActiveSelect[T]) FetchInto(ctx context.Context, dest any) error {
	if a.err != nil {
		return a.err
	}
	return a.service.fetchInto(ctx, a.builder, dest)
}

// FetchOne runs the query limited to one row and returns it, or nil. The
// limit applies to a copy; the select itself is left unchanged.
func (a *ActiveSelect[T]) FetchOne(ctx context.Context) (*T, error) {
	return first[T](ctx, a)
}

// FetchScalar runs the query and scans the single value of its first row
// into dest. sql.ErrNoRows is returned when the query yields no row.
func (a *ActiveSelect[T]) FetchScalar(ctx context.Context, dest any) error {
	if a.err != nil {
		return a.err
	}
	return a.service.scalar(ctx, a.builder, dest)
}

// Count returns the number of rows the query yields, ignoring ordering,
// pagination and locking.
func (a *ActiveSelect[T]) Count(ctx context.Context) (int64, error) {
	if a.err != nil {
		return 0, a.err
	}
	var n int64
	if err := a.service.scalar(ctx, a.builder.CountQuery(), &n); err != nil {
		return 0, err
	}
	return n, nil
}

// Exists reports whether Count is positive.
func (a *ActiveSelect[T]) Exists(ctx context.Context) (bool, error) {
	n, err := a.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FetchAs runs sel and decodes the rows into R, for aggregate or projection
// queries whose shape differs from the entity.
func FetchAs[R, T any](ctx context.Context, sel *ActiveSelect[T]) ([]R, error) {
	out := []R{}
	if err := sel.FetchInto(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchOneAs is FetchAs for a single row. It returns nil when sel yields no row.
func FetchOneAs[R, T any](ctx context.Context, sel *ActiveSelect[T]) (*R, error) {
	return first[R](ctx, sel)
}

// first runs sel for its first row decoded into R. Oracle rejects FOR UPDATE
// next to FETCH FIRST, so a locked Oracle read runs unbounded and keeps the
// first row.
func first[R, T any](ctx context.Context, sel *ActiveSelect[T]) (*R, error) {
	if sel.err != nil {
		return nil, sel.err
	}
	b := sel.builder.Clone()
	if sel.service.vendor() == types.Oracle && b.Descriptor().Lock != query.LockNone {
		var rows []R
		if err := sel.service.fetchInto(ctx, b, &rows); err != nil || len(rows) == 0 {
			return nil, err
		}
		return &rows[0], nil
	}

	out := new(R)
	found, err := sel.service.fetchOneInto(ctx, b.Limit(1), out)
	if err != nil || !found {
		return nil, err
	}
	return out, nil
}

// ScalarAs runs sel and returns the single value of its first row.
func ScalarAs[V, T any](ctx context.Context, sel *ActiveSelect[T]) (V, error) {
	var v V
	err := sel.FetchScalar(ctx, &v)
	return v, err
}
