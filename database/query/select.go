package query

// SelectBuilder records a SELECT statement. Every method mutates the builder
// and returns it, so a builder held by several owners always exposes its
// latest state. Use Clone to branch.
type SelectBuilder struct {
	d Descriptor
}

// Select starts a SELECT over table. Columns may be names or expressions;
// no columns selects "*".
func Select(table string, columns ...any) *SelectBuilder {
	b := &SelectBuilder{d: Descriptor{Kind: KindSelect, Table: table}}
	return b.Columns(columns...)
}

// SelectFrom starts a SELECT over a sub-select aliased as alias.
func SelectFrom(sub *SelectBuilder, alias string, columns ...any) *SelectBuilder {
	b := &SelectBuilder{d: Descriptor{Kind: KindSelect, From: sub.d.Clone(), Alias: alias}}
	return b.Columns(columns...)
}

// Descriptor returns the underlying descriptor.
func (b *SelectBuilder) Descriptor() *Descriptor {
	return &b.d
}

// Clone returns an independent copy of the builder.
func (b *SelectBuilder) Clone() *SelectBuilder {
	return &SelectBuilder{d: *b.d.Clone()}
}

// Columns replaces the select list.
func (b *SelectBuilder) Columns(columns ...any) *SelectBuilder {
	b.d.Columns = b.d.Columns[:0:0]
	for _, c := range columns {
		b.d.Columns = append(b.d.Columns, column(c))
	}
	return b
}

// AddColumns appends to the select list.
func (b *SelectBuilder) AddColumns(columns ...any) *SelectBuilder {
	for _, c := range columns {
		b.d.Columns = append(b.d.Columns, column(c))
	}
	return b
}

// As aliases the selected table.
func (b *SelectBuilder) As(alias string) *SelectBuilder {
	b.d.Alias = alias
	return b
}

// Where adds a conjunctive filter. See Predicate for accepted forms.
func (b *SelectBuilder) Where(pred any, args ...any) *SelectBuilder {
	b.d.Where = append(b.d.Where, Predicate(pred, args...))
	return b
}

// Join adds a JOIN clause to the query
func (b *SelectBuilder) Join(clause string, args ...any) *SelectBuilder {
	return b.join("JOIN", clause, args)
}

// LeftJoin adds a LEFT JOIN clause to the query
func (b *SelectBuilder) LeftJoin(clause string, args ...any) *SelectBuilder {
	return b.join("LEFT JOIN", clause, args)
}

// RightJoin adds a RIGHT JOIN clause to the query
func (b *SelectBuilder) RightJoin(clause string, args ...any) *SelectBuilder {
	return b.join("RIGHT JOIN", clause, args)
}

// InnerJoin adds an INNER JOIN clause to the query
func (b *SelectBuilder) InnerJoin(clause string, args ...any) *SelectBuilder {
	return b.join("INNER JOIN", clause, args)
}

// CrossJoin adds a CROSS JOIN clause to the query
func (b *SelectBuilder) CrossJoin(clause string, args ...any) *SelectBuilder {
	return b.join("CROSS JOIN", clause, args)
}

func (b *SelectBuilder) join(kind, clause string, args []any) *SelectBuilder {
	b.d.Joins = append(b.d.Joins, Join{Kind: kind, Clause: clause, Args: args})
	return b
}

// OrderBy appends ORDER BY terms. Strings are raw terms ("name DESC"),
// expressions such as Asc and Desc quote their column.
func (b *SelectBuilder) OrderBy(terms ...any) *SelectBuilder {
	for _, t := range terms {
		b.d.OrderBy = append(b.d.OrderBy, orderTerm(t))
	}
	return b
}

// GroupBy appends GROUP BY columns.
func (b *SelectBuilder) GroupBy(columns ...string) *SelectBuilder {
	b.d.GroupBy = append(b.d.GroupBy, columns...)
	return b
}

// Having adds a HAVING filter.
func (b *SelectBuilder) Having(pred any, args ...any) *SelectBuilder {
	b.d.Having = append(b.d.Having, Predicate(pred, args...))
	return b
}

// Limit caps the number of returned rows.
func (b *SelectBuilder) Limit(limit uint64) *SelectBuilder {
	b.d.Limit = uint64Ptr(limit)
	return b
}

// Offset skips rows.
func (b *SelectBuilder) Offset(offset uint64) *SelectBuilder {
	b.d.Offset = uint64Ptr(offset)
	return b
}

// Distinct toggles SELECT DISTINCT.
func (b *SelectBuilder) Distinct(distinct bool) *SelectBuilder {
	b.d.Distinct = distinct
	return b
}

// For sets the row locking mode.
func (b *SelectBuilder) For(mode LockMode) *SelectBuilder {
	b.d.Lock = mode
	return b
}

// CountQuery derives a COUNT(*) query from b. Ordering, pagination and row
// locks do not apply to a scalar count and are dropped. Queries carrying
// DISTINCT, GROUP BY or HAVING are wrapped as a sub-select so the count
// reflects their result rows.
func (b *SelectBuilder) CountQuery() *SelectBuilder {
	inner := b.Clone()
	inner.d.OrderBy = nil
	inner.d.Limit = nil
	inner.d.Offset = nil
	inner.d.Lock = LockNone

	if inner.d.HasPostProcessing() {
		return SelectFrom(inner, "counted", Count())
	}
	return inner.Columns(Count())
}
