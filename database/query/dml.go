package query

import "maps"

// InsertBuilder records an INSERT statement.
type InsertBuilder struct {
	d Descriptor
}

// Insert starts an INSERT into table.
func Insert(table string) *InsertBuilder {
	return &InsertBuilder{d: Descriptor{Kind: KindInsert, Table: table}}
}

// Descriptor returns the underlying descriptor.
func (b *InsertBuilder) Descriptor() *Descriptor {
	return &b.d
}

// Values sets the inserted values, replacing any previous ones.
func (b *InsertBuilder) Values(values Values) *InsertBuilder {
	b.d.Values = maps.Clone(values)
	return b
}

// Returning lists the columns reported back for the inserted row.
func (b *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	b.d.Returning = columns
	b.d.Into = nil
	return b
}

// ReturningInto reports column back through the pointer dest. Vendors
// without RETURNING result sets bind dest as an out parameter; others
// treat it like Returning(column).
func (b *InsertBuilder) ReturningInto(column string, dest any) *InsertBuilder {
	b.d.Returning = append(b.d.Returning, column)
	b.d.Into = append(b.d.Into, dest)
	return b
}

// UpdateBuilder records an UPDATE statement.
type UpdateBuilder struct {
	d Descriptor
}

// Update starts an UPDATE of table.
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{d: Descriptor{Kind: KindUpdate, Table: table}}
}

// Descriptor returns the underlying descriptor.
func (b *UpdateBuilder) Descriptor() *Descriptor {
	return &b.d
}

// Set sets the SET clause values, replacing any previous ones.
func (b *UpdateBuilder) Set(values Values) *UpdateBuilder {
	b.d.Values = maps.Clone(values)
	return b
}

// Where adds a conjunctive filter. See Predicate for accepted forms.
func (b *UpdateBuilder) Where(pred any, args ...any) *UpdateBuilder {
	b.d.Where = append(b.d.Where, Predicate(pred, args...))
	return b
}

// Limit caps the number of updated rows.
func (b *UpdateBuilder) Limit(limit uint64) *UpdateBuilder {
	b.d.Limit = uint64Ptr(limit)
	return b
}

// Returning lists the columns reported back for every updated row.
func (b *UpdateBuilder) Returning(columns ...string) *UpdateBuilder {
	b.d.Returning = columns
	return b
}

// DeleteBuilder records a DELETE statement.
type DeleteBuilder struct {
	d Descriptor
}

// Delete starts a DELETE from table.
func Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{d: Descriptor{Kind: KindDelete, Table: table}}
}

// Descriptor returns the underlying descriptor.
func (b *DeleteBuilder) Descriptor() *Descriptor {
	return &b.d
}

// Where adds a conjunctive filter. See Predicate for accepted forms.
func (b *DeleteBuilder) Where(pred any, args ...any) *DeleteBuilder {
	b.d.Where = append(b.d.Where, Predicate(pred, args...))
	return b
}

// Limit caps the number of deleted rows.
func (b *DeleteBuilder) Limit(limit uint64) *DeleteBuilder {
	b.d.Limit = uint64Ptr(limit)
	return b
}

// Returning lists the columns reported back for every deleted row.
func (b *DeleteBuilder) Returning(columns ...string) *DeleteBuilder {
	b.d.Returning = columns
	return b
}

// UpsertBuilder records an INSERT with conflict resolution.
type UpsertBuilder struct {
	d Descriptor
}

// Upsert starts an UPSERT into table.
func Upsert(table string) *UpsertBuilder {
	return &UpsertBuilder{d: Descriptor{Kind: KindUpsert, Table: table}}
}

// Descriptor returns the underlying descriptor.
func (b *UpsertBuilder) Descriptor() *Descriptor {
	return &b.d
}

// Values sets the proposed row.
func (b *UpsertBuilder) Values(values Values) *UpsertBuilder {
	b.d.Values = maps.Clone(values)
	return b
}

// OnConflict resolves conflicts on the given columns.
func (b *UpsertBuilder) OnConflict(columns ...string) *UpsertBuilder {
	b.d.Conflict.Columns = columns
	return b
}

// OnConstraint resolves conflicts against a named unique index or constraint.
func (b *UpsertBuilder) OnConstraint(name string) *UpsertBuilder {
	b.d.Conflict.Constraint = name
	return b
}

// DoUpdate lists the columns overwritten from the proposed row when a
// conflict occurs. Without columns the conflicting row is left untouched.
func (b *UpsertBuilder) DoUpdate(columns ...string) *UpsertBuilder {
	b.d.Conflict.Update = columns
	return b
}

// Returning lists the columns reported back for the resulting row.
func (b *UpsertBuilder) Returning(columns ...string) *UpsertBuilder {
	b.d.Returning = columns
	return b
}
