// Package entity provides a generic repository over one mapped struct type.
//
// A Service turns typed CRUD intents into query descriptors using the
// entity's schema.Table: auto-incremented, read-only and relation columns
// never reach an INSERT or a SET clause, primary keys never reach a SET
// clause, and registered defaults fill absent insert values. Statements run
// on whatever executor the provider hands out at call time, so the same
// Service works inside and outside a unit of work.
//
//	type User struct {
//	    ID    int64    `db:"id" entity:"pk,autoincrement"`
//	    Name  string   `db:"name"`
//	    Tags  []string `db:"tags"`
//	}
//
//	func (User) TableName() string { return "users" }
//
//	users, err := entity.New[User](work, database.NewCompiler(types.PostgreSQL))
//	created, err := users.AddOne(ctx, User{Name: "Alice"})
//	active, err := users.Select().Where(query.Gt("id", 10)).OrderBy(query.Asc("name")).Fetch(ctx)
package entity

import (
	"context"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/gaborage/go-bricks-orm/database/query"
	"github.com/gaborage/go-bricks-orm/database/schema"
	"github.com/gaborage/go-bricks-orm/database/types"
	"github.com/gaborage/go-bricks-orm/logger"
)

// Service is the repository of entity type T. It holds no per-call state and
// is safe for concurrent use.
type Service[T any] struct {
	classifier
	provider types.ExecutorProvider
	compiler types.Compiler
	validate *validator.Validate
	log      logger.Logger
}

// New creates the repository of T. The field registry comes from
// schema.Of[T] unless WithTable is given.
func New[T any](provider types.ExecutorProvider, compiler types.Compiler, opts ...Option) (*Service[T], error) {
	if provider == nil {
		return nil, fmt.Errorf("entity: executor provider is required")
	}
	if compiler == nil {
		return nil, fmt.Errorf("entity: compiler is required")
	}

	o := serviceOptions{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	table := o.table
	if table == nil {
		var err error
		if table, err = schema.Of[T](); err != nil {
			return nil, err
		}
	} else if table.Type() != reflect.TypeFor[T]() {
		return nil, fmt.Errorf("%w: table %s maps %s, not %s",
			schema.ErrEntityTypeMismatch, table.Name(), table.Type(), reflect.TypeFor[T]())
	}

	exclude := make(map[string]struct{}, len(o.exclude))
	for _, col := range o.exclude {
		exclude[col] = struct{}{}
	}

	return &Service[T]{
		classifier: classifier{table: table, exclude: exclude},
		provider:   provider,
		compiler:   compiler,
		validate:   o.validate,
		log:        o.log.WithFields(map[string]any{"table": table.Name()}),
	}, nil
}

// Table returns the field registry the service works with.
func (s *Service[T]) Table() *schema.Table {
	return s.table
}

// AddOne inserts e and returns the created row. e may be a T, a *T, a
// query.Values or a map[string]any.
func (s *Service[T]) AddOne(ctx context.Context, e any) (*T, error) {
	if err := s.check(e); err != nil {
		return nil, err
	}
	values, err := s.valuesOf(e)
	if err != nil {
		return nil, err
	}
	row := s.insertable(values)

	if !s.returnsRows() {
		return s.addOneWithoutReturning(ctx, row)
	}
	return s.one(ctx, query.Insert(s.table.Name()).Values(row).Returning(s.returning()...))
}

// Add inserts entities one after another, in order, and returns one row per
// input at the same position. The first failure aborts the remaining
// inserts; rows inserted before it are not undone unless the caller runs Add
// inside a transaction.
func (s *Service[T]) Add(ctx context.Context, entities ...any) ([]T, error) {
	created := make([]T, 0, len(entities))
	for i, e := range entities {
		row, err := s.AddOne(ctx, e)
		if err == nil && row == nil {
			err = ErrNoRowReturned
		}
		if err != nil {
			return nil, fmt.Errorf("add entity %d: %w", i, err)
		}
		created = append(created, *row)
	}
	return created, nil
}

// AddAll is Add over a typed slice.
func (s *Service[T]) AddAll(ctx context.Context, entities []T) ([]T, error) {
	args := make([]any, len(entities))
	for i := range entities {
		args[i] = entities[i]
	}
	return s.Add(ctx, args...)
}

// UpsertOne inserts e or, when it conflicts, overwrites the existing row with
// e's updatable values. The conflict target is uniqueIndex when given,
// otherwise e's primary key.
func (s *Service[T]) UpsertOne(ctx context.Context, e any, uniqueIndex ...string) (*T, error) {
	if err := s.check(e); err != nil {
		return nil, err
	}
	values, err := s.valuesOf(e)
	if err != nil {
		return nil, err
	}
	pk := s.primaryKey(values)

	row := s.insertable(values)
	for k, v := range pk {
		row[k] = v
	}

	b := query.Upsert(s.table.Name()).
		Values(row).
		DoUpdate(s.updatable(values).Keys()...)
	switch {
	case len(uniqueIndex) > 0 && uniqueIndex[0] != "":
		b.OnConstraint(uniqueIndex[0])
	case len(pk) > 0:
		b.OnConflict(pk.Keys()...)
	default:
		return nil, fmt.Errorf("%w: upsert into %s needs a primary key or a unique index", ErrMissingPrimaryKey, s.table.Name())
	}

	if !s.returnsRows() {
		return s.upsertOneWithoutReturning(ctx, b, pk)
	}
	return s.one(ctx, b.Returning(s.returning()...))
}

// UpdateOne writes e's updatable values to the row identified by e's primary
// key. It returns nil when no row matched.
func (s *Service[T]) UpdateOne(ctx context.Context, e any) (*T, error) {
	if err := s.check(e); err != nil {
		return nil, err
	}
	values, err := s.valuesOf(e)
	if err != nil {
		return nil, err
	}
	pk, err := s.completeKey(values)
	if err != nil {
		return nil, err
	}
	set := s.updatable(values)
	if len(set) == 0 {
		return nil, types.ErrNoValues
	}

	b := query.Update(s.table.Name()).Set(set).Where(query.Match(pk))
	if !s.returnsRows() {
		return s.updateOneWithoutReturning(ctx, b, pk)
	}
	return s.one(ctx, b.Returning(s.returning()...))
}

// Update writes the updatable attributes of values to every row matching
// condition and returns the updated rows. condition is a plain filter map or
// a predicate expression; nil is rejected, an empty map matches every row.
func (s *Service[T]) Update(ctx context.Context, values, condition any) ([]T, error) {
	if condition == nil {
		return nil, fmt.Errorf("%w: update condition is required", ErrUnsupportedInput)
	}
	input, err := s.valuesOf(values)
	if err != nil {
		return nil, err
	}
	where, err := s.condition(condition)
	if err != nil {
		return nil, err
	}
	set := s.updatable(input)
	if len(set) == 0 {
		return nil, types.ErrNoValues
	}

	if !s.returnsRows() {
		return s.updateWithoutReturning(ctx, set, where)
	}
	b := query.Update(s.table.Name()).Set(set).Returning(s.returning()...)
	if where != nil {
		b.Where(where)
	}
	return s.all(ctx, b)
}

// DeleteOne deletes the row identified by the primary key attributes of pk
// and returns it, or nil when no row matched.
func (s *Service[T]) DeleteOne(ctx context.Context, pk any) (*T, error) {
	values, err := s.valuesOf(pk)
	if err != nil {
		return nil, err
	}
	key, err := s.completeKey(values)
	if err != nil {
		return nil, err
	}

	if !s.returnsRows() {
		return s.deleteOneWithoutReturning(ctx, key)
	}
	return s.one(ctx, query.Delete(s.table.Name()).Where(query.Match(key)).Returning(s.returning()...))
}

// Delete deletes the rows matching condition, at most limit of them when a
// limit is given, and returns them. nil is rejected, an empty map matches
// every row.
func (s *Service[T]) Delete(ctx context.Context, condition any, limit ...uint64) ([]T, error) {
	if condition == nil {
		return nil, fmt.Errorf("%w: delete condition is required", ErrUnsupportedInput)
	}
	where, err := s.condition(condition)
	if err != nil {
		return nil, err
	}

	if !s.returnsRows() {
		return s.deleteWithoutReturning(ctx, where, limit...)
	}
	b := query.Delete(s.table.Name()).Returning(s.returning()...)
	if where != nil {
		b.Where(where)
	}
	if len(limit) > 0 && limit[0] > 0 {
		b.Limit(limit[0])
	}
	return s.all(ctx, b)
}

// Get returns the rows matching condition. Zero limit or offset leaves the
// bound unset.
func (s *Service[T]) Get(ctx context.Context, condition any, limit, offset uint64, opts ...SelectOption) ([]T, error) {
	sel := s.Select(opts...).Where(condition)
	if limit > 0 {
		sel.Limit(limit)
	}
	if offset > 0 {
		sel.Offset(offset)
	}
	return sel.Fetch(ctx)
}

// GetOne returns the first row matching condition, or nil.
func (s *Service[T]) GetOne(ctx context.Context, condition any, opts ...SelectOption) (*T, error) {
	return s.Select(opts...).Where(condition).FetchOne(ctx)
}

// Count returns the number of rows matching condition.
func (s *Service[T]) Count(ctx context.Context, condition any) (int64, error) {
	return s.Select().Where(condition).Count(ctx)
}

// Exists reports whether any row matches condition.
func (s *Service[T]) Exists(ctx context.Context, condition any) (bool, error) {
	return s.Select().Where(condition).Exists(ctx)
}

// Select starts a deferred SELECT over the entity table. Nothing runs until
// a terminal method is called.
func (s *Service[T]) Select(opts ...SelectOption) *ActiveSelect[T] {
	var o selectOptions
	for _, opt := range opts {
		opt(&o)
	}

	cols := s.table.SelectColumns(o.includeSensitive)
	columns := make([]any, len(cols))
	for i, c := range cols {
		columns[i] = c
	}

	b := query.Select(s.table.Name(), columns...).Distinct(o.distinct)
	if o.lock != query.LockNone {
		b.For(o.lock)
	}
	return &ActiveSelect[T]{service: s, builder: b}
}

// completeKey returns the primary key attributes of values and fails unless
// every primary key column is present.
func (s *Service[T]) completeKey(values query.Values) (query.Values, error) {
	pk := s.primaryKey(values)
	if len(pk) == 0 {
		return nil, fmt.Errorf("%w: table %s", ErrMissingPrimaryKey, s.table.Name())
	}
	for _, col := range s.table.PrimaryKeys() {
		if _, ok := pk[col]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingPrimaryKey, s.table.Name(), col)
		}
	}
	return pk, nil
}

func (s *Service[T]) returning() []string {
	return s.table.SelectColumns(false)
}

func (s *Service[T]) vendor() types.Vendor {
	return s.compiler.Vendor()
}

func (s *Service[T]) compile(b query.Builder) (types.Statement, error) {
	return s.compiler.Compile(b)
}

// all runs b and decodes every returned row.
func (s *Service[T]) all(ctx context.Context, b query.Builder) ([]T, error) {
	out := []T{}
	if err := s.fetchInto(ctx, b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service[T]) fetchInto(ctx context.Context, b query.Builder, dst any) error {
	stmt, err := s.compile(b)
	if err != nil {
		return err
	}
	rows, err := s.provider.Executor().Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return err
	}
	return scanAll(s.vendor(), dst, rows)
}

// one runs b and decodes the single returned row, or returns nil.
func (s *Service[T]) one(ctx context.Context, b query.Builder) (*T, error) {
	out := new(T)
	found, err := s.fetchOneInto(ctx, b, out)
	if err != nil || !found {
		return nil, err
	}
	return out, nil
}

func (s *Service[T]) fetchOneInto(ctx context.Context, b query.Builder, dst any) (bool, error) {
	stmt, err := s.compile(b)
	if err != nil {
		return false, err
	}
	rows, err := s.provider.Executor().Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return false, err
	}
	return scanOne(s.vendor(), dst, rows)
}

// exec runs b and returns the number of affected rows.
func (s *Service[T]) exec(ctx context.Context, b query.Builder) (int64, error) {
	stmt, err := s.compile(b)
	if err != nil {
		return 0, err
	}
	res, err := s.provider.Executor().Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Service[T]) scalar(ctx context.Context, b query.Builder, dst any) error {
	stmt, err := s.compile(b)
	if err != nil {
		return err
	}
	return s.provider.Executor().QueryRow(ctx, stmt.SQL, stmt.Args...).Scan(dst)
}
