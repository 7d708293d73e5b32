package entity

import (
	"context"
	"reflect"
	"slices"

	"github.com/gaborage/go-bricks-orm/database/query"
	"github.com/gaborage/go-bricks-orm/database/types"
)

// Vendors without RETURNING get the affected rows through extra SELECTs on
// the same executor. Run these operations inside a unit of work when the
// reads must be consistent with the write.

func (s *Service[T]) returnsRows() bool {
	return s.vendor() != types.Oracle
}

// keyOf reports the primary key of values when every key column is set.
func (s *Service[T]) keyOf(values query.Values) (query.Values, bool) {
	pk := s.primaryKey(values)
	cols := s.table.PrimaryKeys()
	if len(cols) == 0 || len(pk) != len(cols) {
		return nil, false
	}
	return pk, true
}

func (s *Service[T]) byKey(pk query.Values) *query.SelectBuilder {
	return s.Select().Query().Where(query.Match(pk))
}

// addOneWithoutReturning inserts row and reads it back by primary key. A
// key generated by the database is reported back through RETURNING ... INTO.
// Tables without a usable key get the inserted values back.
func (s *Service[T]) addOneWithoutReturning(ctx context.Context, row query.Values) (*T, error) {
	b := query.Insert(s.table.Name()).Values(row)
	if pk, ok := s.keyOf(row); ok {
		if _, err := s.exec(ctx, b); err != nil {
			return nil, err
		}
		return s.one(ctx, s.byKey(pk))
	}

	col, dest, ok := s.generatedKey()
	if !ok {
		if _, err := s.exec(ctx, b); err != nil {
			return nil, err
		}
		s.log.Debug().Msg("Inserted row has no readable key; returning inserted values")
		return assemble[T](s.classifier, row)
	}
	if _, err := s.exec(ctx, b.ReturningInto(col, dest.Interface())); err != nil {
		return nil, err
	}
	return s.one(ctx, s.byKey(query.Values{col: dest.Elem().Interface()}))
}

// generatedKey returns the single auto-incremented primary key column and a
// pointer to receive its value.
func (s *Service[T]) generatedKey() (string, reflect.Value, bool) {
	cols := s.table.PrimaryKeys()
	if len(cols) != 1 {
		return "", reflect.Value{}, false
	}
	f, ok := s.table.Field(cols[0])
	if !ok || !f.AutoIncrement {
		return "", reflect.Value{}, false
	}
	t := f.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return f.Name, reflect.New(t), true
}

func (s *Service[T]) upsertOneWithoutReturning(ctx context.Context, b *query.UpsertBuilder, pk query.Values) (*T, error) {
	if _, err := s.exec(ctx, b); err != nil {
		return nil, err
	}
	if len(pk) == 0 {
		return assemble[T](s.classifier, b.Descriptor().Values)
	}
	return s.one(ctx, s.byKey(pk))
}

func (s *Service[T]) updateOneWithoutReturning(ctx context.Context, b *query.UpdateBuilder, pk query.Values) (*T, error) {
	affected, err := s.exec(ctx, b)
	if err != nil || affected == 0 {
		return nil, err
	}
	return s.one(ctx, s.byKey(pk))
}

func (s *Service[T]) deleteOneWithoutReturning(ctx context.Context, pk query.Values) (*T, error) {
	row, err := s.one(ctx, s.byKey(pk).For(query.ForUpdate))
	if err != nil || row == nil {
		return nil, err
	}
	if _, err := s.exec(ctx, query.Delete(s.table.Name()).Where(query.Match(pk))); err != nil {
		return nil, err
	}
	return row, nil
}

// updateWithoutReturning selects the matching rows, updates them by primary
// key and reads them back. Tables without a primary key are updated by
// condition and the selected rows are patched in memory.
func (s *Service[T]) updateWithoutReturning(ctx context.Context, set query.Values, where query.Expr) ([]T, error) {
	rows, err := s.matching(ctx, where, 0)
	if err != nil || len(rows) == 0 {
		return rows, err
	}

	b := query.Update(s.table.Name()).Set(set)
	keys, hasKeys := s.keysOf(rows)
	switch {
	case hasKeys:
		b.Where(keys)
	case where != nil:
		b.Where(where)
	}
	if _, err := s.exec(ctx, b); err != nil {
		return nil, err
	}

	if hasKeys {
		return s.all(ctx, s.Select().Query().Where(keys))
	}
	for i := range rows {
		if err := s.apply(reflect.ValueOf(&rows[i]).Elem(), set); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// deleteWithoutReturning selects the matching rows and deletes them.
func (s *Service[T]) deleteWithoutReturning(ctx context.Context, where query.Expr, limit ...uint64) ([]T, error) {
	var capRows uint64
	if len(limit) > 0 {
		capRows = limit[0]
	}
	rows, err := s.matching(ctx, where, capRows)
	if err != nil || len(rows) == 0 {
		return rows, err
	}

	b := query.Delete(s.table.Name())
	if keys, ok := s.keysOf(rows); ok {
		b.Where(keys)
	} else {
		if where != nil {
			b.Where(where)
		}
		if capRows > 0 {
			b.Limit(capRows)
		}
	}
	if _, err := s.exec(ctx, b); err != nil {
		return nil, err
	}
	return rows, nil
}

// matching selects the rows a write is about to touch and locks them until
// the surrounding transaction ends. The limit is a ROWNUM predicate since
// Oracle rejects FOR UPDATE next to FETCH FIRST.
func (s *Service[T]) matching(ctx context.Context, where query.Expr, limit uint64) ([]T, error) {
	b := s.Select().Query()
	if where != nil {
		b.Where(where)
	}
	if limit > 0 {
		b.Where("ROWNUM <= ?", limit)
	}
	return s.all(ctx, b.For(query.ForUpdate))
}

// maxInList is the largest IN list Oracle accepts (ORA-01795).
const maxInList = 1000

// keysOf builds a predicate matching exactly rows by primary key. Single
// column keys become IN lists of at most maxInList values joined by OR.
func (s *Service[T]) keysOf(rows []T) (query.Expr, bool) {
	cols := s.table.PrimaryKeys()
	if len(cols) == 0 {
		return nil, false
	}

	if len(cols) == 1 {
		ids := make([]any, 0, len(rows))
		for i := range rows {
			values, err := s.table.ValuesOf(&rows[i])
			if err != nil {
				return nil, false
			}
			ids = append(ids, values[cols[0]])
		}
		if len(ids) <= maxInList {
			return query.In(cols[0], ids), true
		}
		lists := make([]query.Expr, 0, (len(ids)+maxInList-1)/maxInList)
		for chunk := range slices.Chunk(ids, maxInList) {
			lists = append(lists, query.In(cols[0], chunk))
		}
		return query.Or(lists...), true
	}

	matches := make([]query.Expr, 0, len(rows))
	for i := range rows {
		values, err := s.table.ValuesOf(&rows[i])
		if err != nil {
			return nil, false
		}
		pk, ok := s.keyOf(values)
		if !ok {
			return nil, false
		}
		matches = append(matches, query.Match(pk))
	}
	return query.Or(matches...), true
}
