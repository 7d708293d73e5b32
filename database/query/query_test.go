package query

import (
	"errors"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainDialect leaves identifiers untouched and renders sub-selects as a
// marker carrying the sub-select table.
type plainDialect struct{}

func (plainDialect) Quote(identifier string) string { return identifier }

func (plainDialect) Subquery(d *Descriptor) squirrel.Sqlizer {
	return squirrel.Expr("SELECT FROM " + d.Table)
}

func render(t *testing.T, e Expr) (string, []any) {
	t.Helper()
	sql, args, err := e.Build(plainDialect{}).ToSql()
	require.NoError(t, err)
	return sql, args
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		sql  string
		args []any
	}{
		{"eq", Eq("id", 1), "id = ?", []any{1}},
		{"eq nil", Eq("id", nil), "id IS NULL", nil},
		{"not eq", NotEq("id", 1), "id <> ?", []any{1}},
		{"gt", Gt("qty", 2), "qty > ?", []any{2}},
		{"lte", Lte("qty", 2), "qty <= ?", []any{2}},
		{"in scalar", In("id", 3), "id IN (?)", []any{3}},
		{"in slice", In("id", []int{1, 2}), "id IN (?,?)", []any{1, 2}},
		{"not null", NotNull("owner_id"), "owner_id IS NOT NULL", nil},
		{"like", Like("name", "a%"), "name LIKE ?", []any{"a%"}},
		{"between", Between("qty", 1, 5), "(qty >= ? AND qty <= ?)", []any{1, 5}},
		{"or", Or(Eq("a", 1), Eq("b", 2)), "(a = ? OR b = ?)", []any{1, 2}},
		{"not", Not(Eq("a", 1)), "NOT (a = ?)", []any{1}},
		{"in select", InSelect("id", Select("users", "id")), "id IN (SELECT FROM users)", nil},
		{"exists", Exists(Select("users")), "EXISTS (SELECT FROM users)", nil},
		{"sub", Sub(Select("users")), "(SELECT FROM users)", nil},
		{"aggregate", Max("id"), "MAX(id)", nil},
		{"alias", As(Count(), "n"), "(COUNT(*)) AS n", nil},
		{"cast", Cast("x", "text"), "CAST(? AS text)", []any{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := render(t, tt.expr)
			assert.Equal(t, tt.sql, sql)
			if tt.args == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestMatchOrdersKeys(t *testing.T) {
	sql, args := render(t, Match(Values{"b": 2, "a": 1}))
	assert.Equal(t, "(a = ? AND b = ?)", sql)
	assert.Equal(t, []any{1, 2}, args)
}

func TestPredicateForms(t *testing.T) {
	sql, _ := render(t, Predicate(map[string]any{"a": 1}))
	assert.Equal(t, "(a = ?)", sql)

	sql, args := render(t, Predicate("a > ?", 3))
	assert.Equal(t, "a > ?", sql)
	assert.Equal(t, []any{3}, args)

	sql, _ = render(t, Predicate(squirrel.Eq{"a": 1}))
	assert.Equal(t, "a = ?", sql)

	for _, bad := range []any{nil, 42} {
		_, _, err := Predicate(bad).Build(plainDialect{}).ToSql()
		assert.Error(t, err)
	}
}

func TestFailPropagatesThroughCombinators(t *testing.T) {
	boom := errors.New("boom")
	failing := ExprFunc(func(Dialect) squirrel.Sqlizer { return Fail(boom) })

	_, _, err := Not(failing).Build(plainDialect{}).ToSql()
	assert.ErrorIs(t, err, boom)
}

func TestSelectBuilderMutatesInPlace(t *testing.T) {
	b := Select("users", "id")
	same := b.Where(Eq("id", 1)).OrderBy(Asc("id")).Limit(10).Offset(5).For(ForUpdate)
	assert.Same(t, b, same)

	d := b.Descriptor()
	assert.Equal(t, KindSelect, d.Kind)
	assert.Len(t, d.Where, 1)
	assert.Len(t, d.OrderBy, 1)
	require.NotNil(t, d.Limit)
	assert.Equal(t, uint64(10), *d.Limit)
	assert.Equal(t, ForUpdate, d.Lock)
}

func TestCloneIsIndependent(t *testing.T) {
	b := Select("users", "id").Where(Eq("id", 1)).Limit(3)
	c := b.Clone()
	c.Where(Eq("name", "x")).Limit(7).GroupBy("name")

	assert.Len(t, b.Descriptor().Where, 1)
	assert.Equal(t, uint64(3), *b.Descriptor().Limit)
	assert.Empty(t, b.Descriptor().GroupBy)
}

func TestCountQuery(t *testing.T) {
	b := Select("users", "id").Where(Eq("id", 1)).OrderBy(Asc("id")).Limit(3).Offset(1).For(ForShare)

	count := b.CountQuery().Descriptor()
	assert.Equal(t, "users", count.Table)
	assert.Nil(t, count.From)
	assert.Len(t, count.Columns, 1)
	assert.Len(t, count.Where, 1)
	assert.Empty(t, count.OrderBy)
	assert.Nil(t, count.Limit)
	assert.Nil(t, count.Offset)
	assert.Equal(t, LockNone, count.Lock)

	// b is untouched
	assert.NotNil(t, b.Descriptor().Limit)

	wrapped := b.Distinct(true).CountQuery().Descriptor()
	require.NotNil(t, wrapped.From)
	assert.Equal(t, "counted", wrapped.Alias)
	assert.True(t, wrapped.From.Distinct)
	assert.Nil(t, wrapped.From.Limit)
}

func TestDMLBuilders(t *testing.T) {
	values := Values{"name": "a"}
	ins := Insert("users").Values(values).Returning("id").Descriptor()
	values["name"] = "changed"
	assert.Equal(t, KindInsert, ins.Kind)
	assert.Equal(t, "a", ins.Values["name"], "values are copied")
	assert.Equal(t, []string{"id"}, ins.Returning)

	up := Upsert("users").Values(Values{"id": 1, "name": "a"}).OnConflict("id").DoUpdate("name").Descriptor()
	assert.Equal(t, KindUpsert, up.Kind)
	assert.Equal(t, []string{"id"}, up.Conflict.Columns)
	assert.Equal(t, []string{"name"}, up.Conflict.Update)

	del := Delete("users").Where(Eq("id", 1)).Limit(2).Descriptor()
	assert.Equal(t, "DELETE", del.Kind.String())
	assert.Equal(t, uint64(2), *del.Limit)

	assert.Equal(t, []string{"a", "b"}, Values{"b": 1, "a": 2}.Keys())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
}
