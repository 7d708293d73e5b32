package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Masterminds/squirrel"
)

// Dialect is the compiler-side view an expression renders against.
type Dialect interface {
	// Quote applies vendor identifier quoting to a column or table name.
	Quote(identifier string) string

	// Subquery renders a nested SELECT descriptor. Placeholders stay in
	// question-mark form so the outer statement can number them.
	Subquery(d *Descriptor) squirrel.Sqlizer
}

// Expr is a vendor-neutral SQL fragment: a predicate, a column, an aggregate
// or a sub-select. Expressions are opaque to the entity layer.
type Expr interface {
	Build(d Dialect) squirrel.Sqlizer
}

// ExprFunc adapts a function to Expr.
type ExprFunc func(d Dialect) squirrel.Sqlizer

// Build calls f.
func (f ExprFunc) Build(d Dialect) squirrel.Sqlizer {
	return f(d)
}

type errSqlizer struct {
	err error
}

//nolint:revive // ToSql is required by squirrel.Sqlizer interface (lowercase 's')
func (e errSqlizer) ToSql() (string, []any, error) {
	return "", nil, e.err
}

// Fail returns a Sqlizer that reports err when rendered.
func Fail(err error) squirrel.Sqlizer {
	return errSqlizer{err: err}
}

// ========== Columns and values ==========

// Col references a column by name. The name is quoted by the dialect.
func Col(name string) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.Expr(d.Quote(name))
	})
}

// Raw is an unescaped SQL fragment with question-mark placeholders.
//
// SECURITY WARNING: never interpolate user input into sql.
func Raw(sql string, args ...any) Expr {
	return ExprFunc(func(Dialect) squirrel.Sqlizer {
		return squirrel.Expr(sql, args...)
	})
}

// Sql wraps an existing squirrel.Sqlizer.
//
//nolint:revive // mirrors squirrel naming
func Sql(s squirrel.Sqlizer) Expr {
	return ExprFunc(func(Dialect) squirrel.Sqlizer {
		return s
	})
}

// As aliases an expression in a select list.
func As(e Expr, alias string) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.Alias(e.Build(d), d.Quote(alias))
	})
}

// Cast renders CAST(value AS sqlType), e.g. Cast([]string{}, "text[]").
func Cast(value any, sqlType string) Expr {
	return Raw("CAST(? AS "+sqlType+")", value)
}

// Count is COUNT(*).
func Count() Expr {
	return Raw("COUNT(*)")
}

// CountOf is COUNT(column).
func CountOf(column string) Expr {
	return aggregate("COUNT", column)
}

// Sum is SUM(column).
func Sum(column string) Expr {
	return aggregate("SUM", column)
}

// Min is MIN(column).
func Min(column string) Expr {
	return aggregate("MIN", column)
}

// Max is MAX(column).
func Max(column string) Expr {
	return aggregate("MAX", column)
}

// Avg is AVG(column).
func Avg(column string) Expr {
	return aggregate("AVG", column)
}

func aggregate(fn, column string) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.Expr(fn + "(" + d.Quote(column) + ")")
	})
}

// Asc orders by column ascending.
func Asc(column string) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.Expr(d.Quote(column) + " ASC")
	})
}

// Desc orders by column descending.
func Desc(column string) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.Expr(d.Quote(column) + " DESC")
	})
}

// Sub uses a select builder as a scalar sub-select, e.g. in a column list.
func Sub(b *SelectBuilder) Expr {
	desc := b.Descriptor().Clone()
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return wrapParens(d.Subquery(desc))
	})
}

func wrapParens(s squirrel.Sqlizer) squirrel.Sqlizer {
	sql, args, err := s.ToSql()
	if err != nil {
		return Fail(err)
	}
	return squirrel.Expr("("+sql+")", args...)
}

// ========== Predicates ==========

// Eq creates an equality filter (column = value).
// A nil value renders IS NULL and a slice renders IN.
func Eq(column string, value any) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.Eq{d.Quote(column): value}
	})
}

// NotEq creates a not-equal filter (column <> value).
func NotEq(column string, value any) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.NotEq{d.Quote(column): value}
	})
}

// Lt creates a less-than filter (column < value).
func Lt(column string, value any) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.Lt{d.Quote(column): value}
	})
}

// Lte creates a less-than-or-equal filter (column <= value).
func Lte(column string, value any) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.LtOrEq{d.Quote(column): value}
	})
}

// Gt creates a greater-than filter (column > value).
func Gt(column string, value any) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.Gt{d.Quote(column): value}
	})
}

// Gte creates a greater-than-or-equal filter (column >= value).
func Gte(column string, value any) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.GtOrEq{d.Quote(column): value}
	})
}

// In creates an IN filter. Scalars are wrapped in a single-element slice so
// the filter keeps IN semantics.
func In(column string, values any) Expr {
	values = normalizeToSlice(values)
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.Eq{d.Quote(column): values}
	})
}

// NotIn creates a NOT IN filter.
func NotIn(column string, values any) Expr {
	values = normalizeToSlice(values)
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.NotEq{d.Quote(column): values}
	})
}

// InSelect creates a "column IN (sub-select)" filter.
func InSelect(column string, b *SelectBuilder) Expr {
	desc := b.Descriptor().Clone()
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		sql, args, err := d.Subquery(desc).ToSql()
		if err != nil {
			return Fail(err)
		}
		return squirrel.Expr(d.Quote(column)+" IN ("+sql+")", args...)
	})
}

// Exists creates an EXISTS (sub-select) filter.
func Exists(b *SelectBuilder) Expr {
	desc := b.Descriptor().Clone()
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		sql, args, err := d.Subquery(desc).ToSql()
		if err != nil {
			return Fail(err)
		}
		return squirrel.Expr("EXISTS ("+sql+")", args...)
	})
}

// Like creates a LIKE filter.
func Like(column, pattern string) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		return squirrel.Like{d.Quote(column): pattern}
	})
}

// IsNull creates an IS NULL filter.
func IsNull(column string) Expr {
	return Eq(column, nil)
}

// NotNull creates an IS NOT NULL filter.
func NotNull(column string) Expr {
	return NotEq(column, nil)
}

// Between creates an inclusive range filter.
func Between(column string, lower, upper any) Expr {
	return And(Gte(column, lower), Lte(column, upper))
}

// And combines expressions with AND.
func And(exprs ...Expr) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		and := make(squirrel.And, 0, len(exprs))
		for _, e := range exprs {
			and = append(and, e.Build(d))
		}
		return and
	})
}

// Or combines expressions with OR.
func Or(exprs ...Expr) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		or := make(squirrel.Or, 0, len(exprs))
		for _, e := range exprs {
			or = append(or, e.Build(d))
		}
		return or
	})
}

// Not negates an expression.
func Not(e Expr) Expr {
	return ExprFunc(func(d Dialect) squirrel.Sqlizer {
		sql, args, err := e.Build(d).ToSql()
		if err != nil {
			return Fail(err)
		}
		return squirrel.Expr("NOT ("+sql+")", args...)
	})
}

// Match turns a plain value map into a conjunction of equality filters,
// ordered by key for deterministic SQL. An empty map matches every row.
func Match(values Values) Expr {
	keys := values.Keys()
	exprs := make([]Expr, 0, len(keys))
	for _, k := range keys {
		exprs = append(exprs, Eq(k, values[k]))
	}
	return And(exprs...)
}

// Predicate converts the arguments accepted by Where into an Expr:
// an Expr, a squirrel.Sqlizer, a Values or map[string]any (see Match), or a
// raw SQL string with question-mark arguments.
func Predicate(pred any, args ...any) Expr {
	switch p := pred.(type) {
	case Expr:
		return p
	case Values:
		return Match(p)
	case map[string]any:
		return Match(Values(p))
	case squirrel.Sqlizer:
		return Sql(p)
	case string:
		return Raw(p, args...)
	case nil:
		return Sql(Fail(fmt.Errorf("nil predicate")))
	default:
		return Sql(Fail(fmt.Errorf("unsupported predicate type %T", pred)))
	}
}

// normalizeToSlice ensures the value is a slice for IN/NOT IN operations.
// This prevents squirrel.Eq from generating "column = ?" instead of "column IN (?)".
func normalizeToSlice(value any) any {
	if value == nil {
		return []any{}
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return value
	default:
		return []any{value}
	}
}

// orderTerm converts OrderBy arguments: strings are raw order terms such as
// "created_at DESC", anything else goes through Predicate.
func orderTerm(term any) Expr {
	if s, ok := term.(string); ok {
		return Raw(strings.TrimSpace(s))
	}
	return Predicate(term)
}

// column converts select list arguments: strings are column names,
// anything else goes through Predicate.
func column(c any) Expr {
	if s, ok := c.(string); ok {
		if s == "*" {
			return Raw("*")
		}
		return Col(s)
	}
	return Predicate(c)
}
