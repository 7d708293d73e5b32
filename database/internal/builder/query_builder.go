// Package builder provides cross-database query compilation.
// It renders query descriptors into vendor-specific SQL through squirrel,
// handling placeholder formats, identifier quoting and vendor-only clauses
// for PostgreSQL, Oracle, and a question-mark default dialect.
package builder

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-orm/database/query"
	dbtypes "github.com/gaborage/go-bricks-orm/database/types"
)

// QueryBuilder compiles query descriptors for one database vendor.
// Statements are assembled with question-mark placeholders so nested
// sub-selects compose, then renumbered once with the vendor format.
type QueryBuilder struct {
	vendor      dbtypes.Vendor
	placeholder squirrel.PlaceholderFormat
}

// Interface compliance checks
var (
	_ dbtypes.Compiler = (*QueryBuilder)(nil)
	_ query.Dialect    = (*QueryBuilder)(nil)
)

// NewQueryBuilder creates a compiler for the specified database vendor.
func NewQueryBuilder(vendor dbtypes.Vendor) *QueryBuilder {
	var pf squirrel.PlaceholderFormat

	switch vendor {
	case dbtypes.PostgreSQL:
		// PostgreSQL uses $1, $2, ... placeholders
		pf = squirrel.Dollar
	case dbtypes.Oracle:
		// Oracle uses :1, :2, ... placeholders
		pf = squirrel.Colon
	default:
		pf = squirrel.Question
	}

	return &QueryBuilder{
		vendor:      vendor,
		placeholder: pf,
	}
}

// Vendor returns the database vendor string
func (qb *QueryBuilder) Vendor() dbtypes.Vendor {
	return qb.vendor
}

// Compile renders b into a vendor-specific statement.
func (qb *QueryBuilder) Compile(b query.Builder) (dbtypes.Statement, error) {
	if b == nil {
		return dbtypes.Statement{}, fmt.Errorf("%w: nil builder", dbtypes.ErrUnsupportedStatement)
	}
	d := b.Descriptor()
	if d == nil {
		return dbtypes.Statement{}, fmt.Errorf("%w: nil descriptor", dbtypes.ErrUnsupportedStatement)
	}
	if d.Table == "" && d.From == nil {
		return dbtypes.Statement{}, dbtypes.ErrEmptyTableName
	}

	var (
		sql  string
		args []any
		err  error
	)

	switch d.Kind {
	case query.KindSelect:
		sql, args, err = qb.buildSelect(d).ToSql()
	case query.KindInsert:
		sql, args, err = qb.buildInsert(d)
	case query.KindUpdate:
		sql, args, err = qb.buildUpdate(d)
	case query.KindDelete:
		sql, args, err = qb.buildDelete(d)
	case query.KindUpsert:
		sql, args, err = qb.buildUpsert(d)
	default:
		return dbtypes.Statement{}, fmt.Errorf("%w: %s", dbtypes.ErrUnsupportedStatement, d.Kind)
	}
	if err != nil {
		return dbtypes.Statement{}, fmt.Errorf("compile %s %s: %w", d.Kind, d.Table, err)
	}

	sql, err = qb.placeholder.ReplacePlaceholders(sql)
	if err != nil {
		return dbtypes.Statement{}, fmt.Errorf("compile %s %s: %w", d.Kind, d.Table, err)
	}

	return dbtypes.Statement{SQL: sql, Args: args}, nil
}

// Quote applies vendor-specific identifier quoting.
func (qb *QueryBuilder) Quote(identifier string) string {
	switch qb.vendor {
	case dbtypes.Oracle:
		return oracleQuoteIdentifier(identifier)
	default:
		return identifier
	}
}

// Subquery renders a nested SELECT with question-mark placeholders.
func (qb *QueryBuilder) Subquery(d *query.Descriptor) squirrel.Sqlizer {
	return qb.buildSelect(d)
}

// buildSelect assembles a SELECT. Errors raised by expressions surface when
// the returned builder is rendered.
func (qb *QueryBuilder) buildSelect(d *query.Descriptor) squirrel.SelectBuilder {
	sb := squirrel.Select()

	if len(d.Columns) == 0 {
		sb = sb.Column("*")
	}
	for _, c := range d.Columns {
		sb = sb.Column(c.Build(qb))
	}

	switch {
	case d.From != nil && qb.vendor == dbtypes.Oracle:
		// Oracle rejects AS before a table alias, which FromSelect always emits.
		sub, args, err := qb.buildSelect(d.From).ToSql()
		if err != nil {
			return sb.Where(query.Fail(err))
		}
		sb = sb.JoinClause(squirrel.Expr("FROM ("+sub+") "+qb.Quote(d.Alias), args...))
	case d.From != nil:
		sb = sb.FromSelect(qb.buildSelect(d.From), qb.Quote(d.Alias))
	default:
		sb = sb.From(qb.tableRef(d))
	}

	if d.Distinct {
		sb = sb.Distinct()
	}

	for _, j := range d.Joins {
		sb = sb.JoinClause(j.Kind+" "+j.Clause, j.Args...)
	}

	for _, w := range d.Where {
		sb = sb.Where(w.Build(qb))
	}

	if len(d.GroupBy) > 0 {
		sb = sb.GroupBy(qb.quoteAll(d.GroupBy)...)
	}

	for _, h := range d.Having {
		sb = sb.Having(h.Build(qb))
	}

	for _, o := range d.OrderBy {
		sb = sb.OrderByClause(o.Build(qb))
	}

	sb = qb.applyLimitOffset(sb, d.Limit, d.Offset)

	if d.Lock != query.LockNone {
		if qb.vendor == dbtypes.Oracle && (d.Limit != nil || d.Offset != nil) {
			// ORA-02014: FETCH/OFFSET row limiting cannot be combined with FOR UPDATE.
			return sb.Where(query.Fail(fmt.Errorf("%w: FOR %s with row limiting on %s", dbtypes.ErrUnsupportedStatement, d.Lock, qb.vendor)))
		}
		clause, err := qb.lockClause(d.Lock)
		if err != nil {
			return sb.Where(query.Fail(err))
		}
		sb = sb.Suffix(clause)
	}

	return sb
}

// applyLimitOffset applies LIMIT and OFFSET using vendor-specific syntax.
func (qb *QueryBuilder) applyLimitOffset(sb squirrel.SelectBuilder, limit, offset *uint64) squirrel.SelectBuilder {
	switch qb.vendor {
	case dbtypes.Oracle:
		// Oracle uses OFFSET ... ROWS FETCH NEXT ... ROWS ONLY semantics (12c+)
		if suffix := buildOraclePaginationClause(limit, offset); suffix != "" {
			sb = sb.Suffix(suffix)
		}
		return sb
	default:
		if limit != nil {
			sb = sb.Limit(*limit)
		}
		if offset != nil {
			sb = sb.Offset(*offset)
		}
		return sb
	}
}

func (qb *QueryBuilder) lockClause(mode query.LockMode) (string, error) {
	if qb.vendor == dbtypes.Oracle && mode != query.ForUpdate {
		return "", fmt.Errorf("%w: FOR %s on %s", dbtypes.ErrUnsupportedStatement, mode, qb.vendor)
	}
	return "FOR " + string(mode), nil
}

func (qb *QueryBuilder) buildInsert(d *query.Descriptor) (sql string, args []any, err error) {
	var returning string
	var outs []any
	if qb.vendor == dbtypes.Oracle && len(d.Into) > 0 {
		returning, outs, err = qb.oracleReturningInto(d.Returning, d.Into)
	} else {
		returning, err = qb.returningClause(d.Returning)
	}
	if err != nil {
		return "", nil, err
	}

	table := qb.Quote(d.Table)
	if len(d.Values) == 0 {
		if qb.vendor == dbtypes.Oracle {
			return "", nil, dbtypes.ErrNoValues
		}
		return joinClauses("INSERT INTO "+table+" DEFAULT VALUES", returning), nil, nil
	}

	cols := sortedKeys(d.Values)
	ib := squirrel.Insert(table).
		Columns(qb.quoteAll(cols)...).
		Values(qb.valuesByKeyOrder(d.Values, cols)...)
	if returning != "" {
		ib = ib.Suffix(returning, outs...)
	}
	return ib.ToSql()
}

func (qb *QueryBuilder) buildUpdate(d *query.Descriptor) (sql string, args []any, err error) {
	if len(d.Values) == 0 {
		return "", nil, dbtypes.ErrNoValues
	}
	returning, err := qb.returningClause(d.Returning)
	if err != nil {
		return "", nil, err
	}

	ub := squirrel.Update(qb.Quote(d.Table))
	for _, col := range sortedKeys(d.Values) {
		ub = ub.Set(qb.Quote(col), qb.value(d.Values[col]))
	}

	where, err := qb.scopedWhere(d)
	if err != nil {
		return "", nil, err
	}
	for _, w := range where {
		ub = ub.Where(w)
	}
	if d.Limit != nil && qb.vendor != dbtypes.PostgreSQL && qb.vendor != dbtypes.Oracle {
		ub = ub.Limit(*d.Limit)
	}
	if returning != "" {
		ub = ub.Suffix(returning)
	}
	return ub.ToSql()
}

func (qb *QueryBuilder) buildDelete(d *query.Descriptor) (sql string, args []any, err error) {
	returning, err := qb.returningClause(d.Returning)
	if err != nil {
		return "", nil, err
	}

	db := squirrel.Delete(qb.Quote(d.Table))
	where, err := qb.scopedWhere(d)
	if err != nil {
		return "", nil, err
	}
	for _, w := range where {
		db = db.Where(w)
	}
	if d.Limit != nil && qb.vendor != dbtypes.PostgreSQL && qb.vendor != dbtypes.Oracle {
		db = db.Limit(*d.Limit)
	}
	if returning != "" {
		db = db.Suffix(returning)
	}
	return db.ToSql()
}

// scopedWhere renders the WHERE predicates of an UPDATE or DELETE, folding a
// row limit into them for vendors without UPDATE/DELETE ... LIMIT.
func (qb *QueryBuilder) scopedWhere(d *query.Descriptor) ([]squirrel.Sqlizer, error) {
	where := make([]squirrel.Sqlizer, 0, len(d.Where)+1)
	for _, w := range d.Where {
		where = append(where, w.Build(qb))
	}
	if d.Limit == nil {
		return where, nil
	}

	switch qb.vendor {
	case dbtypes.PostgreSQL:
		scope, err := qb.postgresLimitScope(d.Table, where, *d.Limit)
		if err != nil {
			return nil, err
		}
		return []squirrel.Sqlizer{scope}, nil
	case dbtypes.Oracle:
		return append(where, squirrel.Expr("ROWNUM <= ?", *d.Limit)), nil
	default:
		return where, nil
	}
}

func (qb *QueryBuilder) buildUpsert(d *query.Descriptor) (sql string, args []any, err error) {
	if len(d.Values) == 0 {
		return "", nil, dbtypes.ErrNoValues
	}
	switch qb.vendor {
	case dbtypes.Oracle:
		if len(d.Returning) > 0 {
			return "", nil, fmt.Errorf("%w: %s", dbtypes.ErrReturningUnsupported, qb.vendor)
		}
		return qb.buildOracleMerge(d)
	default:
		return qb.buildOnConflictUpsert(d)
	}
}

func (qb *QueryBuilder) returningClause(columns []string) (string, error) {
	if len(columns) == 0 {
		return "", nil
	}
	if qb.vendor == dbtypes.Oracle {
		return "", fmt.Errorf("%w: %s", dbtypes.ErrReturningUnsupported, qb.vendor)
	}
	return "RETURNING " + strings.Join(qb.quoteAll(columns), ", "), nil
}

func (qb *QueryBuilder) tableRef(d *query.Descriptor) string {
	table := qb.Quote(d.Table)
	if d.Alias != "" {
		return table + " " + qb.Quote(d.Alias)
	}
	return table
}

// value resolves expression values (casts, database functions) to squirrel
// fragments; plain values are bound as arguments.
func (qb *QueryBuilder) value(v any) any {
	if e, ok := v.(query.Expr); ok {
		return e.Build(qb)
	}
	return v
}

func (qb *QueryBuilder) valuesByKeyOrder(m map[string]any, keys []string) []any {
	vals := make([]any, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, qb.value(m[k]))
	}
	return vals
}

func (qb *QueryBuilder) quoteAll(identifiers []string) []string {
	quoted := make([]string, len(identifiers))
	for i, id := range identifiers {
		quoted[i] = qb.Quote(id)
	}
	return quoted
}

func joinClauses(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
