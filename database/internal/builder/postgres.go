package builder

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-orm/database/query"
	dbtypes "github.com/gaborage/go-bricks-orm/database/types"
)

// buildOnConflictUpsert creates an INSERT ... ON CONFLICT statement.
// Without update columns the conflict resolves to DO NOTHING.
func (qb *QueryBuilder) buildOnConflictUpsert(d *query.Descriptor) (sql string, args []any, err error) {
	returning, err := qb.returningClause(d.Returning)
	if err != nil {
		return "", nil, err
	}

	var target string
	switch {
	case d.Conflict.Constraint != "":
		target = "ON CONFLICT ON CONSTRAINT " + qb.Quote(d.Conflict.Constraint)
	case len(d.Conflict.Columns) > 0:
		target = "ON CONFLICT (" + strings.Join(qb.quoteAll(d.Conflict.Columns), ", ") + ")"
	case len(d.Conflict.Update) == 0:
		target = "ON CONFLICT"
	default:
		return "", nil, fmt.Errorf("%w: DO UPDATE requires conflict columns or a constraint", dbtypes.ErrUnsupportedStatement)
	}

	action := "DO NOTHING"
	if len(d.Conflict.Update) > 0 {
		setParts := make([]string, 0, len(d.Conflict.Update))
		for _, col := range qb.quoteAll(d.Conflict.Update) {
			setParts = append(setParts, col+" = EXCLUDED."+col)
		}
		action = "DO UPDATE SET " + strings.Join(setParts, ", ")
	}

	cols := sortedKeys(d.Values)
	ib := squirrel.Insert(qb.Quote(d.Table)).
		Columns(qb.quoteAll(cols)...).
		Values(qb.valuesByKeyOrder(d.Values, cols)...).
		Suffix(joinClauses(target, action, returning))

	return ib.ToSql()
}

// postgresLimitScope restricts an UPDATE or DELETE to at most limit rows.
// PostgreSQL has no UPDATE/DELETE ... LIMIT, so the affected rows are
// selected by physical row id first.
func (qb *QueryBuilder) postgresLimitScope(table string, where []squirrel.Sqlizer, limit uint64) (squirrel.Sqlizer, error) {
	sb := squirrel.Select("ctid").From(qb.Quote(table))
	for _, w := range where {
		sb = sb.Where(w)
	}
	sql, args, err := sb.Limit(limit).ToSql()
	if err != nil {
		return nil, err
	}
	return squirrel.Expr("ctid IN ("+sql+")", args...), nil
}
