package builder

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-orm/database/query"
	dbtypes "github.com/gaborage/go-bricks-orm/database/types"
)

// oracleReservedWords are the Oracle SQL reserved words that must be quoted
// when used as identifiers.
var oracleReservedWords = map[string]struct{}{
	"ACCESS": {}, "ADD": {}, "ALL": {}, "ALTER": {}, "AND": {}, "ANY": {}, "AS": {}, "ASC": {},
	"BEGIN": {}, "BETWEEN": {}, "BY": {}, "CASE": {}, "CHECK": {}, "COLUMN": {}, "COMMENT": {},
	"CONNECT": {}, "CREATE": {}, "CURRENT": {}, "DELETE": {}, "DESC": {}, "DISTINCT": {},
	"DROP": {}, "ELSE": {}, "EXCLUDE": {}, "EXISTS": {}, "FOR": {}, "FROM": {}, "GRANT": {},
	"GROUP": {}, "HAVING": {}, "IN": {}, "INDEX": {}, "INSERT": {}, "INTERSECT": {}, "INTO": {},
	"IS": {}, "LEVEL": {}, "LIKE": {}, "LOCK": {}, "MINUS": {}, "MODE": {}, "NOCOMPRESS": {},
	"NOT": {}, "NULL": {}, "NUMBER": {}, "OF": {}, "ON": {}, "OPTION": {}, "OR": {}, "ORDER": {},
	"ROW": {}, "ROWNUM": {}, "SELECT": {}, "SET": {}, "SHARE": {}, "SIZE": {}, "START": {},
	"TABLE": {}, "THEN": {}, "TO": {}, "TRIGGER": {}, "UNION": {}, "UNIQUE": {}, "UPDATE": {},
	"VALUES": {}, "VIEW": {}, "WHEN": {}, "WHERE": {}, "WITH": {},
}

func isOracleReserved(word string) bool {
	_, ok := oracleReservedWords[strings.ToUpper(word)]
	return ok
}

func oracleNeedsQuoting(identifier string) bool {
	if identifier == "" {
		return false
	}

	first := identifier[0]
	if first >= '0' && first <= '9' {
		return true
	}

	for _, r := range identifier {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '$' || r == '#' {
			continue
		}
		return true
	}

	return false
}

// oracleQuoteIdentifier quotes reserved words and identifiers Oracle would
// otherwise reject. Dotted names are quoted per segment and already quoted
// identifiers pass through unchanged.
func oracleQuoteIdentifier(identifier string) string {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" || trimmed == "*" {
		return trimmed
	}

	if strings.Contains(trimmed, ".") {
		parts := strings.Split(trimmed, ".")
		for i, part := range parts {
			parts[i] = oracleQuoteIdentifier(part)
		}
		return strings.Join(parts, ".")
	}

	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		return trimmed
	}

	if isOracleReserved(trimmed) {
		return `"` + strings.ToUpper(trimmed) + `"`
	}

	if oracleNeedsQuoting(trimmed) {
		return `"` + trimmed + `"`
	}

	return trimmed
}

// buildOraclePaginationClause constructs an Oracle 12c+ pagination suffix.
// The result holds "OFFSET n ROWS" and/or "FETCH NEXT n ROWS ONLY" and is
// empty when neither bound is set.
func buildOraclePaginationClause(limit, offset *uint64) string {
	parts := make([]string, 0, 2)
	if offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d ROWS", *offset))
	}
	if limit != nil {
		parts = append(parts, fmt.Sprintf("FETCH NEXT %d ROWS ONLY", *limit))
	}
	return strings.Join(parts, " ")
}

// buildOracleMerge renders an upsert as MERGE INTO ... USING (SELECT ... FROM dual).
func (qb *QueryBuilder) buildOracleMerge(d *query.Descriptor) (sql string, args []any, err error) {
	if d.Conflict.Constraint != "" {
		return "", nil, fmt.Errorf("%w: ON CONSTRAINT on %s, conflict columns required", dbtypes.ErrUnsupportedStatement, qb.vendor)
	}
	if len(d.Conflict.Columns) == 0 {
		return "", nil, fmt.Errorf("%w: conflict columns required for MERGE", dbtypes.ErrUnsupportedStatement)
	}

	insertKeys := sortedKeys(d.Values)
	escapedInsertCols := qb.quoteAll(insertKeys)

	source := squirrel.Select().From("dual")
	for i, col := range escapedInsertCols {
		source = source.Column(squirrel.Alias(bindValue(qb.value(d.Values[insertKeys[i]])), col))
	}
	sourceSQL, args, err := source.ToSql()
	if err != nil {
		return "", nil, err
	}

	escapedConflicts := qb.quoteAll(d.Conflict.Columns)
	onConditions := make([]string, len(escapedConflicts))
	for i, col := range escapedConflicts {
		onConditions[i] = fmt.Sprintf("target.%s = source.%s", col, col)
	}

	sql = fmt.Sprintf("MERGE INTO %s target USING (%s) source ON (%s)",
		qb.Quote(d.Table),
		sourceSQL,
		strings.Join(onConditions, " AND "))

	if len(d.Conflict.Update) > 0 {
		escapedUpdateCols := qb.quoteAll(d.Conflict.Update)
		updateSets := make([]string, len(escapedUpdateCols))
		for i, col := range escapedUpdateCols {
			updateSets[i] = fmt.Sprintf("target.%s = source.%s", col, col)
		}
		sql += " WHEN MATCHED THEN UPDATE SET " + strings.Join(updateSets, ", ")
	}

	insertVals := make([]string, len(escapedInsertCols))
	for i, col := range escapedInsertCols {
		insertVals[i] = "source." + col
	}
	sql += fmt.Sprintf(" WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
		strings.Join(escapedInsertCols, ", "),
		strings.Join(insertVals, ", "))

	return sql, args, nil
}

// bindValue turns a plain value into a bound placeholder so it can be aliased.
func bindValue(v any) squirrel.Sqlizer {
	if s, ok := v.(squirrel.Sqlizer); ok {
		return s
	}
	return squirrel.Expr("?", v)
}

// oracleReturningInto renders RETURNING ... INTO with one out bind per
// column, which is how Oracle reports values of the row a statement wrote.
func (qb *QueryBuilder) oracleReturningInto(columns []string, dests []any) (clause string, outs []any, err error) {
	if len(columns) != len(dests) {
		return "", nil, fmt.Errorf("%w: %d RETURNING columns for %d destinations", dbtypes.ErrReturningUnsupported, len(columns), len(dests))
	}
	outs = make([]any, len(dests))
	marks := make([]string, len(dests))
	for i, dest := range dests {
		outs[i] = sql.Out{Dest: dest}
		marks[i] = "?"
	}
	clause = "RETURNING " + strings.Join(qb.quoteAll(columns), ", ") + " INTO " + strings.Join(marks, ", ")
	return clause, outs, nil
}
