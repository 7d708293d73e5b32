// Package query provides the abstract query descriptor shared by the entity
// layer and the SQL compilers, together with fluent builders and a small
// vendor-neutral predicate language.
//
// Builders only record intent. Identifier quoting, placeholder numbering and
// vendor-specific clauses are applied later by a types.Compiler, which is why
// every expression renders against a Dialect instead of producing SQL directly.
package query

import (
	"maps"
	"slices"
)

// Kind identifies the statement a descriptor represents.
type Kind int

const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindUpsert
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindUpsert:
		return "UPSERT"
	default:
		return "UNKNOWN"
	}
}

// LockMode is the row locking clause appended to a SELECT.
type LockMode string

const (
	LockNone       LockMode = ""
	ForUpdate      LockMode = "UPDATE"
	ForNoKeyUpdate LockMode = "NO KEY UPDATE"
	ForShare       LockMode = "SHARE"
	ForKeyShare    LockMode = "KEY SHARE"
)

// Values maps attribute (column) names to values. It is used for INSERT and
// UPDATE payloads as well as for plain equality filters.
type Values map[string]any

// Keys returns the keys of v in sorted order.
func (v Values) Keys() []string {
	return slices.Sorted(maps.Keys(v))
}

// Join is a raw JOIN clause.
type Join struct {
	Kind   string // "JOIN", "LEFT JOIN", "RIGHT JOIN", "INNER JOIN", "CROSS JOIN"
	Clause string
	Args   []any
}

// Conflict describes how an UPSERT resolves a uniqueness violation.
// Constraint takes precedence over Columns when both are set.
type Conflict struct {
	Columns    []string
	Constraint string
	Update     []string // columns overwritten from the proposed row; empty means DO NOTHING
}

// Descriptor is the abstract representation of a single statement.
// Compilers treat it as read-only.
type Descriptor struct {
	Kind      Kind
	Table     string
	From      *Descriptor // sub-select source; takes precedence over Table
	Alias     string
	Columns   []Expr
	Values    Values
	Where     []Expr
	Conflict  Conflict
	Returning []string
	Into      []any // destinations for RETURNING ... INTO out binds, one per Returning column
	Joins     []Join
	OrderBy   []Expr
	GroupBy   []string
	Having    []Expr
	Limit     *uint64
	Offset    *uint64
	Distinct  bool
	Lock      LockMode
}

// Clone returns a copy of d whose slices and maps can be modified without
// affecting d. Expressions themselves are immutable and are shared.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	c.From = d.From.Clone()
	c.Columns = slices.Clone(d.Columns)
	c.Values = maps.Clone(d.Values)
	c.Where = slices.Clone(d.Where)
	c.Conflict.Columns = slices.Clone(d.Conflict.Columns)
	c.Conflict.Update = slices.Clone(d.Conflict.Update)
	c.Returning = slices.Clone(d.Returning)
	c.Into = slices.Clone(d.Into)
	c.Joins = slices.Clone(d.Joins)
	c.OrderBy = slices.Clone(d.OrderBy)
	c.GroupBy = slices.Clone(d.GroupBy)
	c.Having = slices.Clone(d.Having)
	if d.Limit != nil {
		limit := *d.Limit
		c.Limit = &limit
	}
	if d.Offset != nil {
		offset := *d.Offset
		c.Offset = &offset
	}
	return &c
}

// HasPostProcessing reports whether the descriptor contains operators that
// cannot be folded into a plain COUNT(*) projection.
func (d *Descriptor) HasPostProcessing() bool {
	return d.Distinct || len(d.GroupBy) > 0 || len(d.Having) > 0
}

// Builder is implemented by every fluent builder in this package.
type Builder interface {
	Descriptor() *Descriptor
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}
