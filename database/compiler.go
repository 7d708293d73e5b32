// Package database provides vendor-aware query compilation and tracked SQL drivers.
package database

import (
	"github.com/gaborage/go-bricks-orm/database/internal/builder"
	"github.com/gaborage/go-bricks-orm/database/types"
)

// NewCompiler creates a query compiler for the specified database vendor.
// PostgreSQL statements use $n placeholders, Oracle statements use :n, and
// any other vendor falls back to question marks.
func NewCompiler(vendor types.Vendor) types.Compiler {
	return builder.NewQueryBuilder(vendor)
}
