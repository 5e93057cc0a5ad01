// Package catalog abstracts the relational engines the pipeline executes
// against: a primary Postgres database and an optional single-file sqlite
// fallback. Both expose catalog introspection (list tables, list columns)
// and plain SELECT execution.
package catalog

import (
	"context"

	"github.com/sells-group/querypilot/internal/model"
)

// Engine is a relational execution target.
type Engine interface {
	// Name identifies the engine in logs and error messages.
	Name() string

	// ListTables returns all base table names in the engine's default
	// schema, sorted lexicographically. Sorted output is a contract: every
	// "first available table" fallback in the pipeline relies on it.
	ListTables(ctx context.Context) ([]string, error)

	// Columns returns the column name to declared type mapping for a table,
	// or ErrTableNotFound if the table does not exist.
	Columns(ctx context.Context, table string) (map[string]string, error)

	// Query executes a SELECT and returns all rows. A zero-row result is a
	// nil-error outcome with an empty slice.
	Query(ctx context.Context, sql string) ([]model.Row, error)

	Close() error
}
