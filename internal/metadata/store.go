// Package metadata persists per-tenant table descriptions and serves ranked
// lookups during table resolution. It is written at ingestion/index time and
// read-only on the query path, except for the reasoning log.
package metadata

import (
	"context"

	"github.com/sells-group/querypilot/internal/model"
)

// Entry describes one tenant table.
type Entry struct {
	TenantID     string            `json:"tenant_id"`
	TableName    string            `json:"table_name"`
	Columns      []string          `json:"columns"`
	Descriptions map[string]string `json:"descriptions,omitempty"` // column -> free text
	Description  string            `json:"description,omitempty"`  // table-level free text
}

// Match is a ranked search result.
type Match struct {
	Entry Entry
	Score int
}

// Store is the schema metadata index.
type Store interface {
	// Upsert inserts or replaces the entry keyed by (tenant, table).
	Upsert(ctx context.Context, e Entry) error

	// Search returns up to n entries for the tenant ranked by relevance to
	// the query text. Ranking is deterministic; ties break by table name.
	Search(ctx context.Context, tenantID, query string, n int) ([]Match, error)

	// ListTables returns all indexed table names for a tenant, sorted.
	ListTables(ctx context.Context, tenantID string) ([]string, error)

	// LogReasoning appends a schema-linking trace for observability.
	LogReasoning(ctx context.Context, tenantID, question string, r model.SchemaReasoning) error

	Close() error
}
