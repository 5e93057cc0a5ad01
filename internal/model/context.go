// Package model defines the data types threaded through the query pipeline.
package model

// Row is a single result row keyed by column name.
type Row map[string]any

// SchemaReasoning is the advisory schema-linking trace produced by the linker.
// It explains which tables and columns were judged relevant to the question.
// The pipeline never gates on it; it exists for observability.
type SchemaReasoning struct {
	Explanation    string   `json:"explanation"`
	RelatedTables  []string `json:"related_tables"`
	RelatedColumns []string `json:"related_columns"`
}

// QueryContext is the mutable request-scoped record threaded through every
// pipeline stage. It is created by the agent for one question, passed by
// pointer into each stage in strict sequence, and discarded after the
// response is built. It is never shared across requests.
type QueryContext struct {
	// TenantID identifies the data owner. May be rewritten by the resolver
	// when the supplied id is unknown.
	TenantID string

	// Question is the original natural-language text. Stages must not modify it.
	Question string

	// TableName is the logical (un-suffixed) table identifier.
	TableName string

	// PhysicalTableName is the literal table identifier in the engine, with
	// the tenant suffix or prefix applied. This is what generated SQL uses.
	PhysicalTableName string

	// Schema maps cleaned column names (lowercase, no whitespace) to their
	// declared types. Built once per resolved table.
	Schema map[string]string

	// ColumnDescriptions holds free-text column descriptions from the
	// metadata store, when available. Feeds the generation prompt.
	ColumnDescriptions map[string]string

	// Reasoning is the schema-linking trace. Nil until the linker runs.
	Reasoning *SchemaReasoning

	// SQLQuery holds the candidate, then sanitized, SQL text.
	SQLQuery string

	// Results holds the executed query's rows. An empty non-nil slice is a
	// valid zero-row outcome, distinct from failure.
	Results []Row
}

// AgentResponse is the terminal result of processing one question.
// A failed response never carries rows; a successful response with zero rows
// carries an explicit message distinct from failure.
type AgentResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Stage    string `json:"stage,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	SQLQuery string `json:"sql_query,omitempty"`
	Rows     []Row  `json:"rows,omitempty"`
}

// Stage names reported in AgentResponse.Stage on failure.
const (
	StageResolve    = "resolve"
	StageLink       = "link"
	StageSynthesize = "synthesize"
	StageSanitize   = "sanitize"
	StageExecute    = "execute"
)
