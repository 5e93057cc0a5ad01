package agent

import "github.com/rotisserie/eris"

// Stage failure sentinels. Every stage failure wraps one of these so the
// pipeline can classify it without string matching.
var (
	// ErrNoTablesForTenant means the tenant owns zero tables in the catalog.
	ErrNoTablesForTenant = eris.New("agent: no tables for tenant")

	// ErrSchemaNotFound means column metadata could not be located for the
	// resolved table after every fallback match was tried.
	ErrSchemaNotFound = eris.New("agent: schema not found")

	// ErrGenerationFailure means the text-generation backend was unreachable
	// or produced no usable SQL text.
	ErrGenerationFailure = eris.New("agent: generation failure")

	// ErrExecutionFailure means every configured engine rejected the
	// statement. The wrap chain carries the last engine error.
	ErrExecutionFailure = eris.New("agent: execution failure")
)
