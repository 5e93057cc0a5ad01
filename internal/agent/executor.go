package agent

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/querypilot/internal/catalog"
	"github.com/sells-group/querypilot/internal/model"
)

// Executor runs the sanitized statement against the primary engine, with an
// optional single-file fallback engine retried on primary failure.
type Executor struct {
	primary  catalog.Engine
	fallback catalog.Engine
}

// NewExecutor creates an executor. fallback may be nil.
func NewExecutor(primary, fallback catalog.Engine) *Executor {
	return &Executor{primary: primary, fallback: fallback}
}

// Execute fills qc.Results. Before running it verifies the FROM-clause table
// against the live catalog and rewrites it to the first tenant-suffixed match
// when absent. Zero rows is a success; all engines failing is
// ErrExecutionFailure carrying the last engine error.
func (e *Executor) Execute(ctx context.Context, qc *model.QueryContext) error {
	e.correctTableName(ctx, qc)

	rows, err := e.primary.Query(ctx, qc.SQLQuery)
	if err != nil && e.fallback != nil {
		zap.L().Warn("primary engine failed, retrying on fallback",
			zap.String("engine", e.primary.Name()),
			zap.Error(err),
		)
		rows, err = e.fallback.Query(ctx, qc.SQLQuery)
	}
	if err != nil {
		return eris.Wrapf(ErrExecutionFailure, "%v", err)
	}

	if rows == nil {
		rows = []model.Row{}
	}
	qc.Results = rows
	return nil
}

// correctTableName checks the FROM-clause table against the catalog. When it
// does not exist, the first sorted table sharing its base token followed by
// an underscore is substituted in place. Catalog errors skip the check; the
// execution attempt itself will surface them.
func (e *Executor) correctTableName(ctx context.Context, qc *model.QueryContext) {
	table := fromClauseTable(qc.SQLQuery)
	if table == "" {
		return
	}

	tables, err := e.primary.ListTables(ctx)
	if err != nil || containsTable(tables, table) {
		return
	}

	base := table
	if idx := strings.Index(base, "_"); idx > 0 {
		base = base[:idx]
	}
	for _, t := range tables {
		if strings.HasPrefix(t, base+"_") {
			zap.L().Info("rewriting missing table in FROM clause",
				zap.String("from", table),
				zap.String("to", t),
			)
			qc.SQLQuery = replaceToken(qc.SQLQuery, table, t)
			qc.PhysicalTableName = t
			return
		}
	}
}

// fromClauseTable returns the identifier following the first FROM keyword,
// or "" when none is present.
func fromClauseTable(sql string) string {
	idx := indexKeyword(sql, "FROM")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimLeft(sql[idx+len("FROM"):], " \t\n")
	end := 0
	for end < len(rest) && (isWordByte(rest[end]) || rest[end] == '.') {
		end++
	}
	return strings.Trim(rest[:end], `"`)
}

// replaceToken replaces whole-word occurrences of old with new.
func replaceToken(s, old, new string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if keywordAt(s, i, old) {
			b.WriteString(new)
			i += len(old)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
