package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/querypilot/internal/catalog"
	"github.com/sells-group/querypilot/internal/config"
	"github.com/sells-group/querypilot/internal/metadata"
	"github.com/sells-group/querypilot/internal/model"
	"github.com/sells-group/querypilot/internal/scorer"
)

// Linker retrieves column metadata for the resolved table and produces the
// schema reasoning trace. The metadata store is optional; without it the
// linker works from the live catalog alone.
type Linker struct {
	engine catalog.Engine
	meta   metadata.Store
	cfg    config.AgentConfig
}

// NewLinker creates a linker. meta may be nil.
func NewLinker(engine catalog.Engine, meta metadata.Store, cfg config.AgentConfig) *Linker {
	return &Linker{engine: engine, meta: meta, cfg: cfg}
}

// Link fills qc.Schema, qc.ColumnDescriptions and qc.Reasoning. When the
// resolved physical name has no catalog entry it retries, in order:
// case-insensitive match, `{base}_{tenant}` suffix, `{tenant}_{base}` prefix,
// then the catalog table with the highest name-token overlap. All matches
// exhausted yields ErrSchemaNotFound.
func (l *Linker) Link(ctx context.Context, qc *model.QueryContext) error {
	columns, err := l.engine.Columns(ctx, qc.PhysicalTableName)
	if err != nil {
		if !eris.Is(err, catalog.ErrTableNotFound) {
			return eris.Wrap(err, "agent: link columns")
		}
		match, ok := l.fallbackMatch(ctx, qc)
		if !ok {
			return eris.Wrapf(ErrSchemaNotFound, "table %q", qc.PhysicalTableName)
		}
		zap.L().Debug("schema located under fallback name",
			zap.String("requested", qc.PhysicalTableName),
			zap.String("matched", match),
		)
		qc.PhysicalTableName = match
		qc.TableName = stripTenantAffix(match, qc.TenantID)
		if columns, err = l.engine.Columns(ctx, match); err != nil {
			return eris.Wrapf(ErrSchemaNotFound, "table %q: %v", match, err)
		}
	}

	qc.Schema = make(map[string]string, len(columns))
	for name, typ := range columns {
		qc.Schema[CleanColumnName(name)] = typ
	}

	qc.Reasoning = l.buildReasoning(ctx, qc)
	l.mergeMetadata(ctx, qc)
	return nil
}

// fallbackMatch walks the fallback chain over the live catalog listing.
func (l *Linker) fallbackMatch(ctx context.Context, qc *model.QueryContext) (string, bool) {
	tables, err := l.engine.ListTables(ctx)
	if err != nil || len(tables) == 0 {
		return "", false
	}

	for _, t := range tables {
		if strings.EqualFold(t, qc.PhysicalTableName) {
			return t, true
		}
	}

	base := qc.TableName
	if base == "" {
		base = qc.PhysicalTableName
	}
	if physical := base + "_" + qc.TenantID; containsTable(tables, physical) {
		return physical, true
	}
	if physical := qc.TenantID + "_" + base; containsTable(tables, physical) {
		return physical, true
	}

	return bestTokenOverlap(qc.PhysicalTableName, tables)
}

// bestTokenOverlap picks the catalog table sharing the most name tokens with
// the requested name. Ties break lexicographically; zero overlap is no match.
func bestTokenOverlap(requested string, tables []string) (string, bool) {
	want := make(map[string]struct{})
	for _, tok := range scorer.Tokenize(requested) {
		want[tok] = struct{}{}
	}

	best, bestCount := "", 0
	for _, t := range tables {
		count := 0
		for _, tok := range scorer.Tokenize(t) {
			if _, ok := want[tok]; ok {
				count++
			}
		}
		if count > bestCount || (count == bestCount && count > 0 && t < best) {
			best, bestCount = t, count
		}
	}
	return best, bestCount > 0
}

// buildReasoning lists the tenant's tables, marks as related any whose
// logical name appears in the question, and emits qualified columns for the
// related set. Advisory only; failures to read a sibling table's columns are
// ignored.
func (l *Linker) buildReasoning(ctx context.Context, qc *model.QueryContext) *model.SchemaReasoning {
	tables, err := l.engine.ListTables(ctx)
	if err != nil {
		tables = []string{qc.PhysicalTableName}
	}
	if !l.cfg.ExternalSource {
		tables = tablesForTenant(qc.TenantID, tables)
	}

	questionLower := strings.ToLower(qc.Question)
	related := make([]string, 0, 1)
	for _, t := range tables {
		base := strings.ToLower(stripTenantAffix(t, qc.TenantID))
		if t == qc.PhysicalTableName || (base != "" && strings.Contains(questionLower, base)) {
			related = append(related, t)
		}
	}
	if len(related) == 0 {
		related = append(related, qc.PhysicalTableName)
	}

	var qualified []string
	for _, t := range related {
		if t == qc.PhysicalTableName {
			for name := range qc.Schema {
				qualified = append(qualified, t+"."+name)
			}
			continue
		}
		cols, err := l.engine.Columns(ctx, t)
		if err != nil {
			continue
		}
		for name := range cols {
			qualified = append(qualified, t+"."+CleanColumnName(name))
		}
	}
	sort.Strings(qualified)

	return &model.SchemaReasoning{
		Explanation: fmt.Sprintf("selected table %s for tenant %s; %d of %d table(s) judged relevant to the question",
			qc.PhysicalTableName, qc.TenantID, len(related), len(tables)),
		RelatedTables:  related,
		RelatedColumns: qualified,
	}
}

// mergeMetadata pulls column descriptions for the resolved table from the
// metadata store into the context and records the reasoning trace. Both are
// best-effort.
func (l *Linker) mergeMetadata(ctx context.Context, qc *model.QueryContext) {
	if l.meta == nil {
		return
	}

	matches, err := l.meta.Search(ctx, qc.TenantID, qc.Question, 3)
	if err != nil {
		zap.L().Warn("metadata search failed", zap.Error(err))
	} else {
		for _, m := range matches {
			if m.Entry.TableName != qc.PhysicalTableName && m.Entry.TableName != qc.TableName {
				continue
			}
			if qc.ColumnDescriptions == nil {
				qc.ColumnDescriptions = make(map[string]string, len(m.Entry.Descriptions))
			}
			for col, desc := range m.Entry.Descriptions {
				qc.ColumnDescriptions[CleanColumnName(col)] = desc
			}
		}
	}

	if qc.Reasoning != nil {
		if err := l.meta.LogReasoning(ctx, qc.TenantID, qc.Question, *qc.Reasoning); err != nil {
			zap.L().Warn("reasoning log write failed", zap.Error(err))
		}
	}
}

// CleanColumnName normalizes a raw column identifier: lowercased, internal
// whitespace and slashes become underscores, commas and parens are stripped.
func CleanColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "\t", "_", "\n", "_", "/", "_").Replace(name)
	name = strings.NewReplacer(",", "", "(", "", ")", "").Replace(name)
	return name
}
