package agent

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/querypilot/internal/catalog"
	"github.com/sells-group/querypilot/internal/config"
	"github.com/sells-group/querypilot/internal/model"
	"github.com/sells-group/querypilot/internal/scorer"
)

// Resolver turns a tenant id and an optional requested table into a concrete
// physical table name, reconciling the suffix (canonical) and prefix (legacy)
// naming conventions.
type Resolver struct {
	engine catalog.Engine
	cfg    config.AgentConfig
}

// NewResolver creates a resolver over the primary engine's catalog.
func NewResolver(engine catalog.Engine, cfg config.AgentConfig) *Resolver {
	return &Resolver{engine: engine, cfg: cfg}
}

// Resolve fills qc.TenantID, qc.TableName and qc.PhysicalTableName.
// Resolution priority:
//  1. a requested table already carrying the tenant affix is accepted as-is
//  2. the suffix convention `{table}_{tenant}`, then the legacy prefix
//     convention `{tenant}_{table}`, checked against the live catalog
//  3. the tenant's live table list: a single table wins outright, otherwise
//     the relevance scorer picks, otherwise the first table in sorted order
//
// An unknown tenant id is substituted, never rejected. A tenant with zero
// tables fails with ErrNoTablesForTenant.
func (r *Resolver) Resolve(ctx context.Context, qc *model.QueryContext, requested string) error {
	tables, err := r.engine.ListTables(ctx)
	if err != nil {
		return eris.Wrap(err, "agent: resolve list tables")
	}

	if r.cfg.ExternalSource {
		return r.resolveExternal(qc, requested, tables)
	}

	r.validateTenant(qc, tables)

	candidates := tablesForTenant(qc.TenantID, tables)
	if len(candidates) == 0 {
		return eris.Wrapf(ErrNoTablesForTenant, "tenant %q", qc.TenantID)
	}

	if requested != "" {
		if physical, ok := r.matchRequested(qc.TenantID, requested, tables); ok {
			qc.PhysicalTableName = physical
			qc.TableName = stripTenantAffix(physical, qc.TenantID)
			return nil
		}
		zap.L().Debug("requested table not resolvable, falling back to catalog",
			zap.String("tenant_id", qc.TenantID),
			zap.String("requested", requested),
		)
	}

	physical := pickCandidate(qc.Question, candidates)
	qc.PhysicalTableName = physical
	qc.TableName = stripTenantAffix(physical, qc.TenantID)
	return nil
}

// resolveExternal handles tenant-neutral sources: names are used verbatim
// and every table is visible.
func (r *Resolver) resolveExternal(qc *model.QueryContext, requested string, tables []string) error {
	if len(tables) == 0 {
		return eris.Wrapf(ErrNoTablesForTenant, "tenant %q", qc.TenantID)
	}
	if requested != "" {
		qc.PhysicalTableName = requested
		qc.TableName = requested
		return nil
	}
	physical := pickCandidate(qc.Question, tables)
	qc.PhysicalTableName = physical
	qc.TableName = physical
	return nil
}

// validateTenant substitutes the first discovered tenant, then the configured
// default, when the supplied id is absent or unknown. Resolution never aborts
// solely for an unknown tenant.
func (r *Resolver) validateTenant(qc *model.QueryContext, tables []string) {
	known := DiscoverTenants(tables)
	if qc.TenantID != "" {
		for _, t := range known {
			if t == qc.TenantID {
				return
			}
		}
	}

	substitute := r.cfg.DefaultTenant
	if len(known) > 0 {
		substitute = known[0]
	}
	zap.L().Warn("unknown tenant, substituting",
		zap.String("supplied", qc.TenantID),
		zap.String("substitute", substitute),
	)
	qc.TenantID = substitute
}

// matchRequested tries the requested name against the naming conventions.
func (r *Resolver) matchRequested(tenant, requested string, tables []string) (string, bool) {
	if hasTenantAffix(requested, tenant) {
		return requested, true
	}
	if physical := requested + "_" + tenant; containsTable(tables, physical) {
		return physical, true
	}
	if physical := tenant + "_" + requested; containsTable(tables, physical) {
		return physical, true
	}
	return "", false
}

// pickCandidate selects from a sorted candidate list: a single entry wins,
// a scorer winner above the selection threshold wins, otherwise the first.
func pickCandidate(question string, candidates []string) string {
	if len(candidates) == 1 {
		return candidates[0]
	}
	if best, score := scorer.Best(question, candidates); score > scorer.SelectionThreshold {
		return best
	}
	return candidates[0]
}

// DiscoverTenants extracts the set of tenant ids implied by the catalog's
// table names: the segment after the last underscore (suffix convention) and
// before the first (legacy prefix convention). Sorted and de-duplicated.
func DiscoverTenants(tables []string) []string {
	set := make(map[string]struct{})
	for _, name := range tables {
		idx := strings.LastIndex(name, "_")
		if idx <= 0 || idx == len(name)-1 {
			continue
		}
		set[name[idx+1:]] = struct{}{}
		if first := strings.Index(name, "_"); first > 0 {
			set[name[:first]] = struct{}{}
		}
	}
	tenants := make([]string, 0, len(set))
	for t := range set {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	return tenants
}

// tablesForTenant filters the sorted catalog listing down to tables carrying
// the tenant affix. Order is preserved, so the result stays sorted.
func tablesForTenant(tenant string, tables []string) []string {
	var out []string
	for _, name := range tables {
		if hasTenantAffix(name, tenant) {
			out = append(out, name)
		}
	}
	return out
}

func hasTenantAffix(name, tenant string) bool {
	return strings.HasSuffix(name, "_"+tenant) || strings.HasPrefix(name, tenant+"_")
}

// stripTenantAffix recovers the logical table name from a physical one.
func stripTenantAffix(name, tenant string) string {
	if strings.HasSuffix(name, "_"+tenant) {
		return strings.TrimSuffix(name, "_"+tenant)
	}
	if strings.HasPrefix(name, tenant+"_") {
		return strings.TrimPrefix(name, tenant+"_")
	}
	return name
}

func containsTable(tables []string, name string) bool {
	for _, t := range tables {
		if t == name {
			return true
		}
	}
	return false
}
