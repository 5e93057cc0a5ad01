package agent

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/querypilot/internal/config"
	"github.com/sells-group/querypilot/internal/model"
)

func newTestResolver(engine *fakeEngine) *Resolver {
	return NewResolver(engine, config.AgentConfig{DefaultTenant: "default"})
}

func TestResolver_SingleTableAlwaysSelected(t *testing.T) {
	engine := &fakeEngine{tables: []string{"orders_42"}}
	r := newTestResolver(engine)

	qc := &model.QueryContext{TenantID: "42", Question: "total sales"}
	require.NoError(t, r.Resolve(context.Background(), qc, ""))
	assert.Equal(t, "orders_42", qc.PhysicalTableName)
	assert.Equal(t, "orders", qc.TableName)
}

func TestResolver_ScorerPicksAmongMultiple(t *testing.T) {
	engine := &fakeEngine{tables: []string{"orders_5", "customers_5"}}
	r := newTestResolver(engine)

	qc := &model.QueryContext{TenantID: "5", Question: "show all customers"}
	require.NoError(t, r.Resolve(context.Background(), qc, ""))
	assert.Equal(t, "customers_5", qc.PhysicalTableName)
}

func TestResolver_LowScoreFallsBackToFirstSorted(t *testing.T) {
	engine := &fakeEngine{tables: []string{"zz_7", "aa_7"}}
	r := newTestResolver(engine)

	qc := &model.QueryContext{TenantID: "7", Question: "anything at all"}
	require.NoError(t, r.Resolve(context.Background(), qc, ""))
	assert.Equal(t, "aa_7", qc.PhysicalTableName)
}

func TestResolver_RequestedTableWithAffixAcceptedAsIs(t *testing.T) {
	engine := &fakeEngine{tables: []string{"orders_42"}}
	r := newTestResolver(engine)

	qc := &model.QueryContext{TenantID: "42", Question: "q"}
	require.NoError(t, r.Resolve(context.Background(), qc, "orders_42"))
	assert.Equal(t, "orders_42", qc.PhysicalTableName)
	assert.Equal(t, "orders", qc.TableName)
}

func TestResolver_RequestedLogicalNameGetsSuffix(t *testing.T) {
	engine := &fakeEngine{tables: []string{"orders_42", "users_42"}}
	r := newTestResolver(engine)

	qc := &model.QueryContext{TenantID: "42", Question: "q"}
	require.NoError(t, r.Resolve(context.Background(), qc, "users"))
	assert.Equal(t, "users_42", qc.PhysicalTableName)
	assert.Equal(t, "users", qc.TableName)
}

func TestResolver_LegacyPrefixConvention(t *testing.T) {
	engine := &fakeEngine{tables: []string{"42_inventory", "orders_42"}}
	r := newTestResolver(engine)

	qc := &model.QueryContext{TenantID: "42", Question: "q"}
	require.NoError(t, r.Resolve(context.Background(), qc, "inventory"))
	assert.Equal(t, "42_inventory", qc.PhysicalTableName)
}

func TestResolver_UnresolvableRequestFallsBackToCatalog(t *testing.T) {
	engine := &fakeEngine{tables: []string{"orders_42"}}
	r := newTestResolver(engine)

	qc := &model.QueryContext{TenantID: "42", Question: "q"}
	require.NoError(t, r.Resolve(context.Background(), qc, "nonexistent"))
	assert.Equal(t, "orders_42", qc.PhysicalTableName)
}

func TestResolver_UnknownTenantSubstituted(t *testing.T) {
	engine := &fakeEngine{tables: []string{"orders_42"}}
	r := newTestResolver(engine)

	qc := &model.QueryContext{TenantID: "999", Question: "q"}
	require.NoError(t, r.Resolve(context.Background(), qc, ""))
	// first discovered tenant in sorted order
	assert.Equal(t, "42", qc.TenantID)
	assert.Equal(t, "orders_42", qc.PhysicalTableName)
}

func TestResolver_EmptyCatalogUsesDefaultTenant(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestResolver(engine)

	qc := &model.QueryContext{TenantID: "", Question: "q"}
	err := r.Resolve(context.Background(), qc, "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoTablesForTenant))
	assert.Equal(t, "default", qc.TenantID)
}

func TestResolver_NoTablesForTenant(t *testing.T) {
	engine := &fakeEngine{tables: []string{"plain"}}
	r := newTestResolver(engine)

	qc := &model.QueryContext{TenantID: "42", Question: "q"}
	err := r.Resolve(context.Background(), qc, "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoTablesForTenant))
}

func TestResolver_ExternalSourceVerbatim(t *testing.T) {
	engine := &fakeEngine{tables: []string{"census", "weather"}}
	r := NewResolver(engine, config.AgentConfig{DefaultTenant: "default", ExternalSource: true})

	qc := &model.QueryContext{TenantID: "42", Question: "q"}
	require.NoError(t, r.Resolve(context.Background(), qc, "census"))
	assert.Equal(t, "census", qc.PhysicalTableName)
	assert.Equal(t, "census", qc.TableName)
	assert.Equal(t, "42", qc.TenantID)
}

func TestDiscoverTenants(t *testing.T) {
	tenants := DiscoverTenants([]string{"orders_42", "42_inventory", "users_7", "plain"})
	assert.Contains(t, tenants, "42")
	assert.Contains(t, tenants, "7")
	assert.NotContains(t, tenants, "plain")
}
