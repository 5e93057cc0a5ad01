package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolated(tenant string) SanitizeOptions {
	return SanitizeOptions{TenantID: tenant, TenantColumn: "tenant_id", Isolation: true}
}

func TestSanitize_StripsBackticksAndMergesWhere(t *testing.T) {
	sql, degraded := Sanitize("`SELECT * FROM t WHERE a=1 WHERE b=2`", SanitizeOptions{})
	require.False(t, degraded)
	assert.Equal(t, "SELECT * FROM t WHERE a=1 AND b=2;", sql)
}

func TestSanitize_MarkdownFence(t *testing.T) {
	in := "```sql\nSELECT id FROM orders_42\n```"
	sql, degraded := Sanitize(in, SanitizeOptions{})
	require.False(t, degraded)
	assert.Equal(t, "SELECT id FROM orders_42;", sql)
}

func TestSanitize_ExtractsSelectSpanFromProse(t *testing.T) {
	in := "Here is your query:\nSELECT name FROM users_7; Let me know if you need more."
	sql, _ := Sanitize(in, SanitizeOptions{})
	assert.Equal(t, "SELECT name FROM users_7;", sql)
}

func TestSanitize_TerminatorAlwaysExactlyOne(t *testing.T) {
	cases := []string{
		"SELECT 1",
		"SELECT 1;",
		"SELECT 1;;;",
		"SELECT 1；",
		"SELECT 1｜",
		"SELECT 1; ; ;",
	}
	for _, in := range cases {
		sql, _ := Sanitize(in, SanitizeOptions{})
		assert.True(t, strings.HasSuffix(sql, ";"), "input %q -> %q", in, sql)
		assert.False(t, strings.HasSuffix(sql, ";;"), "input %q -> %q", in, sql)
	}
}

func TestSanitize_MultipleWhereMergedToSingle(t *testing.T) {
	sql, _ := Sanitize("SELECT * FROM t WHERE a=1 WHERE b=2 WHERE c=3", SanitizeOptions{})
	assert.Equal(t, 1, strings.Count(strings.ToUpper(sql), "WHERE"))
	assert.Contains(t, sql, "a=1 AND b=2 AND c=3")
}

func TestSanitize_WhereInsideLiteralUntouched(t *testing.T) {
	in := "SELECT * FROM t WHERE note = 'WHERE it hurts'"
	sql, _ := Sanitize(in, SanitizeOptions{})
	assert.Equal(t, "SELECT * FROM t WHERE note = 'WHERE it hurts';", sql)
}

func TestSanitize_InjectsTenantFilterWithoutWhere(t *testing.T) {
	sql, _ := Sanitize("SELECT * FROM orders_42", isolated("42"))
	assert.Equal(t, "SELECT * FROM orders_42 WHERE tenant_id = '42';", sql)
}

func TestSanitize_InjectsTenantFilterAfterExistingWhere(t *testing.T) {
	sql, _ := Sanitize("SELECT * FROM orders_42 WHERE total > 5", isolated("42"))
	assert.Equal(t, "SELECT * FROM orders_42 WHERE tenant_id = '42' AND total > 5;", sql)
}

func TestSanitize_ExistingFilterNotDuplicated(t *testing.T) {
	in := "SELECT * FROM orders_42 WHERE tenant_id = '42' AND total > 5"
	sql, _ := Sanitize(in, isolated("42"))
	assert.Equal(t, 1, strings.Count(sql, "tenant_id"))
}

func TestSanitize_ExternalSourceNeverInjects(t *testing.T) {
	opts := SanitizeOptions{TenantID: "42", TenantColumn: "tenant_id", ExternalSource: true}
	sql, _ := Sanitize("SELECT * FROM census", opts)
	assert.NotContains(t, sql, "tenant_id")
}

func TestSanitize_ExternalSourceStripsTrailingFilter(t *testing.T) {
	opts := SanitizeOptions{TenantID: "42", TenantColumn: "tenant_id", ExternalSource: true}

	sql, _ := Sanitize("SELECT * FROM census WHERE tenant_id = '42'", opts)
	assert.Equal(t, "SELECT * FROM census;", sql)

	sql, _ = Sanitize("SELECT * FROM census WHERE pop > 100 AND tenant_id = '42'", opts)
	assert.Equal(t, "SELECT * FROM census WHERE pop > 100;", sql)
}

func TestSanitize_DropsNonASCII(t *testing.T) {
	sql, degraded := Sanitize("SELECT näme FROM t", SanitizeOptions{})
	require.False(t, degraded)
	assert.Equal(t, "SELECT nme FROM t;", sql)
}

func TestSanitize_FoldsFullWidthToASCII(t *testing.T) {
	sql, degraded := Sanitize("SELECT ＩＤ FROM t", SanitizeOptions{})
	require.False(t, degraded)
	assert.Equal(t, "SELECT ID FROM t;", sql)
}

func TestSanitize_DegradedFallbackWhenSelectLost(t *testing.T) {
	in := "`データを全部見せて`"
	sql, degraded := Sanitize(in, SanitizeOptions{})
	assert.True(t, degraded)
	assert.Equal(t, "データを全部見せて;", sql)
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"`SELECT * FROM t WHERE a=1 WHERE b=2`",
		"```sql\nSELECT id FROM orders_42\n```",
		"SELECT * FROM orders_42 WHERE total > 5",
		"SELECT * FROM orders_42",
		"SELECT 1;;;",
		"prose SELECT x FROM y; more prose",
		"`データを全部見せて`",
	}
	for _, opts := range []SanitizeOptions{{}, isolated("42"), {TenantID: "42", TenantColumn: "tenant_id", ExternalSource: true}} {
		for _, in := range inputs {
			once, _ := Sanitize(in, opts)
			twice, _ := Sanitize(once, opts)
			assert.Equal(t, once, twice, "input %q opts %+v", in, opts)
		}
	}
}

func TestSanitize_DefaultTenantColumn(t *testing.T) {
	sql, _ := Sanitize("SELECT * FROM t", SanitizeOptions{TenantID: "7", Isolation: true})
	assert.Contains(t, sql, "tenant_id = '7'")
}
