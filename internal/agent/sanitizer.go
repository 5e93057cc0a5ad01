package agent

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// SanitizeOptions control tenant-filter handling during sanitization.
type SanitizeOptions struct {
	TenantID string
	// TenantColumn is the column the isolation filter predicates on.
	TenantColumn string
	// Isolation injects a tenant filter when the source is multi-tenant.
	Isolation bool
	// ExternalSource marks a tenant-neutral database: no filter is ever
	// injected and a trailing tenant filter is stripped instead.
	ExternalSource bool
}

var (
	terminatorRuns = regexp.MustCompile(`;(\s*;)+`)
	// trailing "WHERE col = '...'" or "AND col = '...'" just before the
	// terminator, stripped in external-source mode.
	trailingFilterTmpl = `(?i)\s+(WHERE|AND)\s+%s\s*=\s*'[^']*'\s*;\s*$`
)

// Sanitize normalizes and repairs a candidate SQL statement. It is a pure
// deterministic transform with a fixed step order and is idempotent:
// Sanitize(Sanitize(x)) == Sanitize(x).
//
// The degraded return is true when the ASCII pass destroyed the statement
// and the minimally-cleaned original was returned instead.
func Sanitize(raw string, opts SanitizeOptions) (sql string, degraded bool) {
	stripped := stripQuoting(raw)

	s := normalizeTerminators(stripped)
	s = extractSelect(s)
	s = terminate(s)
	s = mergeWhere(s)
	s = applyTenantFilter(s, opts)
	s = foldToASCII(s)

	if !containsKeyword(s, "SELECT") {
		return terminate(normalizeTerminators(stripped)), true
	}
	return s, false
}

// stripQuoting removes markdown fences and backticks, which break the
// target dialect.
func stripQuoting(s string) string {
	s = strings.ReplaceAll(s, "```sql", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.ReplaceAll(s, "`", "")
	return strings.TrimSpace(s)
}

// normalizeTerminators maps full-width and pipe-like terminator glyphs to
// the ASCII semicolon and collapses runs of terminators to one.
func normalizeTerminators(s string) string {
	s = strings.NewReplacer("；", ";", "｜", ";", "︔", ";").Replace(s)
	return terminatorRuns.ReplaceAllString(s, ";")
}

// extractSelect keeps the span from the first SELECT keyword to the nearest
// following terminator, discarding surrounding prose. Text without a SELECT
// passes through unchanged.
func extractSelect(s string) string {
	start := indexKeyword(s, "SELECT")
	if start < 0 {
		return s
	}
	rest := s[start:]
	if semi := strings.IndexByte(rest, ';'); semi >= 0 {
		return rest[:semi+1]
	}
	return rest
}

// terminate guarantees exactly one trailing ASCII semicolon.
func terminate(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "; \t\n")
	return s + ";"
}

// mergeWhere replaces every WHERE keyword after the first with AND, merging
// the clauses into one predicate. WHERE inside single-quoted literals is
// left alone.
func mergeWhere(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	seen := false
	inQuote := false
	for i := 0; i < len(s); {
		c := s[i]
		if c == '\'' {
			inQuote = !inQuote
			b.WriteByte(c)
			i++
			continue
		}
		if !inQuote && keywordAt(s, i, "WHERE") {
			if seen {
				b.WriteString("AND")
			} else {
				b.WriteString(s[i : i+len("WHERE")])
				seen = true
			}
			i += len("WHERE")
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// applyTenantFilter enforces the tenant-isolation convention. With isolation
// on it guarantees a `col = 'tenant'` predicate; with an external source it
// strips a trailing filter instead. Already-filtered statements pass through,
// which keeps the transform idempotent.
func applyTenantFilter(s string, opts SanitizeOptions) string {
	col := opts.TenantColumn
	if col == "" {
		col = "tenant_id"
	}

	if opts.ExternalSource {
		re := regexp.MustCompile(fmt.Sprintf(trailingFilterTmpl, regexp.QuoteMeta(col)))
		if loc := re.FindStringIndex(s); loc != nil {
			return terminate(s[:loc[0]])
		}
		return s
	}
	if !opts.Isolation {
		return s
	}

	filter := fmt.Sprintf("%s = '%s'", col, opts.TenantID)
	if hasTenantFilter(s, col) {
		return s
	}

	whereIdx := indexKeyword(s, "WHERE")
	if whereIdx < 0 {
		body := strings.TrimRight(strings.TrimSpace(s), "; \t\n")
		return body + " WHERE " + filter + ";"
	}
	after := whereIdx + len("WHERE")
	return s[:after] + " " + filter + " AND" + s[after:]
}

// hasTenantFilter reports whether a `col = '...'` predicate is already
// present outside string literals.
func hasTenantFilter(s, col string) bool {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(col) + `\s*=\s*'`)
	return re.MatchString(s)
}

// foldToASCII folds full-width characters to their narrow forms and drops
// anything that still has no ASCII representation.
func foldToASCII(s string) string {
	folded := width.Fold.String(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// indexKeyword returns the byte offset of the first occurrence of the
// keyword outside single-quoted literals, or -1.
func indexKeyword(s, kw string) int {
	inQuote := false
	for i := 0; i+len(kw) <= len(s); i++ {
		if s[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if !inQuote && keywordAt(s, i, kw) {
			return i
		}
	}
	return -1
}

func containsKeyword(s, kw string) bool {
	return indexKeyword(s, kw) >= 0
}

// keywordAt reports whether the keyword starts at offset i with word
// boundaries on both sides.
func keywordAt(s string, i int, kw string) bool {
	if i+len(kw) > len(s) || !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && isWordByte(s[i-1]) {
		return false
	}
	if end := i + len(kw); end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
