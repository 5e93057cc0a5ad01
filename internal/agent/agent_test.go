package agent

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/querypilot/internal/catalog"
	"github.com/sells-group/querypilot/internal/metadata"
	"github.com/sells-group/querypilot/internal/model"
	"github.com/sells-group/querypilot/pkg/textgen"
)

// fakeEngine is an in-memory catalog.Engine for stage tests.
type fakeEngine struct {
	name     string
	tables   []string
	columns  map[string]map[string]string
	rows     []model.Row
	listErr  error
	queryErr error
	queries  []string
}

func (f *fakeEngine) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeEngine) ListTables(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]string, len(f.tables))
	copy(out, f.tables)
	sort.Strings(out)
	return out, nil
}

func (f *fakeEngine) Columns(_ context.Context, table string) (map[string]string, error) {
	cols, ok := f.columns[table]
	if !ok {
		return nil, eris.Wrapf(catalog.ErrTableNotFound, "fake: %s", table)
	}
	return cols, nil
}

func (f *fakeEngine) Query(_ context.Context, sql string) ([]model.Row, error) {
	f.queries = append(f.queries, sql)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.rows == nil {
		return []model.Row{}, nil
	}
	return f.rows, nil
}

func (f *fakeEngine) Close() error { return nil }

// fakeStore records metadata interactions.
type fakeStore struct {
	entries   []metadata.Entry
	reasoning []model.SchemaReasoning
	searchErr error
}

func (f *fakeStore) Upsert(_ context.Context, e metadata.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeStore) Search(_ context.Context, tenantID, _ string, n int) ([]metadata.Match, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []metadata.Match
	for _, e := range f.entries {
		if e.TenantID == tenantID {
			out = append(out, metadata.Match{Entry: e, Score: 1})
		}
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeStore) ListTables(_ context.Context, tenantID string) ([]string, error) {
	var out []string
	for _, e := range f.entries {
		if e.TenantID == tenantID {
			out = append(out, e.TableName)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) LogReasoning(_ context.Context, _, _ string, r model.SchemaReasoning) error {
	f.reasoning = append(f.reasoning, r)
	return nil
}

func (f *fakeStore) Close() error { return nil }

// fakeGen returns canned generation output.
type fakeGen struct {
	text    string
	err     error
	prompts []textgen.Request
}

func (f *fakeGen) Generate(_ context.Context, req textgen.Request) (*textgen.Response, error) {
	f.prompts = append(f.prompts, req)
	if f.err != nil {
		return nil, f.err
	}
	return &textgen.Response{Text: f.text}, nil
}
