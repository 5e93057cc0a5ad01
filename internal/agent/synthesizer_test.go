package agent

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/querypilot/internal/model"
)

func TestSynthesizer_FillsSQLFromFencedBlock(t *testing.T) {
	gen := &fakeGen{text: "Sure thing:\n```sql\nSELECT id FROM orders_42\n```"}
	s := NewSynthesizer(gen)

	qc := &model.QueryContext{
		TenantID:          "42",
		Question:          "all order ids",
		PhysicalTableName: "orders_42",
		Schema:            map[string]string{"id": "integer", "total": "numeric"},
	}
	require.NoError(t, s.Synthesize(context.Background(), qc))
	assert.Equal(t, "SELECT id FROM orders_42", qc.SQLQuery)
}

func TestSynthesizer_BackendErrorIsGenerationFailure(t *testing.T) {
	gen := &fakeGen{err: eris.New("connection refused")}
	s := NewSynthesizer(gen)

	err := s.Synthesize(context.Background(), &model.QueryContext{Question: "q"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrGenerationFailure))
}

func TestSynthesizer_EmptyResponseIsGenerationFailure(t *testing.T) {
	gen := &fakeGen{text: "   \n  "}
	s := NewSynthesizer(gen)

	err := s.Synthesize(context.Background(), &model.QueryContext{Question: "q"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrGenerationFailure))
}

func TestBuildPrompt_ContainsTableColumnsAndDescriptions(t *testing.T) {
	qc := &model.QueryContext{
		Question:           "total sales",
		PhysicalTableName:  "orders_42",
		Schema:             map[string]string{"total": "numeric", "id": "integer"},
		ColumnDescriptions: map[string]string{"total": "order total in cents"},
	}
	prompt := BuildPrompt(qc)
	assert.Contains(t, prompt, "Question: total sales")
	assert.Contains(t, prompt, "Table: orders_42")
	assert.Contains(t, prompt, "verbatim in the FROM clause")
	assert.Contains(t, prompt, "id integer")
	assert.Contains(t, prompt, "total numeric -- order total in cents")
}

func TestExtractSQL(t *testing.T) {
	assert.Equal(t, "SELECT 1", ExtractSQL("```sql\nSELECT 1\n```"))
	assert.Equal(t, "SELECT 1", ExtractSQL("```\nSELECT 1\n```"))
	assert.Equal(t, "SELECT 1", ExtractSQL("  SELECT 1  "))
	assert.Equal(t, "", ExtractSQL("   "))
	assert.Equal(t, "SELECT 2", ExtractSQL("prose\n```sql\nSELECT 2\n```\nmore prose"))
}
