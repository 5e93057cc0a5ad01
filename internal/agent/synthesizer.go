package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/querypilot/internal/model"
	"github.com/sells-group/querypilot/pkg/textgen"
)

const systemPrompt = "You translate natural-language questions into a single SQL SELECT statement. " +
	"Respond with only the SQL statement, nothing else."

// Synthesizer builds the generation prompt, calls the text-generation
// backend and extracts the candidate SQL from its free-form output. No
// validity check happens here; that is the sanitizer's job.
type Synthesizer struct {
	gen textgen.Client
}

// NewSynthesizer creates a synthesizer over a text-generation client.
func NewSynthesizer(gen textgen.Client) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// Synthesize fills qc.SQLQuery. Backend errors and empty extractions are
// ErrGenerationFailure.
func (s *Synthesizer) Synthesize(ctx context.Context, qc *model.QueryContext) error {
	resp, err := s.gen.Generate(ctx, textgen.Request{
		System: systemPrompt,
		Prompt: BuildPrompt(qc),
	})
	if err != nil {
		return eris.Wrapf(ErrGenerationFailure, "backend: %v", err)
	}

	sql := ExtractSQL(resp.Text)
	if sql == "" {
		return eris.Wrap(ErrGenerationFailure, "empty response")
	}
	qc.SQLQuery = sql
	return nil
}

// BuildPrompt renders the generation prompt: question, the exact physical
// table name with a verbatim-use instruction, the sorted column list and any
// column descriptions.
func BuildPrompt(qc *model.QueryContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question: %s\n\n", qc.Question)
	fmt.Fprintf(&b, "Table: %s\n", qc.PhysicalTableName)
	b.WriteString("You must use this exact table name verbatim in the FROM clause.\n\n")

	names := make([]string, 0, len(qc.Schema))
	for name := range qc.Schema {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("Columns:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s %s", name, qc.Schema[name])
		if desc, ok := qc.ColumnDescriptions[name]; ok && desc != "" {
			fmt.Fprintf(&b, " -- %s", desc)
		}
		b.WriteByte('\n')
	}

	return b.String()
}

var fencedBlock = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")

// ExtractSQL takes the contents of the first fenced code block when present,
// otherwise the whole text, trimmed. Empty input yields "".
func ExtractSQL(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}
