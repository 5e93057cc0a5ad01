// Package agent implements the question-to-SQL pipeline: resolve the tenant
// table, link its schema, synthesize SQL, sanitize it, execute it. Stages run
// strictly sequentially over one mutable QueryContext and the pipeline halts
// at the first failure.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/querypilot/internal/catalog"
	"github.com/sells-group/querypilot/internal/config"
	"github.com/sells-group/querypilot/internal/metadata"
	"github.com/sells-group/querypilot/internal/model"
	"github.com/sells-group/querypilot/pkg/textgen"
)

// Agent is the immutable pipeline, assembled once at startup. One Agent
// serves any number of concurrent requests; each request gets its own
// QueryContext.
type Agent struct {
	cfg      config.AgentConfig
	resolver *Resolver
	linker   *Linker
	synth    *Synthesizer
	executor *Executor
}

// New assembles the pipeline. fallback and meta may be nil.
func New(cfg config.AgentConfig, primary, fallback catalog.Engine, meta metadata.Store, gen textgen.Client) *Agent {
	return &Agent{
		cfg:      cfg,
		resolver: NewResolver(primary, cfg),
		linker:   NewLinker(primary, meta, cfg),
		synth:    NewSynthesizer(gen),
		executor: NewExecutor(primary, fallback),
	}
}

// Process answers one question. It never returns an error: every outcome,
// including stage failures, is reported through the AgentResponse.
func (a *Agent) Process(ctx context.Context, tenantID, question, requestedTable string) model.AgentResponse {
	qc := &model.QueryContext{TenantID: tenantID, Question: question}

	type stage struct {
		name string
		run  func(context.Context, *model.QueryContext) error
	}
	stages := []stage{
		{model.StageResolve, func(ctx context.Context, qc *model.QueryContext) error {
			return a.resolver.Resolve(ctx, qc, requestedTable)
		}},
		{model.StageLink, a.linker.Link},
		{model.StageSynthesize, a.synth.Synthesize},
		{model.StageSanitize, a.sanitize},
		{model.StageExecute, a.executor.Execute},
	}

	start := time.Now()
	for _, st := range stages {
		if err := a.runStage(ctx, st.name, qc, st.run); err != nil {
			return model.AgentResponse{
				Success:  false,
				Message:  err.Error(),
				Stage:    st.name,
				TenantID: qc.TenantID,
				SQLQuery: qc.SQLQuery,
			}
		}
	}

	zap.L().Info("question processed",
		zap.String("tenant_id", qc.TenantID),
		zap.String("table", qc.PhysicalTableName),
		zap.Int("rows", len(qc.Results)),
		zap.Duration("duration", time.Since(start)),
	)

	msg := fmt.Sprintf("query returned %d row(s)", len(qc.Results))
	if len(qc.Results) == 0 {
		msg = "query executed successfully but returned no rows"
	}
	return model.AgentResponse{
		Success:  true,
		Message:  msg,
		Stage:    model.StageExecute,
		TenantID: qc.TenantID,
		SQLQuery: qc.SQLQuery,
		Rows:     qc.Results,
	}
}

// sanitize adapts the pure Sanitize transform to a pipeline stage. It never
// fails; a degraded repair is logged and processing continues.
func (a *Agent) sanitize(_ context.Context, qc *model.QueryContext) error {
	sql, degraded := Sanitize(qc.SQLQuery, SanitizeOptions{
		TenantID:       qc.TenantID,
		TenantColumn:   a.cfg.TenantColumn,
		Isolation:      a.cfg.TenantIsolation,
		ExternalSource: a.cfg.ExternalSource,
	})
	if degraded {
		zap.L().Warn("sanitization degraded, keeping minimally-cleaned statement",
			zap.String("tenant_id", qc.TenantID),
			zap.String("sql", sql),
		)
	}
	qc.SQLQuery = sql
	return nil
}

func (a *Agent) runStage(ctx context.Context, name string, qc *model.QueryContext, fn func(context.Context, *model.QueryContext) error) error {
	start := time.Now()
	err := fn(ctx, qc)
	fields := []zap.Field{
		zap.String("stage", name),
		zap.String("tenant_id", qc.TenantID),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		zap.L().Error("stage failed", append(fields, zap.Error(err))...)
		return err
	}
	zap.L().Debug("stage complete", fields...)
	return nil
}
