package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/querypilot/internal/agent"
	"github.com/sells-group/querypilot/internal/catalog"
	"github.com/sells-group/querypilot/internal/metadata"
	"github.com/sells-group/querypilot/pkg/textgen"
)

// queryEnv holds the initialized engines, metadata store, generation client
// and the assembled agent used by the ask/serve/tables/index commands.
type queryEnv struct {
	Primary  catalog.Engine
	Fallback catalog.Engine // nil without engine.fallback_path
	Metadata metadata.Store // nil without metadata.path
	Agent    *agent.Agent
}

// Close releases resources held by the environment.
func (e *queryEnv) Close() {
	if e.Metadata != nil {
		_ = e.Metadata.Close()
	}
	if e.Fallback != nil {
		_ = e.Fallback.Close()
	}
	if e.Primary != nil {
		_ = e.Primary.Close()
	}
}

// initEnv sets up engines, the metadata store and the text-generation client,
// then assembles the agent. Callers should defer env.Close().
func initEnv(ctx context.Context) (*queryEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env := &queryEnv{}

	if cfg.Engine.DatabaseURL != "" {
		primary, err := catalog.NewPostgres(ctx, cfg.Engine.DatabaseURL, catalog.PostgresConfig{
			MaxConns: cfg.Engine.MaxConns,
			MinConns: cfg.Engine.MinConns,
		})
		if err != nil {
			return nil, err
		}
		env.Primary = primary
	}

	if cfg.Engine.FallbackPath != "" {
		sq, err := catalog.NewSQLite(cfg.Engine.FallbackPath)
		if err != nil {
			env.Close()
			return nil, err
		}
		if env.Primary == nil {
			// Single-file mode: the embedded engine is the primary.
			env.Primary = sq
		} else {
			env.Fallback = sq
		}
	}

	if cfg.Metadata.Path != "" {
		meta, err := metadata.NewSQLite(cfg.Metadata.Path)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Metadata = meta
	} else {
		zap.L().Debug("metadata.path not set, linker will use the live catalog only")
	}

	env.Agent = agent.New(cfg.Agent, env.Primary, env.Fallback, env.Metadata, initTextGen())

	return env, nil
}

// initTextGen builds the configured generation client wrapped with rate
// limiting and retry.
func initTextGen() textgen.Client {
	var client textgen.Client
	switch cfg.TextGen.Provider {
	case "ollama":
		client = textgen.NewOllama(
			textgen.WithOllamaBaseURL(cfg.TextGen.BaseURL),
			textgen.WithOllamaModel(cfg.TextGen.Model),
			textgen.WithOllamaMaxTokens(int(cfg.TextGen.MaxTokens)),
		)
	default:
		client = textgen.NewAnthropic(cfg.TextGen.Key,
			textgen.WithAnthropicModel(cfg.TextGen.Model),
			textgen.WithAnthropicMaxTokens(int(cfg.TextGen.MaxTokens)),
		)
	}
	return textgen.WithRateLimit(client, cfg.TextGen.RequestsPerSecond)
}

// generationTimeout bounds one question end to end, covering the generation
// call and each database round trip.
func generationTimeout() time.Duration {
	secs := cfg.TextGen.TimeoutSecs
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}
