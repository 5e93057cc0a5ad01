// Package textgen abstracts text-generation backends behind a single
// Generate call. Two backends are provided: the Anthropic API and a local
// Ollama server. Callers pick one at construction and never branch on the
// provider again.
package textgen

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/querypilot/internal/resilience"
)

// Client generates text from a prompt.
type Client interface {
	// Generate produces a single completion. Implementations must honor
	// ctx cancellation and return the raw model text unmodified.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request describes one generation call.
type Request struct {
	System    string
	Prompt    string
	Model     string // overrides the client default when set
	MaxTokens int    // overrides the client default when set
}

// Response carries the model output.
type Response struct {
	Text string
}

// rateLimited wraps a Client with a token-bucket limiter and retry on
// transient backend failures.
type rateLimited struct {
	inner   Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// WithRateLimit wraps c so that calls are throttled to rps requests per
// second and retried on transient errors. An rps of zero or less disables
// throttling but keeps retries.
func WithRateLimit(c Client, rps float64) Client {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("textgen", "generate")
	return &rateLimited{inner: c, limiter: limiter, retry: cfg}
}

func (r *rateLimited) Generate(ctx context.Context, req Request) (*Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "textgen: rate limit wait")
		}
	}
	return resilience.DoVal(ctx, r.retry, func(ctx context.Context) (*Response, error) {
		return r.inner.Generate(ctx, req)
	})
}
