package textgen

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// AnthropicClient generates text through the Anthropic Messages API.
type AnthropicClient struct {
	client    sdk.Client
	model     string
	maxTokens int
}

// AnthropicOption configures the Anthropic client.
type AnthropicOption func(*AnthropicClient)

// WithAnthropicModel overrides the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(c *AnthropicClient) {
		c.model = model
	}
}

// WithAnthropicMaxTokens overrides the default max output tokens.
func WithAnthropicMaxTokens(n int) AnthropicOption {
	return func(c *AnthropicClient) {
		c.maxTokens = n
	}
}

// NewAnthropic creates an Anthropic-backed client.
func NewAnthropic(apiKey string, opts ...AnthropicOption) *AnthropicClient {
	c := &AnthropicClient{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     defaultAnthropicModel,
		maxTokens: 1024,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *AnthropicClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "textgen: anthropic create message")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	zap.L().Debug("anthropic generation",
		zap.String("model", model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	return &Response{Text: sb.String()}, nil
}
