package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/querypilot/internal/resilience"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3"
)

// OllamaClient generates text against a local Ollama server via
// POST /api/chat with streaming disabled.
type OllamaClient struct {
	baseURL   string
	model     string
	maxTokens int
	http      *http.Client
}

// OllamaOption configures the Ollama client.
type OllamaOption func(*OllamaClient)

// WithOllamaBaseURL overrides the default server address.
func WithOllamaBaseURL(url string) OllamaOption {
	return func(c *OllamaClient) {
		c.baseURL = url
	}
}

// WithOllamaModel overrides the default model.
func WithOllamaModel(model string) OllamaOption {
	return func(c *OllamaClient) {
		c.model = model
	}
}

// WithOllamaMaxTokens overrides the default max output tokens.
func WithOllamaMaxTokens(n int) OllamaOption {
	return func(c *OllamaClient) {
		c.maxTokens = n
	}
}

// WithOllamaHTTPClient overrides the default http.Client.
func WithOllamaHTTPClient(hc *http.Client) OllamaOption {
	return func(c *OllamaClient) {
		c.http = hc
	}
}

// NewOllama creates an Ollama-backed client.
func NewOllama(opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		baseURL:   defaultOllamaBaseURL,
		model:     defaultOllamaModel,
		maxTokens: 1024,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (c *OllamaClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	var messages []ollamaMessage
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  ollamaOptions{NumPredict: maxTokens},
	})
	if err != nil {
		return nil, eris.Wrap(err, "textgen: marshal ollama request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "textgen: create ollama request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "textgen: send ollama request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "textgen: read ollama response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("textgen: ollama status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "textgen: unmarshal ollama response")
	}

	return &Response{Text: result.Message.Content}, nil
}
