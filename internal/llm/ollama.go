package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaInvoker talks to a local Ollama server over its generate API.
type OllamaInvoker struct {
	baseURL    string
	httpClient *http.Client
	opts       Options
}

// OllamaOption configures an OllamaInvoker.
type OllamaOption func(*OllamaInvoker)

// WithOllamaHTTPClient replaces the HTTP client.
func WithOllamaHTTPClient(c *http.Client) OllamaOption {
	return func(o *OllamaInvoker) {
		if o == nil || c == nil {
			return
		}
		o.httpClient = c
	}
}

// WithOllamaOptions sets generation parameters sent with every request.
func WithOllamaOptions(opts Options) OllamaOption {
	return func(o *OllamaInvoker) {
		if o == nil {
			return
		}
		o.opts = opts
	}
}

// NewOllamaInvoker constructs an invoker for the given base URL.
func NewOllamaInvoker(baseURL string, opts ...OllamaOption) *OllamaInvoker {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}

	o := &OllamaInvoker{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Invoke sends one non-streaming generate request.
func (o *OllamaInvoker) Invoke(ctx context.Context, model, prompt string) (string, error) {
	if o == nil || o.httpClient == nil {
		return "", errors.New("llm: ollama: nil client")
	}
	if ctx == nil {
		return "", errors.New("llm: ollama: nil context")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("llm: ollama: empty model")
	}

	options := map[string]any{
		"temperature": o.opts.Temperature,
	}
	if o.opts.TopP > 0 {
		options["top_p"] = o.opts.TopP
	}
	if o.opts.NumCtx > 0 {
		options["num_ctx"] = o.opts.NumCtx
	}
	if o.opts.Seed != 0 {
		options["seed"] = o.opts.Seed
	}

	payload := ollamaGenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm: ollama: encode request: %w", err)
	}

	url := o.baseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: ollama: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024*1024))
	if err != nil {
		return "", fmt.Errorf("llm: ollama: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm: ollama: %s: %s", resp.Status, snippet(respBody))
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("llm: ollama: decode response: %w", err)
	}
	if strings.TrimSpace(out.Error) != "" {
		return "", fmt.Errorf("llm: ollama: %s", out.Error)
	}
	return out.Response, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
