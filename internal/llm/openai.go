package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIInvoker sends prompts to an OpenAI-compatible chat completion API.
type OpenAIInvoker struct {
	client *openai.Client
	opts   Options
}

// NewOpenAIInvoker constructs an invoker with the given credentials. An
// empty baseURL targets the public API.
func NewOpenAIInvoker(apiKey, baseURL string, opts Options) *OpenAIInvoker {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if v := strings.TrimRight(strings.TrimSpace(baseURL), "/"); v != "" {
		cfg.BaseURL = v
	}
	return &OpenAIInvoker{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
	}
}

// Invoke sends the prompt as a single user message and returns the first
// choice's content.
func (p *OpenAIInvoker) Invoke(ctx context.Context, model, prompt string) (string, error) {
	if p == nil || p.client == nil {
		return "", errors.New("llm: openai: nil client")
	}
	if ctx == nil {
		return "", errors.New("llm: openai: nil context")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("llm: openai: empty model")
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
		Temperature: float32(p.opts.Temperature),
	}
	if p.opts.MaxTokens > 0 {
		req.MaxTokens = p.opts.MaxTokens
	}
	if p.opts.TopP > 0 {
		req.TopP = float32(p.opts.TopP)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
