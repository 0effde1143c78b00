package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const defaultClaudeMaxTokens = 4096

// ClaudeInvoker sends prompts to the Anthropic messages API. The benchmark
// model tag is passed through as the API model name.
type ClaudeInvoker struct {
	client *anthropic.Client
	opts   Options
}

// NewClaudeInvoker constructs an invoker with the given credentials.
func NewClaudeInvoker(apiKey, baseURL string, opts Options) *ClaudeInvoker {
	reqOpts := make([]option.RequestOption, 0, 3)
	if v := strings.TrimSpace(apiKey); v != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(v))
	}
	if v := strings.TrimRight(strings.TrimSpace(baseURL), "/"); v != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimSuffix(v, "/v1")))
	}

	client := anthropic.NewClient(reqOpts...)
	return &ClaudeInvoker{client: &client, opts: opts}
}

// Invoke sends the prompt as a single user message and concatenates the
// text blocks of the reply.
func (c *ClaudeInvoker) Invoke(ctx context.Context, model, prompt string) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("llm: claude: nil client")
	}
	if ctx == nil {
		return "", errors.New("llm: claude: nil context")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("llm: claude: empty model")
	}

	maxTokens := c.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(prompt),
			},
		}},
	}
	if c.opts.Temperature != 0 {
		params.Temperature = param.NewOpt(c.opts.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: claude: %w", err)
	}
	if msg == nil {
		return "", errors.New("llm: claude: nil response")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
