package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glossalab/lobench/internal/config"
)

// FromConfig builds the configured model collaborator. One provider serves
// a whole run; the model tag is supplied per invocation.
func FromConfig(cfg *config.Config) (Invoker, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	opts := Options{
		Temperature: cfg.Run.Temperature,
		TopP:        cfg.Run.TopP,
		NumCtx:      cfg.Run.NumCtx,
		Seed:        cfg.Run.Seed,
	}

	name := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if name == "" {
		name = "ollama"
	}

	pcfg := cfg.LLM.Providers[name]
	switch name {
	case "ollama":
		return NewOllamaInvoker(pcfg.BaseURL, WithOllamaOptions(opts)), nil
	case "claude", "anthropic":
		return NewClaudeInvoker(pcfg.APIKey, pcfg.BaseURL, opts), nil
	case "openai":
		return NewOpenAIInvoker(pcfg.APIKey, pcfg.BaseURL, opts), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", name)
	}
}
