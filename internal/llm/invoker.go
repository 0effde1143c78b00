// Package llm is the boundary to the model collaborator. The rest of the
// system assumes nothing beyond Invoker: a prompt goes in, raw text comes
// out, and failures are ordinary errors.
package llm

import "context"

// Invoker sends one prompt to a named model and returns its raw text
// output. Implementations may be slow and may fail transiently; callers own
// timeouts via ctx and retries.
type Invoker interface {
	Invoke(ctx context.Context, model, prompt string) (string, error)
}

// Options carries generation parameters shared by all providers. The zero
// value means provider defaults.
type Options struct {
	Temperature float64
	TopP        float64
	NumCtx      int
	Seed        int64
	MaxTokens   int
}
