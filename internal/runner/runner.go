// Package runner drives models over a dataset, persisting raw outputs so a
// batch can be resumed without re-invoking completed pairs.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/glossalab/lobench/internal/dataset"
	"github.com/glossalab/lobench/internal/llm"
	"github.com/glossalab/lobench/internal/runstore"
)

// Config bounds a batch run.
type Config struct {
	// Timeout applies per invocation; expiry counts as a transient failure.
	Timeout time.Duration

	// Retries is the number of re-attempts after a failed invocation.
	Retries int

	// ModelConcurrency caps how many models run in parallel. Invocations
	// against a single model are always serialized.
	ModelConcurrency int

	// RetryBackoff is the base delay between attempts; it grows linearly.
	RetryBackoff time.Duration
}

// Failure records one (model, record) pair that exhausted its retries.
type Failure struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
	Retries  int    `json:"retries"`
}

// ModelSummary counts outcomes for one model.
type ModelSummary struct {
	Model    string    `json:"model"`
	Invoked  int       `json:"invoked"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
}

// Summary aggregates a whole batch.
type Summary struct {
	Models     []ModelSummary `json:"models"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// SummaryFileName is the conventional summary location inside a run
// directory.
const SummaryFileName = "summary.json"

// WriteFile persists the summary as indented JSON, creating parent
// directories. Each run invocation overwrites the previous summary.
func (s *Summary) WriteFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("runner: marshal summary: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("runner: create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("runner: write %s: %w", path, err)
	}
	return nil
}

// ReadSummaryFile loads a summary written by WriteFile.
func ReadSummaryFile(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runner: read %s: %w", path, err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("runner: parse %s: %w", path, err)
	}
	return &s, nil
}

// Runner executes (model, record) pairs against the model collaborator.
type Runner struct {
	invoker llm.Invoker
	store   runstore.Store
	cfg     Config
}

// New creates a Runner with defaults filled in.
func New(invoker llm.Invoker, store runstore.Store, cfg Config) *Runner {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.ModelConcurrency <= 0 {
		cfg.ModelConcurrency = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Runner{invoker: invoker, store: store, cfg: cfg}
}

// Run invokes every (model, record) pair not already present in the store.
// A single invocation failure never aborts the batch; it is persisted with
// its reason and counted. Models run in parallel up to ModelConcurrency.
func (r *Runner) Run(ctx context.Context, models []string, records []dataset.Record) (*Summary, error) {
	if r == nil {
		return nil, errors.New("runner: nil runner")
	}
	if ctx == nil {
		return nil, errors.New("runner: nil context")
	}
	if r.invoker == nil {
		return nil, errors.New("runner: nil invoker")
	}
	if r.store == nil {
		return nil, errors.New("runner: nil store")
	}
	if len(models) == 0 {
		return nil, errors.New("runner: no models")
	}

	summary := &Summary{StartedAt: time.Now().UTC()}

	results := make([]ModelSummary, len(models))
	sem := make(chan struct{}, r.cfg.ModelConcurrency)
	var wg sync.WaitGroup

	for i, model := range models {
		wg.Add(1)
		go func(idx int, model string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = ModelSummary{Model: model}
				return
			}

			results[idx] = r.runModel(ctx, model, records)
		}(i, model)
	}
	wg.Wait()

	summary.Models = results
	summary.FinishedAt = time.Now().UTC()

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("runner: interrupted: %w", err)
	}
	return summary, nil
}

// runModel walks the records sequentially: a single model endpoint gets at
// most one in-flight invocation.
func (r *Runner) runModel(ctx context.Context, model string, records []dataset.Record) ModelSummary {
	out := ModelSummary{Model: model}

	for i := range records {
		rec := &records[i]

		if ctx.Err() != nil {
			return out
		}
		if r.store.Has(model, rec.ID) {
			out.Skipped++
			continue
		}

		start := time.Now()
		text, retries, err := r.invokeWithRetry(ctx, model, rec.Prompt)
		latency := time.Since(start).Milliseconds()

		record := &runstore.Output{
			Model:     model,
			RecordID:  rec.ID,
			Retries:   retries,
			LatencyMs: latency,
			CreatedAt: time.Now().UTC(),
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return out
			}
			record.OK = false
			record.Error = err.Error()
			out.Failed++
			out.Failures = append(out.Failures, Failure{RecordID: rec.ID, Reason: err.Error(), Retries: retries})
		} else {
			record.OK = true
			record.Response = text
			out.Invoked++
		}

		if perr := r.store.Put(record); perr != nil {
			if errors.Is(perr, runstore.ErrExists) {
				// Another writer completed this key first.
				out.Skipped++
				continue
			}
			out.Failed++
			out.Failures = append(out.Failures, Failure{RecordID: rec.ID, Reason: perr.Error(), Retries: retries})
		}
	}

	sort.Slice(out.Failures, func(i, j int) bool { return out.Failures[i].RecordID < out.Failures[j].RecordID })
	return out
}

func (r *Runner) invokeWithRetry(ctx context.Context, model, prompt string) (string, int, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, time.Duration(attempt)*r.cfg.RetryBackoff); err != nil {
				return "", attempt - 1, err
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if r.cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		}
		text, err := r.invoker.Invoke(callCtx, model, prompt)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return text, attempt, nil
		}
		lastErr = err

		// The batch context being canceled is not retryable.
		if ctx.Err() != nil {
			return "", attempt, context.Canceled
		}
	}
	return "", r.cfg.Retries, lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Canceled
	}
}
