package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/glossalab/lobench/internal/dataset"
	"github.com/glossalab/lobench/internal/llm"
	"github.com/glossalab/lobench/internal/runner"
	"github.com/glossalab/lobench/internal/runstore"
)

type runOptions struct {
	models      []string
	datasetPath string
	outdir      string
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Invoke models over a dataset, storing raw outputs",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd, st, &opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.models, "models", nil, "model names to invoke (required)")
	cmd.Flags().StringVar(&opts.datasetPath, "dataset", "", "path to dataset JSONL file (required)")
	cmd.Flags().StringVar(&opts.outdir, "outdir", "runs", "directory for stored outputs")
	_ = cmd.MarkFlagRequired("models")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func runModels(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("run: missing config (internal error)")
	}

	models := compactStrings(opts.models)
	if len(models) == 0 {
		return fmt.Errorf("run: no models specified")
	}

	records, skips, err := dataset.Load(opts.datasetPath)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	printSkips(cmd, skips)
	if len(records) == 0 {
		return fmt.Errorf("run: dataset %s has no usable records", opts.datasetPath)
	}

	invoker, err := llm.FromConfig(st.cfg)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	store, err := runstore.Open(st.cfg.Storage, opts.outdir)
	if err != nil {
		return fmt.Errorf("run: open store: %w", err)
	}
	defer store.Close()

	r := runner.New(invoker, store, runner.Config{
		Timeout:          st.cfg.Run.Timeout,
		Retries:          st.cfg.Run.Retries,
		ModelConcurrency: st.cfg.Run.ModelConcurrency,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, runErr := r.Run(ctx, models, records)
	if summary != nil {
		printRunSummary(cmd, summary)
		if err := summary.WriteFile(filepath.Join(opts.outdir, runner.SummaryFileName)); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "run: %v\n", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	return nil
}

func printRunSummary(cmd *cobra.Command, summary *runner.Summary) {
	out := cmd.OutOrStdout()
	for _, m := range summary.Models {
		_, _ = fmt.Fprintf(out, "%s: invoked=%d skipped=%d failed=%d\n", m.Model, m.Invoked, m.Skipped, m.Failed)
		for _, f := range m.Failures {
			_, _ = fmt.Fprintf(out, "  failed %s after %d retries: %s\n", f.RecordID, f.Retries, f.Reason)
		}
	}
}

func printSkips(cmd *cobra.Command, skips []dataset.Skip) {
	if len(skips) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Skipped %d malformed record(s):\n", len(skips))
	for _, s := range skips {
		id := s.ID
		if id == "" {
			id = fmt.Sprintf("line %d", s.Line)
		}
		_, _ = fmt.Fprintf(out, "  %s: %s\n", id, s.Reason)
	}
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
