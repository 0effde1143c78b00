package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/glossalab/lobench/internal/dataset"
	"github.com/glossalab/lobench/internal/report"
	"github.com/glossalab/lobench/internal/runner"
	"github.com/glossalab/lobench/internal/runstore"
)

type evalOptions struct {
	datasetPath string
	rundir      string
	reportPath  string
	output      string
}

func newEvalCmd(st *cliState) *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:     "eval",
		Short:   "Grade stored outputs and produce an accuracy report",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return evalRun(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.datasetPath, "dataset", "", "path to dataset JSONL file (required)")
	cmd.Flags().StringVar(&opts.rundir, "rundir", "runs", "directory with stored outputs")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "path to write the JSON report (optional)")
	cmd.Flags().StringVar(&opts.output, "output", "table", "output format: table|json")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func evalRun(cmd *cobra.Command, st *cliState, opts *evalOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("eval: missing config (internal error)")
	}

	records, skips, err := dataset.Load(opts.datasetPath)
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	printSkips(cmd, skips)

	store, err := runstore.Open(st.cfg.Storage, opts.rundir)
	if err != nil {
		return fmt.Errorf("eval: open store: %w", err)
	}
	defer store.Close()

	datasetName := filepath.Base(opts.datasetPath)
	rep, err := report.Build(datasetName, records, store)
	if err != nil {
		return err
	}
	if len(rep.Models) == 0 {
		return fmt.Errorf("eval: no stored outputs found under %s", opts.rundir)
	}
	if sum, err := runner.ReadSummaryFile(filepath.Join(opts.rundir, runner.SummaryFileName)); err == nil {
		rep.Run = sum
	}

	switch opts.output {
	case "table":
		printReportTable(cmd, rep)
	case "json", "jsonl":
		if err := printJSON(cmd, rep); err != nil {
			return err
		}
	default:
		return fmt.Errorf("eval: invalid --output %q (expected table|json)", opts.output)
	}

	if opts.reportPath != "" {
		if err := rep.WriteFile(opts.reportPath); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", opts.reportPath)
	}
	return nil
}
