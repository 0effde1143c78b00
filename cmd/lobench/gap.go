package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/glossalab/lobench/internal/report"
)

type gapOptions struct {
	originalPath   string
	isomorphicPath string
	outPath        string
	output         string
}

func newGapCmd() *cobra.Command {
	var opts gapOptions

	cmd := &cobra.Command{
		Use:   "gap",
		Short: "Compute memorization gaps between two reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return computeGap(cmd, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.originalPath, "original", "", "report for the original dataset (required)")
	cmd.Flags().StringVar(&opts.isomorphicPath, "isomorphic", "", "report for the isomorphic dataset (required)")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "path to write the JSON gap report (optional)")
	cmd.Flags().StringVar(&opts.output, "output", "table", "output format: table|json")
	_ = cmd.MarkFlagRequired("original")
	_ = cmd.MarkFlagRequired("isomorphic")

	return cmd
}

func computeGap(cmd *cobra.Command, opts *gapOptions) error {
	original, err := report.ReadFile(opts.originalPath)
	if err != nil {
		return err
	}
	isomorphic, err := report.ReadFile(opts.isomorphicPath)
	if err != nil {
		return err
	}

	gap, err := report.ComputeGap(original, isomorphic)
	if err != nil {
		return err
	}

	switch opts.output {
	case "table":
		printGapTable(cmd, gap)
	case "json", "jsonl":
		if err := printJSON(cmd, gap); err != nil {
			return err
		}
	default:
		return fmt.Errorf("gap: invalid --output %q (expected table|json)", opts.output)
	}

	if opts.outPath != "" {
		if err := gap.WriteFile(opts.outPath); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Gap report written to %s\n", opts.outPath)
	}
	return nil
}
