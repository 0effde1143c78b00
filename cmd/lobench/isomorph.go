package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/glossalab/lobench/internal/dataset"
	"github.com/glossalab/lobench/internal/isomorph"
)

type isomorphOptions struct {
	datasetPath string
	outPath     string
	k           int
	seed        int64
}

func newIsomorphCmd(st *cliState) *cobra.Command {
	var opts isomorphOptions

	cmd := &cobra.Command{
		Use:     "isomorph",
		Short:   "Generate surface-rewritten variants of a dataset",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateIsomorphs(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.datasetPath, "dataset", "", "path to dataset JSONL file (required)")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "path for the variant JSONL file (required)")
	cmd.Flags().IntVar(&opts.k, "k", 1, "variants per record")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "global seed (overrides config)")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func generateIsomorphs(cmd *cobra.Command, st *cliState, opts *isomorphOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("isomorph: missing config (internal error)")
	}
	if opts.k <= 0 {
		return fmt.Errorf("isomorph: --k must be > 0 (got %d)", opts.k)
	}

	seed := st.cfg.Run.Seed
	if cmd.Flags().Changed("seed") {
		seed = opts.seed
	}

	records, skips, err := dataset.Load(opts.datasetPath)
	if err != nil {
		return fmt.Errorf("isomorph: %w", err)
	}
	printSkips(cmd, skips)
	if len(records) == 0 {
		return fmt.Errorf("isomorph: dataset %s has no usable records", opts.datasetPath)
	}

	eng := &isomorph.Engine{K: opts.k, Seed: seed}
	res, err := eng.GenerateAll(records)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, w := range res.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", w)
	}
	if len(res.Skipped) > 0 {
		_, _ = fmt.Fprintf(out, "Skipped %d non-variantable record(s):\n", len(res.Skipped))
		for _, s := range res.Skipped {
			_, _ = fmt.Fprintf(out, "  %s: %s\n", s.ID, s.Reason)
		}
	}
	if len(res.Variants) == 0 {
		return fmt.Errorf("isomorph: no variants generated")
	}

	if err := dataset.WriteFile(opts.outPath, res.Variants); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Wrote %d variant(s) for %d record(s) to %s\n",
		len(res.Variants), len(records)-len(res.Skipped), opts.outPath)
	return nil
}
