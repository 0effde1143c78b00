package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/glossalab/lobench/internal/dataset"
)

func newValidateCmd() *cobra.Command {
	var datasetPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a dataset file against the record schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateDataset(cmd, datasetPath)
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "path to dataset JSONL file (required)")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func validateDataset(cmd *cobra.Command, path string) error {
	records, skips, err := dataset.Load(path)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	out := cmd.OutOrStdout()
	byTask := make(map[string]int)
	variants := 0
	for i := range records {
		byTask[string(records[i].TaskType)]++
		if records[i].IsVariant() {
			variants++
		}
	}

	_, _ = fmt.Fprintf(out, "%s: %d valid record(s), %d rejected\n", path, len(records), len(skips))
	for task, n := range byTask {
		_, _ = fmt.Fprintf(out, "  %s: %d\n", task, n)
	}
	if variants > 0 {
		_, _ = fmt.Fprintf(out, "  variants: %d\n", variants)
	}
	printSkips(cmd, skips)

	if len(skips) > 0 {
		return fmt.Errorf("validate: %d invalid record(s) in %s", len(skips), path)
	}
	return nil
}
