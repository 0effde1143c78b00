package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/glossalab/lobench/internal/report"
)

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func printReportTable(cmd *cobra.Command, rep *report.Report) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MODEL\tN\tCORRECT\tACCURACY\tUNGRADED")
	for _, model := range sortedKeys(rep.Models) {
		mr := rep.Models[model]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%.3f\t%d\n",
			model, mr.Overall.N, mr.Overall.Correct, mr.Overall.Accuracy, mr.Ungraded)
	}
	_ = w.Flush()

	for _, model := range sortedKeys(rep.Models) {
		mr := rep.Models[model]
		if len(mr.ByTask) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%s by task:\n", model)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, task := range sortedKeys(mr.ByTask) {
			c := mr.ByTask[task]
			_, _ = fmt.Fprintf(tw, "  %s\t%d/%d\t%.3f\n", task, c.Correct, c.N, c.Accuracy)
		}
		_ = tw.Flush()
	}
}

func printGapTable(cmd *cobra.Command, gap *report.GapReport) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MODEL\tORIGINAL\tISOMORPHIC\tGAP")
	for _, model := range sortedKeys(gap.Models) {
		mg := gap.Models[model]
		_, _ = fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%+.3f\n",
			model, mg.Overall.Original, mg.Overall.Isomorphic, mg.Overall.Gap)
	}
	_ = w.Flush()

	for _, model := range sortedKeys(gap.Models) {
		mg := gap.Models[model]
		if len(mg.ByTask) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%s by task:\n", model)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, task := range sortedKeys(mg.ByTask) {
			c := mg.ByTask[task]
			_, _ = fmt.Fprintf(tw, "  %s\t%.3f\t%.3f\t%+.3f\n", task, c.Original, c.Isomorphic, c.Gap)
		}
		_ = tw.Flush()
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
