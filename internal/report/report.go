// Package report grades stored model outputs and aggregates accuracy, and
// computes memorization gaps between paired reports.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glossalab/lobench/internal/dataset"
	"github.com/glossalab/lobench/internal/grader"
	"github.com/glossalab/lobench/internal/runner"
	"github.com/glossalab/lobench/internal/runstore"
)

// Cell is one accuracy bucket.
type Cell struct {
	N        int     `json:"n"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

func (c *Cell) add(correct bool) {
	c.N++
	if correct {
		c.Correct++
	}
}

func (c *Cell) finalize() {
	if c.N > 0 {
		c.Accuracy = float64(c.Correct) / float64(c.N)
	}
}

// ModelReport holds graded accuracy for one model. Ungraded counts records
// with no stored output, or whose invocation failed; they are excluded from
// every accuracy bucket rather than counted as incorrect.
type ModelReport struct {
	Overall  Cell            `json:"overall"`
	ByTask   map[string]Cell `json:"by_task"`
	BySource map[string]Cell `json:"by_source"`
	ByYear   map[string]Cell `json:"by_year"`
	Ungraded int             `json:"ungraded"`
}

// Report is the evaluation result over a dataset for a set of models. Run
// carries the producing run's invocation counts when a summary file was
// found alongside the stored outputs.
type Report struct {
	Dataset     string                 `json:"dataset"`
	GeneratedAt time.Time              `json:"generated_at"`
	Run         *runner.Summary        `json:"run,omitempty"`
	Models      map[string]ModelReport `json:"models"`
}

// Build grades every (model, record) pair present in the store against the
// dataset records and aggregates by task type, source, and year.
func Build(datasetName string, records []dataset.Record, store runstore.Store) (*Report, error) {
	if store == nil {
		return nil, errors.New("report: nil store")
	}

	rep := &Report{
		Dataset:     datasetName,
		GeneratedAt: time.Now().UTC(),
		Models:      make(map[string]ModelReport),
	}

	for _, model := range store.Models() {
		outputs, err := store.Outputs(model)
		if err != nil {
			return nil, fmt.Errorf("report: outputs for %q: %w", model, err)
		}
		byID := make(map[string]*runstore.Output, len(outputs))
		for _, o := range outputs {
			byID[o.RecordID] = o
		}

		mr := ModelReport{
			ByTask:   make(map[string]Cell),
			BySource: make(map[string]Cell),
			ByYear:   make(map[string]Cell),
		}
		for i := range records {
			rec := &records[i]
			out, ok := byID[rec.ID]
			if !ok || !out.OK {
				mr.Ungraded++
				continue
			}
			res := grader.Grade(rec, out.Response)

			mr.Overall.add(res.Correct)
			bucketAdd(mr.ByTask, string(rec.TaskType), res.Correct)
			if rec.Source != "" {
				bucketAdd(mr.BySource, rec.Source, res.Correct)
			}
			if rec.Year != 0 {
				bucketAdd(mr.ByYear, fmt.Sprintf("%d", rec.Year), res.Correct)
			}
		}

		mr.Overall.finalize()
		finalizeBuckets(mr.ByTask)
		finalizeBuckets(mr.BySource)
		finalizeBuckets(mr.ByYear)

		rep.Models[model] = mr
	}

	return rep, nil
}

func bucketAdd(m map[string]Cell, key string, correct bool) {
	c := m[key]
	c.add(correct)
	m[key] = c
}

func finalizeBuckets(m map[string]Cell) {
	for k, c := range m {
		c.finalize()
		m[k] = c
	}
}

// WriteFile writes the report as indented JSON, creating parent directories.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a report written by WriteFile.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: parse %s: %w", path, err)
	}
	return &r, nil
}
