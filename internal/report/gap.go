package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrReportMismatch indicates the two reports do not cover the same models.
var ErrReportMismatch = errors.New("report: model sets differ")

// GapCell is the accuracy drop for one bucket between the original dataset
// and its isomorphic variants. A positive gap means the model did better on
// originals, the usual memorization signature.
type GapCell struct {
	Original   float64 `json:"original"`
	Isomorphic float64 `json:"isomorphic"`
	Gap        float64 `json:"gap"`
}

// ModelGap holds the gaps for one model.
type ModelGap struct {
	Overall  GapCell            `json:"overall"`
	ByTask   map[string]GapCell `json:"by_task"`
	BySource map[string]GapCell `json:"by_source"`
}

// GapReport pairs an original-dataset report with an isomorphic one.
type GapReport struct {
	OriginalDataset   string              `json:"original_dataset"`
	IsomorphicDataset string              `json:"isomorphic_dataset"`
	GeneratedAt       time.Time           `json:"generated_at"`
	Models            map[string]ModelGap `json:"models"`
}

// ComputeGap derives per-model accuracy gaps. Both reports must cover
// exactly the same models; within by_task and by_source only keys present
// in both reports are compared.
func ComputeGap(original, isomorphic *Report) (*GapReport, error) {
	if original == nil || isomorphic == nil {
		return nil, errors.New("report: nil report")
	}
	for model := range original.Models {
		if _, ok := isomorphic.Models[model]; !ok {
			return nil, fmt.Errorf("%w: %q missing from isomorphic report", ErrReportMismatch, model)
		}
	}
	for model := range isomorphic.Models {
		if _, ok := original.Models[model]; !ok {
			return nil, fmt.Errorf("%w: %q missing from original report", ErrReportMismatch, model)
		}
	}

	gr := &GapReport{
		OriginalDataset:   original.Dataset,
		IsomorphicDataset: isomorphic.Dataset,
		GeneratedAt:       time.Now().UTC(),
		Models:            make(map[string]ModelGap, len(original.Models)),
	}

	for model, orig := range original.Models {
		iso := isomorphic.Models[model]
		gr.Models[model] = ModelGap{
			Overall:  gapCell(orig.Overall, iso.Overall),
			ByTask:   gapBuckets(orig.ByTask, iso.ByTask),
			BySource: gapBuckets(orig.BySource, iso.BySource),
		}
	}
	return gr, nil
}

func gapCell(orig, iso Cell) GapCell {
	return GapCell{
		Original:   orig.Accuracy,
		Isomorphic: iso.Accuracy,
		Gap:        orig.Accuracy - iso.Accuracy,
	}
}

func gapBuckets(orig, iso map[string]Cell) map[string]GapCell {
	out := make(map[string]GapCell)
	for key, o := range orig {
		i, ok := iso[key]
		if !ok {
			continue
		}
		out[key] = gapCell(o, i)
	}
	return out
}

// WriteFile writes the gap report as indented JSON.
func (g *GapReport) WriteFile(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal gap: %w", err)
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

// ReadGapFile loads a gap report written by WriteFile.
func ReadGapFile(path string) (*GapReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read %s: %w", path, err)
	}
	var g GapReport
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("report: parse %s: %w", path, err)
	}
	return &g, nil
}
