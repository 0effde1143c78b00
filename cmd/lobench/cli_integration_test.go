package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glossalab/lobench/internal/report"
)

// fakeOllama answers every generate request with a fixed response per model.
func fakeOllama(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, ok := responses[req.Model]
		if !ok {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":    req.Model,
			"response": resp,
			"done":     true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunThenEval(t *testing.T) {
	srv := fakeOllama(t, map[string]string{
		"llama3": "The answer is B.", // correct for mcq1, wrong for st1
	})
	t.Setenv("OLLAMA_BASE_URL", srv.URL)

	datasetPath := writeDataset(t, sampleRecords())
	outdir := filepath.Join(t.TempDir(), "runs")

	out, err := execute(t, "run", "--models", "llama3", "--dataset", datasetPath, "--outdir", outdir)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "invoked=2") {
		t.Fatalf("run output: %s", out)
	}

	// A second run touches nothing.
	out, err = execute(t, "run", "--models", "llama3", "--dataset", datasetPath, "--outdir", outdir)
	if err != nil {
		t.Fatalf("second run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "skipped=2") {
		t.Fatalf("resume output: %s", out)
	}

	reportPath := filepath.Join(t.TempDir(), "report.json")
	out, err = execute(t, "eval", "--dataset", datasetPath, "--rundir", outdir, "--report", reportPath)
	if err != nil {
		t.Fatalf("eval: %v\n%s", err, out)
	}

	rep, err := report.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	mr, ok := rep.Models["llama3"]
	if !ok {
		t.Fatalf("model missing: %+v", rep.Models)
	}
	if mr.Overall.N != 2 || mr.Overall.Correct != 1 {
		t.Fatalf("overall = %+v", mr.Overall)
	}
	if mr.Ungraded != 0 {
		t.Fatalf("ungraded = %d", mr.Ungraded)
	}
	// The second run's summary rides along in the report.
	if rep.Run == nil || len(rep.Run.Models) != 1 {
		t.Fatalf("run summary = %+v", rep.Run)
	}
	if rep.Run.Models[0].Skipped != 2 {
		t.Fatalf("summary skipped = %+v", rep.Run.Models[0])
	}
}

func TestRunFailingModelStillEvaluates(t *testing.T) {
	srv := fakeOllama(t, map[string]string{}) // every model 404s
	t.Setenv("OLLAMA_BASE_URL", srv.URL)

	datasetPath := writeDataset(t, sampleRecords())
	outdir := filepath.Join(t.TempDir(), "runs")

	// Retries off so the failure path stays fast.
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("run:\n  retries: 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := execute(t, "--config", cfgPath, "run", "--models", "ghost", "--dataset", datasetPath, "--outdir", outdir)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "failed=2") {
		t.Fatalf("run output: %s", out)
	}

	// Failed invocations evaluate as ungraded, never as incorrect.
	reportPath := filepath.Join(t.TempDir(), "report.json")
	if _, err := execute(t, "eval", "--dataset", datasetPath, "--rundir", outdir, "--report", reportPath); err != nil {
		t.Fatalf("eval: %v", err)
	}
	rep, err := report.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	mr := rep.Models["ghost"]
	if mr.Ungraded != 2 || mr.Overall.N != 0 {
		t.Fatalf("model report = %+v", mr)
	}
}
