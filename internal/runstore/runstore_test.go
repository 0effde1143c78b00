package runstore

import (
	"errors"
	"testing"
	"time"

	"github.com/glossalab/lobench/internal/config"
)

func sampleOutput(model, id string) *Output {
	return &Output{
		Model:     model,
		RecordID:  id,
		Response:  "answer for " + id,
		OK:        true,
		LatencyMs: 12,
		CreatedAt: time.Now().UTC(),
	}
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	jsonl, err := NewJSONLStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONLStore: %v", err)
	}
	sqlite, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	return map[string]Store{"jsonl": jsonl, "sqlite": sqlite}
}

func TestStorePutHasOutputs(t *testing.T) {
	t.Parallel()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			if store.Has("llama3", "r1") {
				t.Fatalf("Has on empty store = true")
			}
			if err := store.Put(sampleOutput("llama3", "r1")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if !store.Has("llama3", "r1") {
				t.Fatalf("Has after Put = false")
			}

			if err := store.Put(sampleOutput("llama3", "r1")); !errors.Is(err, ErrExists) {
				t.Fatalf("duplicate Put: expected ErrExists, got %v", err)
			}

			if err := store.Put(sampleOutput("llama3", "r0")); err != nil {
				t.Fatalf("Put: %v", err)
			}

			outputs, err := store.Outputs("llama3")
			if err != nil {
				t.Fatalf("Outputs: %v", err)
			}
			if len(outputs) != 2 {
				t.Fatalf("got %d outputs, want 2", len(outputs))
			}
			// Ordered by record id.
			if outputs[0].RecordID != "r0" || outputs[1].RecordID != "r1" {
				t.Fatalf("order: %s, %s", outputs[0].RecordID, outputs[1].RecordID)
			}
		})
	}
}

func TestStoreModels(t *testing.T) {
	t.Parallel()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			if err := store.Put(sampleOutput("mistral", "r1")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := store.Put(sampleOutput("llama3", "r1")); err != nil {
				t.Fatalf("Put: %v", err)
			}

			models := store.Models()
			if len(models) != 2 || models[0] != "llama3" || models[1] != "mistral" {
				t.Fatalf("Models = %v", models)
			}
		})
	}
}

func TestStoreFailedOutput(t *testing.T) {
	t.Parallel()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			out := &Output{
				Model:     "llama3",
				RecordID:  "r1",
				OK:        false,
				Error:     "connection refused",
				Retries:   2,
				CreatedAt: time.Now().UTC(),
			}
			if err := store.Put(out); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := store.Outputs("llama3")
			if err != nil {
				t.Fatalf("Outputs: %v", err)
			}
			if len(got) != 1 || got[0].OK || got[0].Error != "connection refused" || got[0].Retries != 2 {
				t.Fatalf("got %+v", got[0])
			}
		})
	}
}

func TestJSONLStoreReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store, err := NewJSONLStore(dir)
	if err != nil {
		t.Fatalf("NewJSONLStore: %v", err)
	}
	if err := store.Put(sampleOutput("llama3:8b", "r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(sampleOutput("llama3:8b", "r2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The index is rebuilt at open, so a second run resumes where the first
	// stopped.
	reopened, err := NewJSONLStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if !reopened.Has("llama3:8b", "r1") || !reopened.Has("llama3:8b", "r2") {
		t.Fatalf("index lost across reopen")
	}
	if err := reopened.Put(sampleOutput("llama3:8b", "r1")); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists after reopen, got %v", err)
	}
	if err := reopened.Put(sampleOutput("llama3:8b", "r3")); err != nil {
		t.Fatalf("Put after reopen: %v", err)
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/runs.db"

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.Put(sampleOutput("llama3", "r1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if !reopened.Has("llama3", "r1") {
		t.Fatalf("index lost across reopen")
	}
	if err := reopened.Put(sampleOutput("llama3", "r1")); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists after reopen, got %v", err)
	}
}

func TestSanitizeModel(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"llama3", "llama3"},
		{"llama3:8b", "llama3_8b"},
		{"org/model v2", "org_model_v2"},
	}
	for _, tc := range cases {
		if got := sanitizeModel(tc.in); got != tc.want {
			t.Fatalf("sanitizeModel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOpenByType(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	jsonl, err := Open(config.StorageConfig{Type: "jsonl"}, dir)
	if err != nil {
		t.Fatalf("Open jsonl: %v", err)
	}
	if _, ok := jsonl.(*JSONLStore); !ok {
		t.Fatalf("got %T, want *JSONLStore", jsonl)
	}
	jsonl.Close()

	mem, err := Open(config.StorageConfig{Type: "memory"}, dir)
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := mem.(*SQLiteStore); !ok {
		t.Fatalf("got %T, want *SQLiteStore", mem)
	}
	mem.Close()

	if _, err := Open(config.StorageConfig{Type: "bolt"}, dir); err == nil {
		t.Fatalf("expected error for unknown store type")
	}
}
