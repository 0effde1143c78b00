package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Skip records why one line of a dataset file was not loaded.
type Skip struct {
	Line   int    `json:"line"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Load reads a dataset file and validates every record. Records violating
// the schema invariants (including duplicate ids) are skipped with a reason;
// only I/O or JSON-syntax problems are fatal.
func Load(path string) ([]Record, []Skip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: open %q: %w", path, err)
	}
	defer f.Close()

	var (
		records []Record
		skips   []Skip
	)
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			if errors.Is(err, ErrSchema) {
				skips = append(skips, Skip{Line: line, ID: schemaErrID(err), Reason: err.Error()})
				continue
			}
			return nil, nil, fmt.Errorf("dataset: %s line %d: %w", path, line, err)
		}

		if err := Validate(&rec); err != nil {
			skips = append(skips, Skip{Line: line, ID: rec.ID, Reason: err.Error()})
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			skips = append(skips, Skip{Line: line, ID: rec.ID, Reason: fmt.Sprintf("dataset: record %q: duplicate id", rec.ID)})
			continue
		}
		seen[rec.ID] = struct{}{}

		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("dataset: read %q: %w", path, err)
	}
	return records, skips, nil
}

// WriteFile writes records as JSONL, creating parent directories as needed.
func WriteFile(path string, records []Record) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dataset: create dir %q: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := range records {
		b, err := json.Marshal(records[i])
		if err != nil {
			return fmt.Errorf("dataset: encode record %q: %w", records[i].ID, err)
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			return fmt.Errorf("dataset: write %q: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("dataset: flush %q: %w", path, err)
	}
	return f.Close()
}

// schemaErrID digs the record id out of a wrapped schema error, best effort.
func schemaErrID(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `record "`)
	if start < 0 {
		return ""
	}
	rest := msg[start+len(`record "`):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}
