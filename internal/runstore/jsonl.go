package runstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeModel turns a model tag into a safe file name component.
func sanitizeModel(model string) string {
	return unsafePathChars.ReplaceAllString(model, "_")
}

// JSONLStore keeps one append-only JSONL file per model under a directory.
// The whole directory is scanned once at open to build the presence index.
type JSONLStore struct {
	dir string

	mu      sync.Mutex
	index   map[string]map[string]*Output // model -> record id -> output
	files   map[string]*os.File           // sanitized model -> open handle
	byModel map[string]string             // sanitized model -> model tag
}

// NewJSONLStore opens (or creates) a JSONL run store rooted at dir.
func NewJSONLStore(dir string) (*JSONLStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("runstore: empty dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("runstore: create dir %q: %w", dir, err)
	}

	s := &JSONLStore{
		dir:     dir,
		index:   make(map[string]map[string]*Output),
		files:   make(map[string]*os.File),
		byModel: make(map[string]string),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONLStore) loadIndex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("runstore: read dir %q: %w", s.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := s.loadFile(path); err != nil {
			return err
		}
	}
	return nil
}

func (s *JSONLStore) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("runstore: open %q: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var out Output
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return fmt.Errorf("runstore: %s line %d: %w", path, line, err)
		}
		if out.Model == "" || out.RecordID == "" {
			return fmt.Errorf("runstore: %s line %d: missing model or record_id", path, line)
		}
		s.remember(&out)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("runstore: read %q: %w", path, err)
	}
	return nil
}

func (s *JSONLStore) remember(out *Output) {
	byID := s.index[out.Model]
	if byID == nil {
		byID = make(map[string]*Output)
		s.index[out.Model] = byID
	}
	// First write wins; the store is append-only.
	if _, ok := byID[out.RecordID]; !ok {
		byID[out.RecordID] = out
	}
}

// Has reports whether an output is stored for the key.
func (s *JSONLStore) Has(model, recordID string) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[model][recordID]
	return ok
}

// Put appends an output, or returns ErrExists when the key is taken.
func (s *JSONLStore) Put(out *Output) error {
	if s == nil {
		return fmt.Errorf("runstore: nil store")
	}
	if out == nil {
		return fmt.Errorf("runstore: nil output")
	}
	if out.Model == "" || out.RecordID == "" {
		return fmt.Errorf("runstore: output missing model or record_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[out.Model][out.RecordID]; ok {
		return ErrExists
	}

	f, err := s.fileFor(out.Model)
	if err != nil {
		return err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("runstore: encode output %s/%s: %w", out.Model, out.RecordID, err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("runstore: append %s/%s: %w", out.Model, out.RecordID, err)
	}

	cp := *out
	s.remember(&cp)
	return nil
}

func (s *JSONLStore) fileFor(model string) (*os.File, error) {
	name := sanitizeModel(model)
	if f, ok := s.files[name]; ok {
		return f, nil
	}
	path := filepath.Join(s.dir, name+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runstore: open %q: %w", path, err)
	}
	s.files[name] = f
	s.byModel[name] = model
	return f, nil
}

// Outputs returns the stored outputs for one model, ordered by record id.
func (s *JSONLStore) Outputs(model string) ([]*Output, error) {
	if s == nil {
		return nil, fmt.Errorf("runstore: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.index[model]
	out := make([]*Output, 0, len(byID))
	for _, o := range byID {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

// Models lists models with at least one stored output, sorted.
func (s *JSONLStore) Models() []string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.index))
	for m := range s.index {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Close flushes and closes all open model files.
func (s *JSONLStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("runstore: close %q: %w", name, err)
		}
	}
	s.files = make(map[string]*os.File)
	return firstErr
}
