package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a single SQLite database. The primary key
// (model, record_id) is the unit of mutual exclusion; INSERT OR IGNORE gives
// write-if-absent without racing concurrent writers.
type SQLiteStore struct {
	db *sql.DB

	insertStmt  *sql.Stmt
	outputsStmt *sql.Stmt

	mu    sync.Mutex
	index map[string]map[string]struct{} // model -> record id set
}

// NewSQLiteStore opens or creates a SQLite run store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("runstore: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("runstore: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("runstore: open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runstore: ping sqlite: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db:    db,
		index: make(map[string]map[string]struct{}),
	}
	if err := s.prepareStatements(); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.loadIndex(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS outputs (
			model TEXT NOT NULL,
			record_id TEXT NOT NULL,
			response TEXT NOT NULL,
			ok INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			retries INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (model, record_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outputs_model ON outputs(model)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("runstore: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("runstore: nil sqlite store")
	}

	insert, err := s.db.Prepare(`
		INSERT OR IGNORE INTO outputs (
			model, record_id, response, ok, error, retries, latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("runstore: prepare insert: %w", err)
	}
	s.insertStmt = insert

	outputs, err := s.db.Prepare(`
		SELECT model, record_id, response, ok, error, retries, latency_ms, created_at
		FROM outputs WHERE model = ? ORDER BY record_id
	`)
	if err != nil {
		return fmt.Errorf("runstore: prepare outputs: %w", err)
	}
	s.outputsStmt = outputs

	return nil
}

// loadIndex reads the key set once so Has stays off the database.
func (s *SQLiteStore) loadIndex() error {
	rows, err := s.db.Query(`SELECT model, record_id FROM outputs`)
	if err != nil {
		return fmt.Errorf("runstore: load index: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var model, recordID string
		if err := rows.Scan(&model, &recordID); err != nil {
			return fmt.Errorf("runstore: scan index: %w", err)
		}
		ids := s.index[model]
		if ids == nil {
			ids = make(map[string]struct{})
			s.index[model] = ids
		}
		ids[recordID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("runstore: load index: %w", err)
	}
	return nil
}

// Has reports whether an output is stored for the key.
func (s *SQLiteStore) Has(model, recordID string) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[model][recordID]
	return ok
}

// Put inserts an output, or returns ErrExists when the key is taken.
func (s *SQLiteStore) Put(out *Output) error {
	if s == nil || s.insertStmt == nil {
		return errors.New("runstore: nil sqlite store")
	}
	if out == nil {
		return errors.New("runstore: nil output")
	}
	if out.Model == "" || out.RecordID == "" {
		return errors.New("runstore: output missing model or record_id")
	}

	created := out.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	res, err := s.insertStmt.Exec(
		out.Model, out.RecordID, out.Response, boolToInt(out.OK),
		out.Error, out.Retries, out.LatencyMs, created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("runstore: insert %s/%s: %w", out.Model, out.RecordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("runstore: insert %s/%s: %w", out.Model, out.RecordID, err)
	}
	if n == 0 {
		return ErrExists
	}

	s.mu.Lock()
	ids := s.index[out.Model]
	if ids == nil {
		ids = make(map[string]struct{})
		s.index[out.Model] = ids
	}
	ids[out.RecordID] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Outputs returns the stored outputs for one model, ordered by record id.
func (s *SQLiteStore) Outputs(model string) ([]*Output, error) {
	if s == nil || s.outputsStmt == nil {
		return nil, errors.New("runstore: nil sqlite store")
	}

	rows, err := s.outputsStmt.Query(model)
	if err != nil {
		return nil, fmt.Errorf("runstore: query outputs: %w", err)
	}
	defer rows.Close()

	var out []*Output
	for rows.Next() {
		var (
			o       Output
			ok      int
			created int64
		)
		if err := rows.Scan(&o.Model, &o.RecordID, &o.Response, &ok, &o.Error, &o.Retries, &o.LatencyMs, &created); err != nil {
			return nil, fmt.Errorf("runstore: scan output: %w", err)
		}
		o.OK = ok != 0
		o.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runstore: query outputs: %w", err)
	}
	return out, nil
}

// Models lists models with at least one stored output, sorted.
func (s *SQLiteStore) Models() []string {
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

// Close releases prepared statements and the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	if s.insertStmt != nil {
		_ = s.insertStmt.Close()
	}
	if s.outputsStmt != nil {
		_ = s.outputsStmt.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
