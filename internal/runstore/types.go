// Package runstore persists raw model outputs keyed by (model, record id).
// The store is append-only with write-if-absent semantics, which is what
// makes re-running a batch resumable.
package runstore

import (
	"errors"
	"time"
)

// ErrExists is returned by Put when an output for the (model, record id)
// key is already stored.
var ErrExists = errors.New("runstore: output exists")

// Output is one persisted model response. OK is false when the invocation
// failed after retries; such records are ungraded, not incorrect.
type Output struct {
	Model     string    `json:"model"`
	RecordID  string    `json:"record_id"`
	Response  string    `json:"response,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	Retries   int       `json:"retries,omitempty"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the run-output persistence contract. The key-presence index is
// loaded once at open, so Has never touches storage.
type Store interface {
	Has(model, recordID string) bool
	Put(out *Output) error
	Outputs(model string) ([]*Output, error)
	Models() []string
	Close() error
}
