package runstore

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/glossalab/lobench/internal/config"
)

// Open builds the configured store rooted at outdir. JSONL is the default:
// one append-only file per model, matching the external run-store contract.
func Open(cfg config.StorageConfig, outdir string) (Store, error) {
	storageType := strings.ToLower(strings.TrimSpace(cfg.Type))
	if storageType == "" {
		storageType = "jsonl"
	}

	switch storageType {
	case "jsonl":
		return NewJSONLStore(outdir)
	case "sqlite":
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			path = filepath.Join(outdir, "runs.db")
		}
		return NewSQLiteStore(path)
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("runstore: unsupported type %q", cfg.Type)
	}
}
