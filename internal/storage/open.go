package storage

import (
	"context"
	"fmt"
	"strings"

	logx "timerlint/pkg/logx"
)

// Store persists scan runs.
type Store interface {
	SaveRun(ctx context.Context, r Run) error
	// LastRun returns the most recently saved run; ok is false when none exists.
	LastRun(ctx context.Context) (r Run, ok bool, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
