// Package storage persists scheduler run outcomes.
//
// It backs the /api/runs endpoint and survives restarts; the scheduler also
// keeps a small in-memory ring, so a disabled store only loses history across
// restarts.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "vtreporter/pkg/logx"
)

var ErrDisabled = errors.New("run history storage disabled")

type Config struct {
	// Path to the SQLite database file. Empty disables persistence.
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// RunEntry records one scheduled report run.
// Keep it compact and schema-stable.
type RunEntry struct {
	At         time.Time `json:"at"`
	Trigger    string    `json:"trigger"` // "interval", "cron" or "manual"
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	TookMS     int64     `json:"tookMs"`
	RowsShown  int       `json:"rowsShown"`
	Matched    int       `json:"matched"`
	Recipients int       `json:"recipients"`
}

// Store is the minimal persistence API the scheduler uses.
type Store interface {
	AppendRun(ctx context.Context, e RunEntry) error
	RecentRuns(ctx context.Context, n int) ([]RunEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
