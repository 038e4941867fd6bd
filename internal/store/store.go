// Package store defines the document-store collaborators the reporter reads
// from. The core report logic only sees these interfaces; the MongoDB
// implementation lives alongside them but nothing above this package assumes
// a particular query language.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps query/connection failures so callers can distinguish
// "store down" from bad input.
var ErrUnavailable = errors.New("document store unavailable")

// Job statuses as written by the transcoding pipeline.
const (
	StatusInQueue    = "in-queue"
	StatusInProgress = "in-progress"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// JobRecord is one transcoding task's stored outcome. Created externally by
// the pipeline; read-only to this system.
type JobRecord struct {
	ID          string
	OwnerAppID  string
	EncodeID    string
	Title       string
	DurationSec int64
	SizeBytes   int64
	Status      string
	SourceURL   string
	CreatedAt   time.Time
}

// AppConfig is the per-app lookup row joined by OwnerAppID.
type AppConfig struct {
	OwnerAppID string
	AppName    string
	AppURL     string
}

// JobFilter bounds a job-record query.
type JobFilter struct {
	Since time.Time

	// OnlyInQueue restricts to status "in-queue" with a non-empty EncodeID
	// (the shape the email digest wants).
	OnlyInQueue bool

	// RequireOwnerID drops records without an owner app id (retranscode view).
	RequireOwnerID bool

	// Limit caps the result set; records come back newest first.
	Limit int64
}

// JobStore reads job records.
type JobStore interface {
	// ListJobs returns records with CreatedAt >= filter.Since, newest first,
	// capped at filter.Limit.
	ListJobs(ctx context.Context, f JobFilter) ([]JobRecord, error)
}

// AppConfigStore resolves owner app ids to app metadata in one batched call.
type AppConfigStore interface {
	GetAppConfigs(ctx context.Context, ownerIDs []string) (map[string]AppConfig, error)
}
