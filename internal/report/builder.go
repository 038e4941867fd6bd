// Package report turns raw job records into dashboard snapshots, e-mail
// digests and CSV exports, and caches the dashboard snapshot behind a TTL.
package report

import (
	"context"
	"time"

	"vtreporter/internal/store"
	logx "vtreporter/pkg/logx"
)

// Lookback window and result caps. The query caps bound store cost; the row
// caps bound payload size. Stats always cover the full fetched set.
const (
	windowMonths = 3

	dashboardQueryCap = 10000
	emailQueryCap     = 5000

	dashboardRowCap = 1000
	retranscodeCap  = 1000
	emailRowCap     = 50

	// Records with no duration and under 1 KiB are placeholders the pipeline
	// has not filled in yet; the e-mail digest drops them, the CSV keeps them.
	placeholderSizeBytes = 1024
)

type Builder struct {
	jobs store.JobStore
	apps store.AppConfigStore
	log  logx.Logger

	now func() time.Time
}

func NewBuilder(jobs store.JobStore, apps store.AppConfigStore, log logx.Logger) *Builder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Builder{jobs: jobs, apps: apps, log: log, now: time.Now}
}

func (b *Builder) windowStart() time.Time {
	return b.now().AddDate(0, -windowMonths, 0)
}

// Build produces the dashboard snapshot: full window, stats over everything
// fetched, rows capped for display.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	start := b.now()

	records, err := b.jobs.ListJobs(ctx, store.JobFilter{
		Since: b.windowStart(),
		Limit: dashboardQueryCap,
	})
	if err != nil {
		return nil, err
	}

	rows, err := b.formatRows(ctx, records, dashboardRowCap)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Stats:        countStats(records),
		TableData:    rows,
		QueryTimeMS:  b.now().Sub(start).Milliseconds(),
		TotalRecords: len(records),
		GeneratedAt:  b.now(),
	}, nil
}

// BuildRetranscode lists in-queue items eligible for re-submission: in-queue
// status, owner id present, capped, uncached.
func (b *Builder) BuildRetranscode(ctx context.Context) (*Snapshot, error) {
	start := b.now()

	records, err := b.jobs.ListJobs(ctx, store.JobFilter{
		Since:          b.windowStart(),
		OnlyInQueue:    true,
		RequireOwnerID: true,
		Limit:          retranscodeCap,
	})
	if err != nil {
		return nil, err
	}

	rows, err := b.formatRows(ctx, records, retranscodeCap)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Stats:        countStats(records),
		TableData:    rows,
		QueryTimeMS:  b.now().Sub(start).Milliseconds(),
		TotalRecords: len(records),
		GeneratedAt:  b.now(),
	}, nil
}

// BuildEmail produces the scheduled digest: in-queue records with an encode
// id, placeholder records dropped, top rows rendered as HTML, everything
// fetched exported as CSV.
func (b *Builder) BuildEmail(ctx context.Context) (*EmailReport, error) {
	records, err := b.jobs.ListJobs(ctx, store.JobFilter{
		Since:       b.windowStart(),
		OnlyInQueue: true,
		Limit:       emailQueryCap,
	})
	if err != nil {
		return nil, err
	}

	valid := records[:0:0]
	for _, r := range records {
		if r.DurationSec == 0 && r.SizeBytes < placeholderSizeBytes {
			continue
		}
		valid = append(valid, r)
	}

	// One batched lookup over the full fetch serves both the digest and the
	// CSV; the digest's records are a subset.
	apps, err := b.lookupApps(ctx, records)
	if err != nil {
		return nil, err
	}
	if len(valid) > emailRowCap {
		valid = valid[:emailRowCap]
	}
	digest := b.projectRows(valid, apps)
	all := b.projectRows(records, apps)

	html, err := renderEmailHTML(digest, len(records))
	if err != nil {
		return nil, err
	}

	return &EmailReport{
		HTML:    html,
		CSV:     renderCSV(all),
		Shown:   len(digest),
		Matched: len(records),
	}, nil
}

// formatRows joins app configs in one batched lookup and projects records
// into display rows. limit <= 0 means no cap.
func (b *Builder) formatRows(ctx context.Context, records []store.JobRecord, limit int) ([]Row, error) {
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	apps, err := b.lookupApps(ctx, records)
	if err != nil {
		return nil, err
	}
	return b.projectRows(records, apps), nil
}

func (b *Builder) projectRows(records []store.JobRecord, apps map[string]store.AppConfig) []Row {
	now := b.now()
	rows := make([]Row, 0, len(records))
	for i, r := range records {
		app, ok := apps[r.OwnerAppID]
		if !ok {
			app = store.AppConfig{AppName: "-", AppURL: "-"}
		}

		queuedFor := "-"
		if r.Status == store.StatusInQueue && !r.CreatedAt.IsZero() {
			queuedFor = FormatDuration(int64(now.Sub(r.CreatedAt).Seconds()))
		}

		rows = append(rows, Row{
			ID:         i + 1,
			JobID:      orDash(r.ID),
			OwnerAppID: orDash(r.OwnerAppID),
			AppName:    orDash(app.AppName),
			AppURL:     orDash(app.AppURL),
			EncodeID:   orDash(r.EncodeID),
			Title:      orDash(r.Title),
			Duration:   FormatDuration(r.DurationSec),
			Size:       FormatSize(r.SizeBytes),
			CreatedAt:  formatCreatedAt(r.CreatedAt),
			Status:     orDash(r.Status),
			QueuedFor:  queuedFor,
			SourceURL:  r.SourceURL,
		})
	}
	return rows
}

// lookupApps batches the config join on the distinct owner ids present.
// Never per-row queries.
func (b *Builder) lookupApps(ctx context.Context, records []store.JobRecord) (map[string]store.AppConfig, error) {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.OwnerAppID == "" {
			continue
		}
		if _, ok := seen[r.OwnerAppID]; ok {
			continue
		}
		seen[r.OwnerAppID] = struct{}{}
		ids = append(ids, r.OwnerAppID)
	}
	return b.apps.GetAppConfigs(ctx, ids)
}

func countStats(records []store.JobRecord) Stats {
	s := Stats{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case store.StatusInQueue:
			s.InQueue++
		case store.StatusInProgress:
			s.InProgress++
		case store.StatusSuccess:
			s.Success++
		case store.StatusFailed:
			s.Failed++
		}
	}
	return s
}

func formatCreatedAt(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
