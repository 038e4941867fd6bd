package report

import "time"

// Stats are status counts across the entire fetched window, not the
// display-capped subset.
type Stats struct {
	Total      int `json:"total"`
	InQueue    int `json:"inQueue"`
	InProgress int `json:"inProgress"`
	Success    int `json:"success"`
	Failed     int `json:"failed"`
}

// Row is one formatted job projection as the dashboard consumes it.
type Row struct {
	ID         int    `json:"id"`
	JobID      string `json:"driveId"`
	OwnerAppID string `json:"videoAppId"`
	AppName    string `json:"appName"`
	AppURL     string `json:"appUrl"`
	EncodeID   string `json:"encodeId"`
	Title      string `json:"title"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	CreatedAt  string `json:"createdAt"`
	Status     string `json:"status"`
	QueuedFor  string `json:"queuedFor"`
	SourceURL  string `json:"sourceUrl"`
}

// Snapshot is a computed, point-in-time report result. Derived and ephemeral:
// rebuilt on demand, never persisted.
type Snapshot struct {
	Stats        Stats `json:"stats"`
	TableData    []Row `json:"tableData"`
	QueryTimeMS  int64 `json:"queryTime"`
	TotalRecords int   `json:"totalRecords"`

	GeneratedAt time.Time `json:"-"`
}

// EmailReport bundles the two artifacts a scheduled run mails out. The HTML
// digest is capped and filtered; the CSV keeps every fetched row.
type EmailReport struct {
	HTML string
	CSV  []byte

	// Shown and Matched feed the "Showing X of Y" line.
	Shown   int
	Matched int
}
