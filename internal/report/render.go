package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"strconv"
)

// The digest table mirrors the columns operators are used to from the
// dashboard, minus the URL columns that render poorly in mail clients.
var emailTmpl = template.Must(template.New("email").Parse(`<h2>Video Transcoding Report (Last 3 Months)</h2>
<p>Showing {{.Shown}} of {{.Matched}} videos (filtered for valid data)</p>
<table border="1" cellpadding="6" cellspacing="0" style="border-collapse: collapse; font-family: Arial, sans-serif; font-size: 14px; width: 100%;">
  <thead style="background: #f2f2f2;">
    <tr>
      <th>Sn no</th>
      <th>AppId</th>
      <th>AppName</th>
      <th>Video id (encodeId)</th>
      <th>Title</th>
      <th>Duration</th>
      <th>Size</th>
      <th>CreatedAt</th>
      <th>Status</th>
      <th>Queued For</th>
    </tr>
  </thead>
  <tbody>
{{- if .Rows}}
{{- range .Rows}}
    <tr>
      <td>{{.ID}}</td>
      <td>{{.OwnerAppID}}</td>
      <td>{{.AppName}}</td>
      <td>{{.EncodeID}}</td>
      <td>{{.Title}}</td>
      <td>{{.Duration}}</td>
      <td>{{.Size}}</td>
      <td>{{.CreatedAt}}</td>
      <td>{{.Status}}</td>
      <td>{{.QueuedFor}}</td>
    </tr>
{{- end}}
{{- else}}
    <tr><td colspan="10">No valid videos found</td></tr>
{{- end}}
  </tbody>
</table>
`))

func renderEmailHTML(rows []Row, matched int) (string, error) {
	var buf bytes.Buffer
	err := emailTmpl.Execute(&buf, struct {
		Rows    []Row
		Shown   int
		Matched int
	}{Rows: rows, Shown: len(rows), Matched: matched})
	if err != nil {
		return "", fmt.Errorf("render email html: %w", err)
	}
	return buf.String(), nil
}

var csvHeader = []string{
	"SN", "DriveId", "AppId", "AppName", "AppUrl", "EncodeId", "Title",
	"Duration", "Size", "CreatedAt", "Status", "QueuedFor", "SourceUrl",
}

// renderCSV exports every row it is given; callers decide the set.
func renderCSV(rows []Row) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write(csvHeader)
	for _, r := range rows {
		src := r.SourceURL
		if src == "" {
			src = "-"
		}
		_ = w.Write([]string{
			strconv.Itoa(r.ID), r.JobID, r.OwnerAppID, r.AppName, r.AppURL,
			r.EncodeID, r.Title, r.Duration, r.Size, r.CreatedAt, r.Status,
			r.QueuedFor, src,
		})
	}
	w.Flush()
	return buf.Bytes()
}
