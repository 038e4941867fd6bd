package report

import (
	"fmt"
	"math"
	"strings"
)

// FormatDuration renders a duration in seconds as "{d}d {h}h {m}m {s}s",
// omitting zero components. Zero or negative input renders as "0 sec".
func FormatDuration(seconds int64) string {
	if seconds <= 0 {
		return "0 sec"
	}

	d := seconds / 86400
	h := (seconds % 86400) / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	var b strings.Builder
	if d > 0 {
		fmt.Fprintf(&b, "%dd ", d)
	}
	if h > 0 {
		fmt.Fprintf(&b, "%dh ", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dm ", m)
	}
	if s > 0 {
		fmt.Fprintf(&b, "%ds", s)
	}
	return strings.TrimSpace(b.String())
}

var sizeUnits = [...]string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count scaled through B/KB/MB/GB/TB with one
// decimal. Zero or negative input renders as "-".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/math.Pow(1024, float64(i)), sizeUnits[i])
}
