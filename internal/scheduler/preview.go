package scheduler

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// UpcomingToday computes an approximate same-day preview for a set of cron
// expressions. Only the minute and hour fields are read, and only as literal
// comma-separated numbers; wildcards, ranges and steps yield nothing for that
// field. Day-of-month, month and day-of-week are ignored entirely, so an
// expression restricted to e.g. Mondays still previews every day.
//
// The result is deduplicated, sorted and capped at max entries, all of them
// strictly after now and before midnight.
func UpcomingToday(exprs []string, now time.Time, max int) []time.Time {
	seen := make(map[time.Time]struct{})
	var out []time.Time

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)

	for _, expr := range exprs {
		fields := strings.Fields(expr)
		if len(fields) < 2 {
			continue
		}
		minutes := literalValues(fields[0], 0, 59)
		hours := literalValues(fields[1], 0, 23)

		for _, h := range hours {
			for _, m := range minutes {
				at := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
				if !at.After(now) || !at.Before(midnight) {
					continue
				}
				if _, dup := seen[at]; dup {
					continue
				}
				seen[at] = struct{}{}
				out = append(out, at)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// literalValues parses a cron field as a comma list of plain integers within
// [lo, hi]. Anything else ("*", "*/5", "1-10") contributes no values.
func literalValues(field string, lo, hi int) []int {
	var out []int
	for _, part := range strings.Split(field, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < lo || n > hi {
			continue
		}
		out = append(out, n)
	}
	return out
}
