package scrape

import "time"

// startOfTodayUTC computes the start of "today" in loc, converts to UTC,
// and formats as the ISO8601 "Z" form the commits endpoint expects.
func startOfTodayUTC(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC().Format("2006-01-02T15:04:05Z")
}
