package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var inDurationPattern = regexp.MustCompile(`(?i)\bin\s+(\d+)\s+(minute|hour|day|week)s?\b`)

// parseDueDate resolves a handful of relative time phrases against now.
// Anything unrecognized falls back to 24 hours out; reminders are meant to
// be deliberately forgiving here, not a scheduling language.
func parseDueDate(lower string, now time.Time) time.Time {
	if m := inDurationPattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			switch strings.ToLower(m[2]) {
			case "minute":
				return now.Add(time.Duration(n) * time.Minute)
			case "hour":
				return now.Add(time.Duration(n) * time.Hour)
			case "day":
				return now.AddDate(0, 0, n)
			case "week":
				return now.AddDate(0, 0, 7*n)
			}
		}
	}

	switch {
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1)
	case strings.Contains(lower, "tonight"):
		evening := time.Date(now.Year(), now.Month(), now.Day(), 20, 0, 0, 0, now.Location())
		if evening.Before(now) {
			return now.Add(time.Hour)
		}
		return evening
	case strings.Contains(lower, "next week"):
		return now.AddDate(0, 0, 7)
	}

	return now.AddDate(0, 0, 1)
}
