package records

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusIdle    Status = "idle"
	StatusOffline Status = "offline"

	activeWindow = 5 * time.Minute
	idleWindow   = time.Hour
)

// Freshness derives a machine status from the age of its most recent row.
// A zero lastSeen means the timestamp could not be read.
func Freshness(now, lastSeen time.Time) Status {
	if lastSeen.IsZero() {
		return StatusOffline
	}
	age := now.Sub(lastSeen)
	switch {
	case age <= activeWindow:
		return StatusActive
	case age <= idleWindow:
		return StatusIdle
	default:
		return StatusOffline
	}
}

// RelativeTime renders the age of t as "Just now", "N min(s) ago",
// "N hour(s) ago" or "N day(s) ago". Future timestamps read as "Just now".
func RelativeTime(now, t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	age := now.Sub(t)
	switch {
	case age < time.Minute:
		return "Just now"
	case age < time.Hour:
		return plural(int(age/time.Minute), "min")
	case age < 24*time.Hour:
		return plural(int(age/time.Hour), "hour")
	default:
		return plural(int(age/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
