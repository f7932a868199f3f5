package utils

import (
	"fmt"
	"math"
	"time"
)

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CalendarDaysBetween counts calendar-day boundaries from then to now, both
// interpreted in now's location. A later then yields a negative count.
func CalendarDaysBetween(then, now time.Time) int {
	a := StartOfDay(then.In(now.Location()))
	b := StartOfDay(now)
	// Rounded so DST days of 23 or 25 hours still count as one.
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// FormatRelative renders a timestamp for the session sidebar. Days are
// counted on the calendar so labels agree with the sidebar's sections.
func FormatRelative(t, now time.Time) string {
	t = t.In(now.Location())
	days := CalendarDaysBetween(t, now)
	switch {
	case days <= 0:
		return fmt.Sprintf("Today at %d:%02d", t.Hour(), t.Minute())
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2")
	}
}
