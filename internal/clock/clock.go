// Package clock abstracts "now" in the campaign's time zone so that
// date-sensitive logic (rotation, broadcast gating) is testable.
package clock

import "time"

// DateLayout is the calendar-date key format used across the record stores.
const DateLayout = "2006-01-02"

type Clock interface {
	// Now returns the current time in the campaign time zone.
	Now() time.Time
}

// System is the real clock pinned to a location.
type System struct {
	Loc *time.Location
}

func (s System) Now() time.Time {
	loc := s.Loc
	if loc == nil {
		loc = time.Local
	}
	return time.Now().In(loc)
}

// Date formats t as a calendar-date key (YYYY-MM-DD).
func Date(t time.Time) string { return t.Format(DateLayout) }

// Fixed is a clock frozen at a single instant. Test helper.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
