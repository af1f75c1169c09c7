package history

import (
	"time"

	"github.com/araddon/dateparse"
)

// ParseDate reads a stored date string. Records written by hand or by other
// tools may use any common layout.
func ParseDate(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(DateLayout, value, time.Local); err == nil {
		return t, nil
	}
	return dateparse.ParseLocal(value)
}

// InRange reports whether r is dated within [since, until]. A zero bound is
// open; an unparsable date is only in range when both bounds are open.
func InRange(r Record, since, until time.Time) bool {
	if since.IsZero() && until.IsZero() {
		return true
	}
	t, err := ParseDate(r.Date)
	if err != nil {
		return false
	}
	if !since.IsZero() && t.Before(since) {
		return false
	}
	return until.IsZero() || !t.After(until)
}

// Filter returns the positions of the records InRange, in order, so callers
// can keep addressing them by their original row.
func Filter(records []Record, since, until time.Time) []int {
	var kept []int
	for i, r := range records {
		if InRange(r, since, until) {
			kept = append(kept, i)
		}
	}
	return kept
}
