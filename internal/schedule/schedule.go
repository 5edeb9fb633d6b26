package schedule

import (
	"time"
)

// IsQuiet reports whether t falls in one of the quiet hours (t's location).
func IsQuiet(t time.Time, quietHours []int) bool {
	for _, q := range quietHours {
		if q == t.Hour() {
			return true
		}
	}
	return false
}

// NextWindow returns now if it is outside quiet hours, else the start of the next
// hour that is not quiet.
func NextWindow(now time.Time, quietHours []int) time.Time {
	if !IsQuiet(now, quietHours) {
		return now
	}
	cand := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	for i := 0; i < 48; i++ { // search up to 2 days ahead
		cand = cand.Add(time.Hour)
		if !IsQuiet(cand, quietHours) {
			return cand
		}
	}
	return now.Add(15 * time.Minute)
}
