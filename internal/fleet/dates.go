package fleet

import "time"

// toDate truncates a timestamp to a calendar date at midnight UTC. All rule
// arithmetic works on dates, never on clock times.
func toDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole days from one date to another. Positive when
// to is after from.
func daysBetween(from, to time.Time) int64 {
	return int64(toDate(to).Sub(toDate(from)).Hours() / 24)
}

// addDays returns the date n days after d.
func addDays(d time.Time, n int64) time.Time {
	return toDate(d).AddDate(0, 0, int(n))
}
