package core

import "time"

// Calendar math operates on calendar date components only, never on local
// wall-clock time, so results are identical in every timezone.

// Date returns midnight UTC for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its calendar day (midnight UTC).
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return Date(y, m, d)
}

// DaysInMonth returns the number of days in (year, month), leap-year aware.
func DaysInMonth(year int, month time.Month) int {
	// day 0 of the next month normalizes to the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EnumerateDays returns every calendar day of (year, month) in ascending order.
func EnumerateDays(year int, month time.Month) []time.Time {
	n := DaysInMonth(year, month)
	days := make([]time.Time, 0, n)
	for d := 1; d <= n; d++ {
		days = append(days, Date(year, month, d))
	}
	return days
}

// MonthsElapsed returns the floor of whole months between from and to.
// A month counts only once to's day-of-month has reached from's.
// Negative when to precedes from by a month or more.
func MonthsElapsed(from, to time.Time) int {
	from, to = DateOf(from), DateOf(to)
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	return months
}
