package core

import "time"

// Clock provides the current time. Services take one at construction so tests
// can pin time; a nil Clock falls back to the wall clock.
type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// ClockAt returns a Clock frozen at t.
func ClockAt(t time.Time) Clock {
	return func() time.Time { return t }
}
