// Package clock abstracts the wall clock so date-boundary logic can be
// tested against fabricated dates.
package clock

import "time"

// Clock supplies the current time. The quota guard only ever derives a
// calendar date from it.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a clock pinned to a single instant, for tests.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time {
	return f.T
}

// At returns a Fixed clock pinned to the given date.
func At(year int, month time.Month, day int) Fixed {
	return Fixed{T: time.Date(year, month, day, 12, 0, 0, 0, time.UTC)}
}
