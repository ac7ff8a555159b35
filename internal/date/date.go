// Package date resolves the current calendar date and month boundaries
// in the bot's configured timezone, so that day boundaries match what
// the user sees on their own clock.
package date

import (
	"fmt"
	"time"
)

// Clock resolves "today" in a fixed location. The zero value is not
// usable, construct with NewClock or NewFixedClock.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a Clock for the named timezone, e.g. "Europe/Madrid".
// An empty name means the system local timezone.
func NewClock(timezone string) (*Clock, error) {
	if timezone == "" {
		timezone = "Local"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("date.NewClock, unknown timezone %q: %v", timezone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewFixedClock returns a Clock frozen at t, for tests.
func NewFixedClock(t time.Time) *Clock {
	return &Clock{loc: t.Location(), now: func() time.Time { return t }}
}

// Today returns the current calendar date with a zero time component.
func (c *Clock) Today() time.Time {
	y, m, d := c.now().In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// MonthBounds returns the first and last day of the month, inclusive.
// Panics if month is outside 1..12: an invalid month here is a
// programmer error, not user input.
func MonthBounds(year int, month int) (time.Time, time.Time) {
	if month < 1 || month > 12 {
		panic(fmt.Sprintf("date.MonthBounds, month out of range: %d", month))
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	// day 0 of the next month normalizes to the last day of this one,
	// which handles 28/29/30/31-day months and the December wrap
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	return first, last
}
