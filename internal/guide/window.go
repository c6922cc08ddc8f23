package guide

import (
	"fmt"
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/tvdate"
)

// Window is the inclusive range of days a run fetches. All three fields are
// YYYY-MM-DD in the host's local offset; being fixed width, they compare
// correctly as strings.
type Window struct {
	Today string
	First string
	Last  string
}

// NewWindow starts offset days after the day containing now and spans days
// days. A zero span is allowed and selects nothing.
func NewWindow(now time.Time, offset, days int) (Window, error) {
	if offset < 0 || days < 0 {
		return Window{}, fmt.Errorf("day window: offset %d and days %d must not be negative", offset, days)
	}
	base := tvdate.FromTime(now)
	first := base
	if err := first.AddDays(offset); err != nil {
		return Window{}, fmt.Errorf("day window: %w", err)
	}
	last := first
	if err := last.AddDays(days - 1); err != nil {
		return Window{}, fmt.Errorf("day window: %w", err)
	}
	return Window{
		Today: base.DayString(),
		First: first.DayString(),
		Last:  last.DayString(),
	}, nil
}

// Contains reports whether day falls within [First, Last].
func (w Window) Contains(day string) bool {
	return w.First <= day && day <= w.Last
}

func (w Window) String() string {
	return w.First + " to " + w.Last + " (today " + w.Today + ")"
}
