// Package mirror picks which of several equivalent servers receives the next
// request and spaces requests out so no single origin is hammered.
package mirror

import (
	"log/slog"
	"math/rand"
	"os"
	"time"
)

const (
	// SingleDelay follows every selection when only one mirror exists.
	SingleDelay = time.Second
	// MultiDelay follows every selection when load is spread over mirrors.
	MultiDelay = 500 * time.Millisecond
)

// Selector remembers the previous pick. It is not safe for concurrent use;
// fetches are serialised behind it.
type Selector struct {
	// Intn draws a uniform index in [0, n).
	Intn func(n int) int
	// Sleep blocks for the post-selection delay.
	Sleep func(time.Duration)
	// Fatal is invoked when there is nothing to select from. It is not
	// expected to return.
	Fatal func(msg string)

	last string
}

// New returns a Selector using math/rand, time.Sleep and a fatal hook that
// logs through logger and exits the process.
func New(logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		Intn:  rand.Intn,
		Sleep: time.Sleep,
		Fatal: func(msg string) {
			logger.Error(msg)
			os.Exit(1)
		},
	}
}

// Select returns the mirror to use for the next request, then blocks for the
// governor delay. An empty candidate list triggers Fatal.
func (s *Selector) Select(candidates []string) string {
	switch len(candidates) {
	case 0:
		s.Fatal("no tvguidefetch servers available")
		return ""
	case 1:
		s.last = candidates[0]
		s.Sleep(SingleDelay)
		return s.last
	}

	i := s.Intn(len(candidates))
	if candidates[i] == s.last {
		i = (i + 1) % len(candidates)
	}
	s.last = candidates[i]
	s.Sleep(MultiDelay)
	return s.last
}

// Last returns the most recent selection, or "" before the first.
func (s *Selector) Last() string { return s.last }
