// Package schedule keeps one channel's programmes as an ordered list of
// non-overlapping intervals.
//
// Programmes already in the list always win. A newcomer that collides with a
// stored programme is trimmed, split around it or dropped, so the order in
// which feeds are inserted decides their priority.
package schedule

import (
	"log/slog"
	"sort"

	"github.com/derickschaefer/tvguidefetch/internal/tvdate"
	"github.com/derickschaefer/tvguidefetch/internal/xmltree"
)

// Program is one [Start, Stop) interval. Node is the guide element it was
// read from; fragments of a split programme share it.
type Program struct {
	Start tvdate.Date
	Stop  tvdate.Date
	Title string
	Node  *xmltree.Node
}

// Valid reports whether Stop is after Start.
func (p Program) Valid() bool { return p.Stop.After(p.Start) }

// Overlaps reports whether p and o share any instant.
func (p Program) Overlaps(o Program) bool {
	return p.Start.Before(o.Stop) && o.Start.Before(p.Stop)
}

// Retarget relabels both times with a new UTC offset while keeping the
// rendered wall clock unchanged, so "10:00 +1000" becomes "10:00 +0800".
func (p *Program) Retarget(off int) error {
	for _, d := range []*tvdate.Date{&p.Start, &p.Stop} {
		old := d.Offset()
		if err := d.SetOffset(off); err != nil {
			return err
		}
		if err := d.AddSeconds(old - off); err != nil {
			return err
		}
	}
	return nil
}

// Shift moves both times by n seconds.
func (p *Program) Shift(n int) error {
	if n == 0 {
		return nil
	}
	if err := p.Start.AddSeconds(n); err != nil {
		return err
	}
	return p.Stop.AddSeconds(n)
}

// Schedule is the merged programme list for one channel.
type Schedule struct {
	programs []Program
	logger   *slog.Logger
}

// New returns an empty Schedule. Merge decisions are logged at debug level.
func New(logger *slog.Logger) *Schedule {
	if logger == nil {
		logger = slog.Default()
	}
	return &Schedule{logger: logger}
}

// Len returns the number of stored programmes.
func (s *Schedule) Len() int { return len(s.programs) }

// Programs returns a copy of the stored programmes in start order.
func (s *Schedule) Programs() []Program {
	return append([]Program(nil), s.programs...)
}

// Insert merges p into the schedule and returns how many intervals were
// stored as a result: zero when p is entirely covered, more than one when p
// had to be split around existing programmes.
func (s *Schedule) Insert(p Program) int {
	if !p.Valid() {
		s.logger.Debug("skipping empty programme", "title", p.Title, "start", p.Start, "stop", p.Stop)
		return 0
	}

	added := 0
	work := []Program{p}
	for len(work) > 0 {
		cand := work[len(work)-1]
		work = work[:len(work)-1]

		keep, left := s.resolve(&cand)
		work = append(work, left...)
		if !keep {
			continue
		}
		s.logger.Debug("keeping", "title", cand.Title, "start", cand.Start, "stop", cand.Stop)
		s.store(cand)
		added++
	}
	return added
}

// resolve sweeps the stored list once, shrinking cand in place. It returns
// false when cand is fully covered, plus every left fragment split off.
func (s *Schedule) resolve(cand *Program) (bool, []Program) {
	var left []Program
	for _, cur := range s.programs {
		startIn := !cand.Start.Before(cur.Start) // cand.Start >= cur.Start
		stopIn := !cand.Stop.After(cur.Stop)     // cand.Stop <= cur.Stop

		switch {
		case startIn && stopIn:
			s.logger.Debug("skipping", "title", cand.Title, "start", cand.Start, "stop", cand.Stop, "covered_by", cur.Title)
			return false, left

		case !startIn && !stopIn:
			frag := *cand
			frag.Stop = cur.Start
			s.logger.Debug("split part1", "title", frag.Title, "start", frag.Start, "stop", frag.Stop)
			left = append(left, frag)
			cand.Start = cur.Stop
			s.logger.Debug("split part2", "title", cand.Title, "start", cand.Start, "stop", cand.Stop)

		case startIn && cand.Start.Before(cur.Stop):
			cand.Start = cur.Stop
			s.logger.Debug("move start", "title", cand.Title, "start", cand.Start, "stop", cand.Stop)

		case !startIn && cand.Stop.After(cur.Start):
			cand.Stop = cur.Start
			s.logger.Debug("move stop", "title", cand.Title, "start", cand.Start, "stop", cand.Stop)
		}
	}
	return true, left
}

// store inserts p before the first programme starting after it.
func (s *Schedule) store(p Program) {
	i := sort.Search(len(s.programs), func(i int) bool {
		return s.programs[i].Start.After(p.Start)
	})
	s.programs = append(s.programs, Program{})
	copy(s.programs[i+1:], s.programs[i:])
	s.programs[i] = p
}
