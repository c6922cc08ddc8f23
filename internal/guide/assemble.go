// Package guide turns the catalogue and per-day feed documents into merged
// channel schedules and writes them out as an XMLTV document.
//
// Channels are processed in channel map order. For each one, day files older
// than today are pruned from the cache, then every advertised day inside the
// window is brought up to date and its programmes are merged: all of the
// primary feed first, then the fillin feed, so fillin data only lands in the
// gaps.
package guide

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/derickschaefer/tvguidefetch/internal/fetch"
	"github.com/derickschaefer/tvguidefetch/internal/httpcache"
	"github.com/derickschaefer/tvguidefetch/internal/model"
	"github.com/derickschaefer/tvguidefetch/internal/schedule"
	"github.com/derickschaefer/tvguidefetch/internal/tvdate"
	"github.com/derickschaefer/tvguidefetch/internal/xmltree"
)

// Fetcher brings a URI up to date in the cache. *fetch.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, bases []string, uri string) (fetch.Outcome, error)
}

// Options configures an Assembler.
type Options struct {
	// ForcedOffset, when set, relabels every programme time with this UTC
	// offset in seconds. Otherwise each programme keeps its feed offset.
	ForcedOffset *int
	Logger       *slog.Logger
}

// Assembler drives one grab.
type Assembler struct {
	fetcher Fetcher
	cache   *httpcache.Cache
	forced  *int
	logger  *slog.Logger
	counts  model.FetchCounts
}

// NewAssembler returns an Assembler reading day files back from cache after
// fetcher has refreshed them.
func NewAssembler(f Fetcher, cache *httpcache.Cache, opts Options) *Assembler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Assembler{fetcher: f, cache: cache, forced: opts.ForcedOffset, logger: opts.Logger}
}

// Counts returns the fetch tallies so far.
func (a *Assembler) Counts() model.FetchCounts { return a.counts }

func (a *Assembler) count(o fetch.Outcome) {
	switch o {
	case fetch.Trusted:
		a.counts.Trusted++
	case fetch.NotModified:
		a.counts.NotModified++
	default:
		a.counts.Fetched++
	}
}

// ─── Catalogue ────────────────────────────────────────────────────────────────

// FetchCatalogue refreshes and parses the datalist.
func (a *Assembler) FetchCatalogue(ctx context.Context, bases []string, uri string) (*Catalogue, error) {
	a.logger.Info("Processing catalogue", "uri", uri)
	out, err := a.fetcher.Fetch(ctx, bases, uri)
	if err != nil {
		return nil, fmt.Errorf("fetching catalogue: %w", err)
	}
	a.count(out)
	data, err := a.cache.Contents(uri)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue: %w", err)
	}
	return ParseCatalogue(data)
}

// ─── Run ──────────────────────────────────────────────────────────────────────

// Entry is one channel and its merged schedule.
type Entry struct {
	Channel  *Channel
	Schedule *schedule.Schedule
}

// Guide is the result of a run.
type Guide struct {
	Window  Window
	Entries []Entry
	Counts  model.FetchCounts
}

// Programmes returns the number of programmes across all channels.
func (g *Guide) Programmes() int {
	n := 0
	for _, e := range g.Entries {
		n += e.Schedule.Len()
	}
	return n
}

// Records converts each channel's schedule for the history store.
func (g *Guide) Records(runID string) []model.ScheduleRecord {
	out := make([]model.ScheduleRecord, 0, len(g.Entries))
	for _, e := range g.Entries {
		rec := model.ScheduleRecord{
			ChannelID:   e.Channel.ID,
			DisplayName: e.Channel.DisplayName,
			RunID:       runID,
			FirstDay:    g.Window.First,
			LastDay:     g.Window.Last,
		}
		for _, p := range e.Schedule.Programs() {
			rec.Programmes = append(rec.Programmes, model.Programme{
				Start: p.Start.Format(tvdate.XMLTV),
				Stop:  p.Stop.Format(tvdate.XMLTV),
				Title: p.Title,
			})
		}
		out = append(out, rec)
	}
	return out
}

// Run fetches and merges every channel. Any fetch or decode failure aborts
// the whole run.
func (a *Assembler) Run(ctx context.Context, channels []*Channel, w Window) (*Guide, error) {
	a.logger.Debug("guide data date range", "window", w.String())
	g := &Guide{Window: w}
	for i, ch := range channels {
		a.logger.Info(fmt.Sprintf("Fetching guide data for channel (%d of %d) %s", i+1, len(channels), ch.ID))

		if err := a.Prune(ch, w.Today); err != nil {
			return nil, err
		}
		sched := schedule.New(a.logger)
		for _, feed := range ch.feeds() {
			if err := a.fetchFeed(ctx, ch, feed, sched, w); err != nil {
				return nil, fmt.Errorf("fetching guide data for %s: %w", ch.ID, err)
			}
		}
		g.Entries = append(g.Entries, Entry{Channel: ch, Schedule: sched})
	}
	g.Counts = a.counts
	return g, nil
}

// Prune removes cached day files older than today for both of a channel's
// feeds.
func (a *Assembler) Prune(ch *Channel, today string) error {
	for _, feed := range ch.feeds() {
		removed, err := a.cache.Prune(feed.ID+"_", today)
		for _, name := range removed {
			a.logger.Info("Removing cache file", "uri", name)
		}
		a.counts.Pruned += len(removed)
		if err != nil {
			return fmt.Errorf("pruning cache for %s: %w", feed.ID, err)
		}
	}
	return nil
}

// fetchFeed processes each advertised day of feed inside the window.
func (a *Assembler) fetchFeed(ctx context.Context, ch *Channel, feed *Feed, sched *schedule.Schedule, w Window) error {
	for _, day := range feed.Days {
		if !w.Contains(day) {
			continue
		}
		uri := DayURI(feed.ID, day)

		h, err := a.cache.Header(uri)
		if err != nil && !errors.Is(err, httpcache.ErrNotCached) {
			return err
		}
		switch httpcache.CheckDay(feed.LastModified(day), h, err == nil) {
		case httpcache.DayValid:
			a.logger.Info("Cache valid", "uri", uri)
			a.counts.CacheValid++
		case httpcache.DayInvalidDates:
			a.logger.Info("Fetching - invalid dates", "uri", uri)
			fallthrough
		default:
			out, err := a.fetcher.Fetch(ctx, feed.BaseURLs, uri)
			if err != nil {
				return err
			}
			a.count(out)
		}

		data, err := a.cache.Contents(uri)
		if err != nil {
			return err
		}
		doc, err := xmltree.Parse(bytes.NewReader(data))
		if err != nil {
			a.logger.Warn("skipping unparseable guide document", "uri", uri, "error", err)
			continue
		}
		added := a.merge(ch, doc, sched)
		a.logger.Debug("merged day", "uri", uri, "stored", added)
	}
	return nil
}

// merge inserts every loadable <programme> under /tv into sched.
func (a *Assembler) merge(ch *Channel, doc *xmltree.Node, sched *schedule.Schedule) int {
	tv := doc.Find("tv")
	if tv == nil {
		return 0
	}
	added := 0
	for _, n := range tv.Elements("programme") {
		p, err := a.program(ch, n)
		if err != nil {
			a.logger.Debug("skipping programme", "error", err)
			continue
		}
		added += sched.Insert(p)
	}
	return added
}

// program loads start, stop and title from a <programme> element and applies
// the forced offset and the channel's clock correction.
func (a *Assembler) program(ch *Channel, n *xmltree.Node) (schedule.Program, error) {
	var p schedule.Program
	startText, ok := n.Attr("start")
	if !ok {
		return p, errors.New("programme without start")
	}
	stopText, ok := n.Attr("stop")
	if !ok {
		return p, errors.New("programme without stop")
	}
	title := n.ChildText("title")
	if title == "" {
		return p, errors.New("programme without title")
	}
	start, err := tvdate.Parse(tvdate.XMLTV, startText)
	if err != nil {
		return p, err
	}
	stop, err := tvdate.Parse(tvdate.XMLTV, stopText)
	if err != nil {
		return p, err
	}

	p = schedule.Program{Start: start, Stop: stop, Title: title, Node: n}
	if a.forced != nil {
		if err := p.Retarget(*a.forced); err != nil {
			return p, err
		}
	}
	if err := p.Shift(ch.TimeOffset); err != nil {
		return p, err
	}
	return p, nil
}
