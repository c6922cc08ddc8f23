package guide

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/config"
	"github.com/derickschaefer/tvguidefetch/internal/model"
	"github.com/derickschaefer/tvguidefetch/internal/tvdate"
	"github.com/derickschaefer/tvguidefetch/internal/xmltree"
)

// ─── Feed ─────────────────────────────────────────────────────────────────────

// Feed is one upstream source of day files for a channel.
type Feed struct {
	ID       string
	BaseURLs []string
	// Days lists the advertised YYYY-MM-DD days in catalogue order.
	Days         []string
	lastModified map[string]string
}

// LastModified returns the catalogue's modification token for day.
func (f *Feed) LastModified(day string) string {
	return f.lastModified[day]
}

// DayURI names the cache entry holding one day of a feed.
func DayURI(feedID, day string) string {
	return feedID + "_" + day + dayURISuffix
}

const dayURISuffix = ".xml.gz"

// ParseDayURI splits a name produced by DayURI. ok is false for any other
// cache entry, such as the catalogue.
func ParseDayURI(name string) (feedID, day string, ok bool) {
	stem, found := strings.CutSuffix(name, dayURISuffix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(stem, '_')
	if i <= 0 {
		return "", "", false
	}
	feedID, day = stem[:i], stem[i+1:]
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return "", "", false
	}
	return feedID, day, true
}

// load reads <base-url> and <datafor> children of a catalogue channel.
func (f *Feed) load(n *xmltree.Node) {
	if f.lastModified == nil {
		f.lastModified = make(map[string]string)
	}
	for _, c := range n.Elements("") {
		switch c.Name {
		case "base-url":
			if u := c.Text(); u != "" {
				f.BaseURLs = append(f.BaseURLs, u)
			}
		case "datafor":
			day := c.Text()
			if lm, ok := c.Attr("lastmodified"); ok {
				f.lastModified[day] = lm
			}
			f.Days = append(f.Days, day)
		}
	}
}

// ─── Channel ──────────────────────────────────────────────────────────────────

// Channel is a resolved channel: identity and metadata from the catalogue
// with local overrides applied, plus its primary and optional fillin feed.
type Channel struct {
	ID           string
	DisplayName  string
	DisplayAttrs []xmltree.Attr
	Number       string
	Icon         string
	// TimeOffset in seconds is added to every programme time.
	TimeOffset int
	Primary    Feed
	Fillin     Feed
	// Configured is set when the channel came from the local channel map.
	Configured bool
}

func newChannel(oztivoID string) *Channel {
	return &Channel{ID: oztivoID, Primary: Feed{ID: oztivoID}}
}

// feeds returns the feeds in insertion priority order.
func (ch *Channel) feeds() []*Feed {
	out := []*Feed{&ch.Primary}
	if ch.Fillin.ID != "" {
		out = append(out, &ch.Fillin)
	}
	return out
}

// setDisplayAttr replaces an existing attribute value or appends a new one.
func (ch *Channel) setDisplayAttr(name, value string) {
	for i := range ch.DisplayAttrs {
		if ch.DisplayAttrs[i].Name == name {
			ch.DisplayAttrs[i].Value = value
			return
		}
	}
	ch.DisplayAttrs = append(ch.DisplayAttrs, xmltree.Attr{Name: name, Value: value})
}

// applySettings copies identity attributes and display metadata from a
// catalogue <channel> element. An out-of-range timeoffset is an error.
func (ch *Channel) applySettings(n *xmltree.Node) error {
	for _, a := range n.Attrs {
		switch a.Name {
		case "id":
			ch.ID = a.Value
		case "oztivoid":
			ch.Primary.ID = a.Value
		case "fillinid":
			ch.Fillin.ID = a.Value
		case "timeoffset":
			off, err := parseOffset(a.Value)
			if err != nil {
				return fmt.Errorf("channel %s: %w", ch.ID, err)
			}
			ch.TimeOffset = off
		}
	}

	seenNumber := false
	for _, c := range n.Elements("") {
		switch c.Name {
		case "display-name":
			for _, a := range c.Attrs {
				ch.setDisplayAttr(a.Name, a.Value)
			}
			ch.DisplayName = c.Text()
		case "lcn":
			if !seenNumber {
				ch.Number = c.Text()
				seenNumber = true
			}
		case "icon":
			if src, ok := c.Attr("src"); ok {
				ch.Icon = src
			}
		}
	}
	return nil
}

func parseOffset(s string) (int, error) {
	off, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || off < -tvdate.MaxOffset || off > tvdate.MaxOffset {
		return 0, fmt.Errorf("timeoffset %q not in the range -%d to %d", s, tvdate.MaxOffset, tvdate.MaxOffset)
	}
	return off, nil
}

// applyOverride lays a channel map entry over the catalogue values.
func (ch *Channel) applyOverride(c config.Channel) {
	ch.Configured = true
	if c.ID != "" {
		ch.ID = c.ID
	}
	if c.FillinID != "" {
		ch.Fillin.ID = c.FillinID
	}
	if c.TimeOffset != nil {
		ch.TimeOffset = *c.TimeOffset
	}
	if len(c.DisplayNameAttrs) > 0 {
		keys := make([]string, 0, len(c.DisplayNameAttrs))
		for k := range c.DisplayNameAttrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ch.setDisplayAttr(k, c.DisplayNameAttrs[k])
		}
	}
	if c.DisplayName != "" {
		ch.DisplayName = c.DisplayName
	}
	if c.LCN != "" {
		ch.Number = c.LCN
	}
	if c.Icon != "" {
		ch.Icon = c.Icon
	}
}

// XML builds the <channel> element for the output document.
func (ch *Channel) XML() *xmltree.Node {
	n := xmltree.NewElement("channel", xmltree.Attr{Name: "id", Value: ch.ID})
	name := xmltree.NewElement("display-name", append([]xmltree.Attr(nil), ch.DisplayAttrs...)...)
	n.Append(name.AppendText(ch.DisplayName))
	if ch.Number != "" {
		n.Append(xmltree.NewElement("display-name").AppendText(ch.Number))
	}
	if ch.Icon != "" {
		n.Append(xmltree.NewElement("icon", xmltree.Attr{Name: "src", Value: ch.Icon}))
	}
	return n
}

// Info summarises the channel for listings.
func (ch *Channel) Info() model.ChannelInfo {
	info := model.ChannelInfo{
		ID:          ch.ID,
		OztivoID:    ch.Primary.ID,
		FillinID:    ch.Fillin.ID,
		DisplayName: ch.DisplayName,
		Number:      ch.Number,
		Icon:        ch.Icon,
		TimeOffset:  ch.TimeOffset,
		Days:        len(ch.Primary.Days),
		Mirrors:     ch.Primary.BaseURLs,
		Configured:  ch.Configured,
	}
	if n := len(ch.Primary.Days); n > 0 {
		info.FirstDay = ch.Primary.Days[0]
		info.LastDay = ch.Primary.Days[n-1]
	}
	return info
}

// ─── Resolution ───────────────────────────────────────────────────────────────

// ResolveChannels matches every channel map entry against the catalogue, in
// map order. Entries naming an unknown channel, and fillin ids the catalogue
// does not list, are skipped with a warning; the warnings are also returned.
func ResolveChannels(cat *Catalogue, entries []config.Channel, logger *slog.Logger) ([]*Channel, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		out      []*Channel
		warnings []string
	)
	warn := func(msg string) {
		logger.Warn(msg)
		warnings = append(warnings, msg)
	}

	for _, e := range entries {
		if e.OztivoID == "" {
			return nil, warnings, fmt.Errorf("%w: channel entry must have an oztivoid", config.ErrInvalid)
		}
		node := cat.Lookup(e.OztivoID)
		if node == nil {
			warn(fmt.Sprintf("channel oztivoid %q doesn't exist in the catalogue", e.OztivoID))
			continue
		}

		ch := newChannel(e.OztivoID)
		if err := ch.applySettings(node); err != nil {
			return nil, warnings, err
		}
		ch.Primary.load(node)
		ch.applyOverride(e)
		logger.Debug("got channel data from catalogue", "oztivoid", e.OztivoID, "id", ch.ID)

		if ch.Fillin.ID != "" {
			fnode := cat.Lookup(ch.Fillin.ID)
			if fnode == nil {
				warn(fmt.Sprintf("channel fillinid %q doesn't exist in the catalogue", ch.Fillin.ID))
				ch.Fillin = Feed{}
			} else {
				ch.Fillin.load(fnode)
				logger.Debug("got fillin data from catalogue", "fillinid", ch.Fillin.ID)
			}
		}
		out = append(out, ch)
	}

	if len(out) == 0 {
		warn("no valid channels defined in the channel map")
	}
	return out, warnings, nil
}
