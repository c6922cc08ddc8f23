package httpcache

import (
	"net/http"
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/tvdate"
)

// Grace is how long a fetched copy is trusted without asking the server.
const Grace = time.Hour

// Action is the outcome of the pre-fetch freshness check.
type Action int

const (
	// Unconditional means nothing usable is cached; fetch outright.
	Unconditional Action = iota
	// Conditional means fetch with the cached validators attached.
	Conditional
	// TrustCache means the copy is recent enough that no request is made.
	TrustCache
)

func (a Action) String() string {
	switch a {
	case TrustCache:
		return "trust-cache"
	case Conditional:
		return "conditional"
	}
	return "unconditional"
}

// Decision carries the action plus the precondition headers for a
// conditional request.
type Decision struct {
	Action          Action
	IfModifiedSince string
	IfNoneMatch     string
}

// Decide inspects a cached header (found reports whether one exists) at
// instant now. A recorded Date that cannot be parsed is treated as stale.
func Decide(h Header, found bool, now time.Time) Decision {
	if !found {
		return Decision{Action: Unconditional}
	}
	if fetched, err := h.Date(); err == nil {
		if err := fetched.AddSeconds(int(Grace / time.Second)); err == nil &&
			fetched.After(tvdate.FromTime(now)) {
			return Decision{Action: TrustCache}
		}
	}
	d := Decision{
		IfModifiedSince: h.Get("Last-Modified"),
		IfNoneMatch:     h.Get("ETag"),
	}
	if d.IfModifiedSince != "" || d.IfNoneMatch != "" {
		d.Action = Conditional
	}
	return d
}

// Apply sets the precondition headers on req.
func (d Decision) Apply(req *http.Request) {
	if d.IfModifiedSince != "" {
		req.Header.Set("If-Modified-Since", d.IfModifiedSince)
	}
	if d.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", d.IfNoneMatch)
	}
}

// Outcome is what a response status means for the cached copy.
type Outcome int

const (
	// Replace: store the new body and headers.
	Replace Outcome = iota
	// NotModified: the cached copy is confirmed; nothing is written.
	NotModified
)

// Interpret maps a response status to a cache outcome. ok is false for any
// status that must be reported as a failure, in which case the cache is
// left untouched.
func Interpret(status int) (Outcome, bool) {
	switch {
	case status == http.StatusNotModified:
		return NotModified, true
	case status >= 200 && status < 300:
		return Replace, true
	}
	return 0, false
}

// ─── Day-level freshness ──────────────────────────────────────────────────────

// DayState is the result of comparing a catalogue's per-day token with the
// cached copy of that day.
type DayState int

const (
	// DayNotCached: no header file, or one without a Last-Modified.
	DayNotCached DayState = iota
	// DayStale: both dates parsed and differ.
	DayStale
	// DayInvalidDates: the catalogue token or the cached Last-Modified did
	// not parse.
	DayInvalidDates
	// DayValid: the cached copy is exactly what the catalogue advertises.
	DayValid
)

func (s DayState) String() string {
	switch s {
	case DayStale:
		return "stale"
	case DayInvalidDates:
		return "invalid-dates"
	case DayValid:
		return "valid"
	}
	return "not-cached"
}

// CheckDay compares a catalogue modification token (XMLTV format) with the
// cached Last-Modified (HTTP date). Only DayValid skips the fetch entirely.
func CheckDay(token string, h Header, found bool) DayState {
	if !found {
		return DayNotCached
	}
	lm, ok := h.Lookup("Last-Modified")
	if !ok {
		return DayNotCached
	}
	advertised, err := tvdate.Parse(tvdate.XMLTV, token)
	if err != nil {
		return DayInvalidDates
	}
	cached, err := tvdate.Parse(tvdate.RFC822, lm)
	if err != nil {
		return DayInvalidDates
	}
	if advertised.Equal(cached) {
		return DayValid
	}
	return DayStale
}
