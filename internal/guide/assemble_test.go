package guide_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/derickschaefer/tvguidefetch/internal/config"
	"github.com/derickschaefer/tvguidefetch/internal/fetch"
	"github.com/derickschaefer/tvguidefetch/internal/guide"
	"github.com/derickschaefer/tvguidefetch/internal/httpcache"
	"github.com/derickschaefer/tvguidefetch/internal/mirror"
	"github.com/derickschaefer/tvguidefetch/internal/tvdate"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// fakeFetcher stores docs[uri] into the cache on every call, or fails with
// a 404 when the uri is unknown.
type fakeFetcher struct {
	cache *httpcache.Cache
	docs  map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, _ []string, uri string) (fetch.Outcome, error) {
	f.calls = append(f.calls, uri)
	body, ok := f.docs[uri]
	if !ok {
		return 0, &fetch.StatusError{URL: uri, Code: http.StatusNotFound, Status: "404 Not Found"}
	}
	if err := f.cache.Save(uri, []byte(body), "HTTP/1.1 200 OK\r\n"); err != nil {
		return 0, err
	}
	return fetch.Fetched, nil
}

func (f *fakeFetcher) callsWithPrefix(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func newCache(t *testing.T) *httpcache.Cache {
	t.Helper()
	c, err := httpcache.New(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("httpcache.New: %v", err)
	}
	return c
}

func prog(start, stop, title string) string {
	return fmt.Sprintf(`<programme start="%s" stop="%s" channel="upstream"><title>%s</title><desc>About %s</desc></programme>`,
		start, stop, title, title)
}

func dayDoc(progs ...string) string {
	return "<tv>" + strings.Join(progs, "") + "</tv>"
}

// emptyDays gives every advertised day an empty document.
func emptyDays() map[string]string {
	docs := map[string]string{}
	for _, d := range []string{"2020-01-04", "2020-01-05", "2020-01-06", "2020-01-07", "2020-01-08"} {
		docs[guide.DayURI("ABC-NSW", d)] = dayDoc()
	}
	docs[guide.DayURI("ABC-VIC", "2020-01-05")] = dayDoc()
	return docs
}

var testWindow = guide.Window{Today: "2020-01-05", First: "2020-01-05", Last: "2020-01-07"}

func resolveABC(t *testing.T, entry config.Channel) []*guide.Channel {
	t.Helper()
	cat := mustCatalogue(t, catalogueXML("http://m.example/"))
	if entry.OztivoID == "" {
		entry.OztivoID = "ABC-NSW"
	}
	chans, _, err := guide.ResolveChannels(cat, []config.Channel{entry}, discard())
	if err != nil {
		t.Fatalf("ResolveChannels: %v", err)
	}
	return chans
}

type span struct{ start, stop, title string }

func spans(g *guide.Guide, i int) []span {
	var out []span
	for _, p := range g.Entries[i].Schedule.Programs() {
		out = append(out, span{p.Start.Format(tvdate.XMLTV), p.Stop.Format(tvdate.XMLTV), p.Title})
	}
	return out
}

// ─── Assembly ─────────────────────────────────────────────────────────────────

func TestRunFetchesOnlyDaysInWindow(t *testing.T) {
	cache := newCache(t)
	f := &fakeFetcher{cache: cache, docs: emptyDays()}
	a := guide.NewAssembler(f, cache, guide.Options{Logger: discard()})

	if _, err := a.Run(context.Background(), resolveABC(t, config.Channel{}), testWindow); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := f.callsWithPrefix("ABC-NSW_"); n != 3 {
		t.Errorf("expected 3 primary days fetched, got %d (%v)", n, f.calls)
	}
	if n := f.callsWithPrefix("ABC-VIC_"); n != 1 {
		t.Errorf("expected 1 fillin day fetched, got %d", n)
	}
	if f.calls[len(f.calls)-1] != guide.DayURI("ABC-VIC", "2020-01-05") {
		t.Errorf("fillin should be fetched after the primary feed: %v", f.calls)
	}
}

func TestPrimaryFeedWinsOverFillin(t *testing.T) {
	cache := newCache(t)
	docs := emptyDays()
	docs[guide.DayURI("ABC-NSW", "2020-01-05")] = dayDoc(prog("20200105100000 +1000", "20200105110000 +1000", "A"))
	docs[guide.DayURI("ABC-VIC", "2020-01-05")] = dayDoc(prog("20200105093000 +1000", "20200105113000 +1000", "B"))
	f := &fakeFetcher{cache: cache, docs: docs}
	a := guide.NewAssembler(f, cache, guide.Options{Logger: discard()})

	g, err := a.Run(context.Background(), resolveABC(t, config.Channel{}), testWindow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []span{
		{"20200105093000 +1000", "20200105100000 +1000", "B"},
		{"20200105100000 +1000", "20200105110000 +1000", "A"},
		{"20200105110000 +1000", "20200105113000 +1000", "B"},
	}
	got := spans(g, 0)
	if len(got) != len(want) {
		t.Fatalf("expected %d programmes, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("programme %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if g.Programmes() != 3 || g.Counts.Fetched != 4 {
		t.Errorf("totals: programmes=%d counts=%+v", g.Programmes(), g.Counts)
	}
}

func TestCacheValidDaySkipsFetch(t *testing.T) {
	cache := newCache(t)
	uri := guide.DayURI("ABC-NSW", "2020-01-05")
	// Catalogue token for this day is 20200105060000 +0000.
	hdr := "HTTP/1.1 200 OK\r\nLast-Modified: Sun, 05 Jan 2020 06:00:00 GMT\r\n"
	body := dayDoc(prog("20200105100000 +1000", "20200105110000 +1000", "Cached"))
	if err := cache.Save(uri, []byte(body), hdr); err != nil {
		t.Fatalf("Save: %v", err)
	}

	docs := emptyDays()
	delete(docs, uri)
	f := &fakeFetcher{cache: cache, docs: docs}
	a := guide.NewAssembler(f, cache, guide.Options{Logger: discard()})

	g, err := a.Run(context.Background(), resolveABC(t, config.Channel{}), testWindow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, c := range f.calls {
		if c == uri {
			t.Errorf("%s should not have been fetched", uri)
		}
	}
	if g.Counts.CacheValid != 1 {
		t.Errorf("CacheValid: expected 1, got %d", g.Counts.CacheValid)
	}
	if got := spans(g, 0); len(got) != 1 || got[0].title != "Cached" {
		t.Errorf("cached programmes should still be merged: %v", got)
	}
}

func TestStaleDayIsRefetched(t *testing.T) {
	cache := newCache(t)
	uri := guide.DayURI("ABC-NSW", "2020-01-06")
	hdr := "HTTP/1.1 200 OK\r\nLast-Modified: Mon, 06 Jan 2020 05:00:00 GMT\r\n"
	if err := cache.Save(uri, []byte(dayDoc()), hdr); err != nil {
		t.Fatalf("Save: %v", err)
	}
	f := &fakeFetcher{cache: cache, docs: emptyDays()}
	a := guide.NewAssembler(f, cache, guide.Options{Logger: discard()})
	if _, err := a.Run(context.Background(), resolveABC(t, config.Channel{}), testWindow); err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, c := range f.calls {
		found = found || c == uri
	}
	if !found {
		t.Errorf("stale day %s should be fetched", uri)
	}
}

func TestFetchFailureAbortsRun(t *testing.T) {
	cache := newCache(t)
	docs := emptyDays()
	delete(docs, guide.DayURI("ABC-NSW", "2020-01-06"))
	f := &fakeFetcher{cache: cache, docs: docs}
	a := guide.NewAssembler(f, cache, guide.Options{Logger: discard()})

	_, err := a.Run(context.Background(), resolveABC(t, config.Channel{}), testWindow)
	var se *fetch.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected StatusError 404, got %v", err)
	}
	if n := f.callsWithPrefix("ABC-VIC_"); n != 0 {
		t.Error("no further fetches should happen after a failure")
	}
}

func TestBadProgrammesAndDocumentsAreSkipped(t *testing.T) {
	cache := newCache(t)
	docs := emptyDays()
	docs[guide.DayURI("ABC-NSW", "2020-01-05")] = dayDoc(
		prog("garbage", "20200105110000 +1000", "BadStart"),
		`<programme start="20200105120000 +1000" stop="20200105130000 +1000"/>`,
		prog("20200105140000 +1000", "20200105150000 +1000", "Good"),
		`<channel id="upstream"/>`,
	)
	docs[guide.DayURI("ABC-NSW", "2020-01-06")] = "<tv><programme"
	f := &fakeFetcher{cache: cache, docs: docs}
	a := guide.NewAssembler(f, cache, guide.Options{Logger: discard()})

	g, err := a.Run(context.Background(), resolveABC(t, config.Channel{}), testWindow)
	if err != nil {
		t.Fatalf("Run should survive bad documents: %v", err)
	}
	if got := spans(g, 0); len(got) != 1 || got[0].title != "Good" {
		t.Errorf("expected only the good programme, got %v", got)
	}
}

func TestForcedOffsetAndChannelShift(t *testing.T) {
	cache := newCache(t)
	docs := emptyDays()
	docs[guide.DayURI("ABC-NSW", "2020-01-05")] = dayDoc(prog("20200105100000 +1000", "20200105110000 +1000", "A"))
	f := &fakeFetcher{cache: cache, docs: docs}
	forced := 8 * 3600
	a := guide.NewAssembler(f, cache, guide.Options{ForcedOffset: &forced, Logger: discard()})

	shift := 3600
	g, err := a.Run(context.Background(), resolveABC(t, config.Channel{TimeOffset: &shift}), testWindow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := spans(g, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 programme, got %v", got)
	}
	if got[0].start != "20200105110000 +0800" || got[0].stop != "20200105120000 +0800" {
		t.Errorf("expected 11:00-12:00 +0800, got %v", got[0])
	}
}

func TestPruneRemovesOlderDaysOfBothFeeds(t *testing.T) {
	cache := newCache(t)
	for _, uri := range []string{
		"ABC-NSW_2020-01-03.xml.gz",
		"ABC-NSW_2020-01-05.xml.gz",
		"ABC-VIC_2020-01-01.xml.gz",
		"SBS_2020-01-01.xml.gz",
	} {
		if err := cache.Save(uri, []byte("x"), "HTTP/1.1 200 OK\r\n"); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	a := guide.NewAssembler(&fakeFetcher{cache: cache}, cache, guide.Options{Logger: discard()})
	if err := a.Prune(resolveABC(t, config.Channel{})[0], "2020-01-05"); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	names, _ := cache.List()
	want := []string{"ABC-NSW_2020-01-05.xml.gz", "SBS_2020-01-01.xml.gz"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("after prune: %v", names)
	}
	if a.Counts().Pruned != 2 {
		t.Errorf("Pruned: expected 2, got %d", a.Counts().Pruned)
	}
}

func TestRecords(t *testing.T) {
	cache := newCache(t)
	docs := emptyDays()
	docs[guide.DayURI("ABC-NSW", "2020-01-05")] = dayDoc(prog("20200105100000 +1000", "20200105110000 +1000", "A"))
	a := guide.NewAssembler(&fakeFetcher{cache: cache, docs: docs}, cache, guide.Options{Logger: discard()})
	g, err := a.Run(context.Background(), resolveABC(t, config.Channel{}), testWindow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	recs := g.Records("run-1")
	if len(recs) != 1 || recs[0].ChannelID != "ABC-NSW" || recs[0].RunID != "run-1" {
		t.Fatalf("records: %+v", recs)
	}
	if recs[0].FirstDay != "2020-01-05" || len(recs[0].Programmes) != 1 || recs[0].Programmes[0].Start != "20200105100000 +1000" {
		t.Errorf("record contents: %+v", recs[0])
	}
}

// ─── End to end ───────────────────────────────────────────────────────────────

// guideServer serves a gzip'd catalogue and plain day files, all stamped
// with the catalogue tokens and a fixed Date, and answers conditional
// requests with 304.
type guideServer struct {
	mu       sync.Mutex
	requests []string
}

func (s *guideServer) handler(base *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.Path)
		s.mu.Unlock()

		w.Header().Set("Date", "Sun, 05 Jan 2020 09:00:00 GMT")
		if r.Header.Get("If-Modified-Since") != "" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/xmltv/")
		if name == "datalist.xml.gz" {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			zw.Write([]byte(catalogueXML(*base)))
			zw.Close()
			w.Header().Set("Last-Modified", "Sat, 04 Jan 2020 00:00:00 GMT")
			w.Write(buf.Bytes())
			return
		}
		// Day files are named FEED_YYYY-MM-DD.xml.gz.
		day := strings.TrimSuffix(name[strings.Index(name, "_")+1:], ".xml.gz")
		d, err := tvdate.Parse(tvdate.XMLTV, strings.ReplaceAll(day, "-", "")+"060000 +0000")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Last-Modified", d.Format(tvdate.RFC822))
		fmt.Fprint(w, dayDoc(prog(strings.ReplaceAll(day, "-", "")+"100000 +1000",
			strings.ReplaceAll(day, "-", "")+"110000 +1000", "News "+day)))
	}
}

func TestEndToEndAgainstHTTPServer(t *testing.T) {
	gs := &guideServer{}
	var base string
	srv := httptest.NewServer(gs.handler(&base))
	defer srv.Close()
	base = srv.URL + "/xmltv/"

	cache := newCache(t)
	now := time.Date(2020, 1, 5, 9, 0, 0, 0, time.UTC)
	sel := &mirror.Selector{Intn: func(int) int { return 0 }, Sleep: func(time.Duration) {}, Fatal: func(string) {}}
	newRun := func(at time.Time) (*guide.Assembler, *fetch.Client) {
		c := fetch.NewClient(cache, sel, fetch.Options{
			HTTPClient: srv.Client(),
			Now:        func() time.Time { return at },
			Logger:     discard(),
		})
		return guide.NewAssembler(c, cache, guide.Options{Logger: discard()}), c
	}

	a, _ := newRun(now)
	cat, err := a.FetchCatalogue(context.Background(), []string{base}, "datalist.xml.gz")
	if err != nil {
		t.Fatalf("FetchCatalogue: %v", err)
	}
	chans, _, err := guide.ResolveChannels(cat, []config.Channel{{OztivoID: "ABC-NSW"}}, discard())
	if err != nil {
		t.Fatalf("ResolveChannels: %v", err)
	}
	g, err := a.Run(context.Background(), chans, testWindow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if g.Programmes() != 3 {
		t.Errorf("expected one programme per primary day (3), got %d", g.Programmes())
	}
	// catalogue + 3 primary days + 1 fillin day
	if len(gs.requests) != 5 {
		t.Errorf("first run: expected 5 requests, got %v", gs.requests)
	}

	// Two hours later: every day file matches its token and is read from
	// cache, the catalogue is revalidated.
	gs.requests = nil
	a, _ = newRun(now.Add(2 * time.Hour))
	cat, err = a.FetchCatalogue(context.Background(), []string{base}, "datalist.xml.gz")
	if err != nil {
		t.Fatalf("second FetchCatalogue: %v", err)
	}
	chans, _, _ = guide.ResolveChannels(cat, []config.Channel{{OztivoID: "ABC-NSW"}}, discard())
	g, err = a.Run(context.Background(), chans, testWindow)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(gs.requests) != 1 || gs.requests[0] != "/xmltv/datalist.xml.gz" {
		t.Errorf("second run: expected only the catalogue request, got %v", gs.requests)
	}
	if g.Counts.NotModified != 1 || g.Counts.CacheValid != 4 || g.Programmes() != 3 {
		t.Errorf("second run counts: %+v programmes=%d", g.Counts, g.Programmes())
	}
}
