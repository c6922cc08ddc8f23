package httpcache_test

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/derickschaefer/tvguidefetch/internal/httpcache"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func newCache(t *testing.T) *httpcache.Cache {
	t.Helper()
	c, err := httpcache.New(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write([]byte(s))
	w.Close()
	return buf.Bytes()
}

var now = time.Date(2020, 1, 5, 12, 0, 0, 0, time.UTC)

func headerAt(t time.Time, extra string) httpcache.Header {
	text := "HTTP/1.1 200 OK\r\nDate: " + t.UTC().Format(http.TimeFormat) + "\r\n" + extra
	return httpcache.ParseHeader(text)
}

// ─── Header ───────────────────────────────────────────────────────────────────

func TestParseHeader(t *testing.T) {
	h := httpcache.ParseHeader("HTTP/1.1 200 OK\r\nContent-Type: text/xml\r\nEtag: \"abc\"\r\nX-Dup: one\r\nX-Dup: two\r\ngarbage\r\n\r\n")
	if got := h.Get(httpcache.StatusKey); got != "1.1 200 OK" {
		t.Errorf("status: got %q", got)
	}
	if got := h.Get("content-type"); got != "text/xml" {
		t.Errorf("case-insensitive get: got %q", got)
	}
	if got := h.Get("ETag"); got != `"abc"` {
		t.Errorf("ETag lookup via canonical Etag: got %q", got)
	}
	if got := h.Get("X-Dup"); got != "one" {
		t.Errorf("first value should win, got %q", got)
	}
	if _, ok := h.Lookup("garbage"); ok {
		t.Error("line without separator should be skipped")
	}
	if h.Len() != 5 {
		t.Errorf("Len: expected 5, got %d", h.Len())
	}
}

func TestFormatHeaderRoundTrip(t *testing.T) {
	resp := &http.Response{
		Proto:  "HTTP/1.1",
		Status: "200 OK",
		Header: http.Header{
			"Last-Modified":    {"Sun, 05 Jan 2020 08:00:00 GMT"},
			"Etag":             {`"v1"`},
			"Content-Encoding": {"gzip"},
			"Date":             {"Sun, 05 Jan 2020 11:00:00 GMT"},
		},
	}
	text := httpcache.FormatHeader(resp, now)
	if !strings.HasPrefix(text, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("status line missing: %q", text)
	}
	h := httpcache.ParseHeader(text)
	for k, v := range resp.Header {
		if got := h.Get(k); got != v[0] {
			t.Errorf("%s: expected %q, got %q", k, v[0], got)
		}
	}
	if strings.Count(text, "Date:") != 1 {
		t.Error("server Date must not be duplicated")
	}
}

func TestFormatHeaderSynthesisesDate(t *testing.T) {
	resp := &http.Response{Proto: "HTTP/1.0", Status: "200 OK", Header: http.Header{}}
	h := httpcache.ParseHeader(httpcache.FormatHeader(resp, now))
	if got := h.Get("Date"); got != "Sun, 05 Jan 2020 12:00:00 GMT" {
		t.Errorf("synthesised Date: got %q", got)
	}
	if got := h.Get(httpcache.StatusKey); got != "1.0 200 OK" {
		t.Errorf("status: got %q", got)
	}
}

// ─── Cache files ──────────────────────────────────────────────────────────────

func TestSaveAndLoad(t *testing.T) {
	c := newCache(t)
	if _, err := c.Header("a.xml"); !errors.Is(err, httpcache.ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
	if err := c.Save("a.xml", []byte("<tv/>"), "HTTP/1.1 200 OK\r\nDate: x\r\n"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	h, err := c.Header("a.xml")
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	if h.Get("Date") != "x" {
		t.Errorf("Date: got %q", h.Get("Date"))
	}
	body, err := c.Contents("a.xml")
	if err != nil || string(body) != "<tv/>" {
		t.Errorf("Contents: %q %v", body, err)
	}
}

func TestContentsDecodesEncoding(t *testing.T) {
	c := newCache(t)
	c.Save("g.xml.gz", gz(t, "<tv>gzip</tv>"), "Content-Encoding: x-gzip\r\n")

	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	zw.Write([]byte("<tv>zlib</tv>"))
	zw.Close()
	c.Save("z.xml", zbuf.Bytes(), "Content-Encoding: deflate\r\n")

	c.Save("plain.xml.gz", gz(t, "<tv>sniffed</tv>"), "Content-Type: application/x-gzip\r\n")

	for uri, want := range map[string]string{
		"g.xml.gz":     "<tv>gzip</tv>",
		"z.xml":        "<tv>zlib</tv>",
		"plain.xml.gz": "<tv>sniffed</tv>",
	} {
		got, err := c.Contents(uri)
		if err != nil {
			t.Errorf("%s: %v", uri, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s: expected %q, got %q", uri, want, got)
		}
	}
}

func TestContentsCorruptGzipFails(t *testing.T) {
	c := newCache(t)
	c.Save("bad.gz", []byte("not gzip"), "Content-Encoding: gzip\r\n")
	if _, err := c.Contents("bad.gz"); err == nil {
		t.Error("expected decode failure")
	}
}

func TestListAndPrune(t *testing.T) {
	c := newCache(t)
	for _, n := range []string{
		"abc_2020-01-03.xml.gz",
		"abc_2020-01-04.xml.gz",
		"abc_2020-01-05.xml.gz",
		"abcd_2020-01-01.xml.gz",
		"datalist.xml.gz",
	} {
		c.Save(n, []byte("x"), "Date: x\r\n")
	}
	names, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 5 || names[0] != "abc_2020-01-03.xml.gz" {
		t.Errorf("List: got %v", names)
	}

	removed, err := c.Prune("abc_", "2020-01-05")
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	want := []string{"abc_2020-01-03.xml.gz", "abc_2020-01-04.xml.gz"}
	if !reflect.DeepEqual(removed, want) {
		t.Errorf("Prune removed %v, want %v", removed, want)
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), "abc_2020-01-03.xml.gz.header")); !os.IsNotExist(err) {
		t.Error("header sibling should be removed too")
	}
	names, _ = c.List()
	if len(names) != 3 {
		t.Errorf("after prune: %v", names)
	}
}

func TestRejectsPathNames(t *testing.T) {
	c := newCache(t)
	for _, bad := range []string{"", "../x", "a/b", ".."} {
		if err := c.Save(bad, nil, ""); !errors.Is(err, httpcache.ErrBadName) {
			t.Errorf("Save(%q): expected ErrBadName, got %v", bad, err)
		}
	}
}

// ─── Oracle ───────────────────────────────────────────────────────────────────

func TestDecide(t *testing.T) {
	lm := "Last-Modified: Sat, 04 Jan 2020 00:00:00 GMT\r\n"
	cases := []struct {
		name  string
		h     httpcache.Header
		found bool
		want  httpcache.Action
	}{
		{"nothing cached", httpcache.Header{}, false, httpcache.Unconditional},
		{"fetched 59m ago", headerAt(now.Add(-59*time.Minute), lm), true, httpcache.TrustCache},
		{"fetched exactly 1h ago", headerAt(now.Add(-time.Hour), lm), true, httpcache.Conditional},
		{"fetched 2h ago", headerAt(now.Add(-2*time.Hour), lm), true, httpcache.Conditional},
		{"old without validators", headerAt(now.Add(-2*time.Hour), ""), true, httpcache.Unconditional},
		{"bad date", httpcache.ParseHeader("Date: yesterday\r\n" + lm), true, httpcache.Conditional},
	}
	for _, c := range cases {
		if got := httpcache.Decide(c.h, c.found, now).Action; got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestDecideAppliesValidators(t *testing.T) {
	h := headerAt(now.Add(-2*time.Hour), "Last-Modified: Sat, 04 Jan 2020 00:00:00 GMT\r\nEtag: \"v7\"\r\n")
	d := httpcache.Decide(h, true, now)
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	d.Apply(req)
	if got := req.Header.Get("If-Modified-Since"); got != "Sat, 04 Jan 2020 00:00:00 GMT" {
		t.Errorf("If-Modified-Since: %q", got)
	}
	if got := req.Header.Get("If-None-Match"); got != `"v7"` {
		t.Errorf("If-None-Match: %q", got)
	}
}

func TestInterpret(t *testing.T) {
	if o, ok := httpcache.Interpret(304); !ok || o != httpcache.NotModified {
		t.Error("304 should be NotModified")
	}
	for _, s := range []int{200, 203, 206} {
		if o, ok := httpcache.Interpret(s); !ok || o != httpcache.Replace {
			t.Errorf("%d should be Replace", s)
		}
	}
	for _, s := range []int{301, 404, 500} {
		if _, ok := httpcache.Interpret(s); ok {
			t.Errorf("%d should fail", s)
		}
	}
}

func TestCheckDay(t *testing.T) {
	h := httpcache.ParseHeader("Last-Modified: Sat, 04 Jan 2020 00:00:00 GMT\r\n")
	cases := []struct {
		token string
		h     httpcache.Header
		found bool
		want  httpcache.DayState
	}{
		{"20200104100000 +1000", h, true, httpcache.DayValid},
		{"20200104000000 +0000", h, true, httpcache.DayValid},
		{"20200104000001 +0000", h, true, httpcache.DayStale},
		{"garbage", h, true, httpcache.DayInvalidDates},
		{"20200104000000 +0000", httpcache.ParseHeader("Date: x\r\n"), true, httpcache.DayNotCached},
		{"20200104000000 +0000", httpcache.ParseHeader("Last-Modified: soon\r\n"), true, httpcache.DayInvalidDates},
		{"20200104000000 +0000", httpcache.Header{}, false, httpcache.DayNotCached},
	}
	for _, c := range cases {
		if got := httpcache.CheckDay(c.token, c.h, c.found); got != c.want {
			t.Errorf("CheckDay(%q): expected %v, got %v", c.token, c.want, got)
		}
	}
}
