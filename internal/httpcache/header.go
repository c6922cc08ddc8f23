package httpcache

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/tvdate"
)

// StatusKey is the header key under which the response status line is kept.
// A line "HTTP/1.1 200 OK" is stored as StatusKey → "1.1 200 OK".
const StatusKey = "HTTP"

// Header is the parsed form of a ".header" sibling file. Lookups ignore
// case; when a key repeats the first value wins.
type Header struct {
	keys   []string
	values []string
}

// ParseHeader reads header text as written by FormatHeader. Lines are
// "Key: value" pairs; a line starting with "HTTP/" is the status line.
// Trailing carriage returns are stripped and unparseable lines skipped.
func ParseHeader(text string) Header {
	var h Header
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, StatusKey+"/") {
			h.add(StatusKey, line[len(StatusKey)+1:])
			continue
		}
		i := strings.Index(line, ": ")
		if i <= 0 {
			continue
		}
		h.add(line[:i], line[i+2:])
	}
	return h
}

func (h *Header) add(key, value string) {
	h.keys = append(h.keys, key)
	h.values = append(h.values, value)
}

// Get returns the value for key, or "" when absent.
func (h Header) Get(key string) string {
	v, _ := h.Lookup(key)
	return v
}

// Lookup reports whether key is present.
func (h Header) Lookup(key string) (string, bool) {
	for i, k := range h.keys {
		if strings.EqualFold(k, key) {
			return h.values[i], true
		}
	}
	return "", false
}

// Len is the number of stored lines, including the status line.
func (h Header) Len() int { return len(h.keys) }

// Date returns the recorded fetch timestamp.
func (h Header) Date() (tvdate.Date, error) {
	return tvdate.Parse(tvdate.RFC822, h.Get("Date"))
}

// LastModified returns the server's modification token as an instant.
func (h Header) LastModified() (tvdate.Date, error) {
	return tvdate.Parse(tvdate.RFC822, h.Get("Last-Modified"))
}

// FormatHeader renders a response's status line and headers as header text.
// If the server sent no Date, fetchedAt is recorded in its place so the
// freshness check always has a timestamp to work from.
func FormatHeader(resp *http.Response, fetchedAt time.Time) string {
	var b strings.Builder
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	b.WriteString(proto + " " + resp.Status + "\r\n")

	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			b.WriteString(k + ": " + v + "\r\n")
		}
	}
	if resp.Header.Get("Date") == "" {
		b.WriteString("Date: " + tvdate.FromTime(fetchedAt).Format(tvdate.RFC822) + "\r\n")
	}
	return b.String()
}
