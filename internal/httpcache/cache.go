// Package httpcache stores fetched resources on disk and decides whether a
// resource needs to be fetched again.
//
// Each URI maps to two files in the cache directory: the raw response body
// under the URI itself and the response header text under URI + ".header".
// The directory is assumed to be owned by a single running process.
package httpcache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// HeaderSuffix is appended to a URI to name its header file.
const HeaderSuffix = ".header"

var (
	// ErrNotCached is returned when a URI has no cached copy.
	ErrNotCached = errors.New("httpcache: not cached")
	// ErrBadName is returned for URIs that would escape the cache directory.
	ErrBadName = errors.New("httpcache: invalid cache name")
)

// Cache is a directory of cached responses.
type Cache struct {
	dir string
}

// New opens (creating if necessary) the cache directory.
func New(dir string) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("httpcache: empty cache path")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) path(uri string) (string, error) {
	if uri == "" || uri != filepath.Base(uri) || uri == "." || uri == ".." {
		return "", fmt.Errorf("%w: %q", ErrBadName, uri)
	}
	return filepath.Join(c.dir, uri), nil
}

// Header loads the header file for uri.
func (c *Cache) Header(uri string) (Header, error) {
	p, err := c.path(uri)
	if err != nil {
		return Header{}, err
	}
	data, err := os.ReadFile(p + HeaderSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return Header{}, ErrNotCached
	}
	if err != nil {
		return Header{}, fmt.Errorf("reading header %s: %w", uri, err)
	}
	return ParseHeader(string(data)), nil
}

// Raw returns the stored body bytes exactly as received.
func (c *Cache) Raw(uri string) ([]byte, error) {
	p, err := c.path(uri)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}
	return data, nil
}

// Contents returns the stored body, decoded according to the recorded
// Content-Encoding.
func (c *Cache) Contents(uri string) ([]byte, error) {
	raw, err := c.Raw(uri)
	if err != nil {
		return nil, err
	}
	h, err := c.Header(uri)
	if err != nil && !errors.Is(err, ErrNotCached) {
		return nil, err
	}
	body, err := Decode(h.Get("Content-Encoding"), raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", uri, err)
	}
	return body, nil
}

// Save writes body and header text for uri, replacing any previous copy.
func (c *Cache) Save(uri string, body []byte, header string) error {
	p, err := c.path(uri)
	if err != nil {
		return err
	}
	if err := writeFile(p, body); err != nil {
		return fmt.Errorf("saving %s: %w", uri, err)
	}
	if err := writeFile(p+HeaderSuffix, []byte(header)); err != nil {
		return fmt.Errorf("saving %s header: %w", uri, err)
	}
	return nil
}

// writeFile replaces path atomically via a temp file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// List returns the cached URIs in sorted order. Header files are omitted.
func (c *Cache) List() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, HeaderSuffix) || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes a cached URI and its header file. Missing files are not an
// error.
func (c *Cache) Remove(uri string) error {
	p, err := c.path(uri)
	if err != nil {
		return err
	}
	for _, f := range []string{p, p + HeaderSuffix} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

// Prune removes every cached URI that starts with prefix and sorts before
// prefix+bound. Day files are named prefix + "YYYY-MM-DD" + suffix, so a
// bound of today's date removes strictly older days. Removed names are
// returned in sorted order.
func (c *Cache) Prune(prefix, bound string) ([]string, error) {
	names, err := c.List()
	if err != nil {
		return nil, err
	}
	limit := prefix + bound
	var removed []string
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) || name >= limit {
			continue
		}
		if err := c.Remove(name); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// ─── Content decoding ─────────────────────────────────────────────────────────

var gzipMagic = []byte{0x1f, 0x8b}

// Decode inflates raw according to a Content-Encoding value. The deflate
// encodings accept zlib, gzip or bare deflate streams since servers disagree
// on what "deflate" means. A gzip stream served without an encoding (a
// plain .gz file) is also inflated.
func Decode(encoding string, raw []byte) ([]byte, error) {
	var (
		r   io.Reader
		err error
	)
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		r, err = gzip.NewReader(bytes.NewReader(raw))
	case "deflate", "x-deflate":
		switch {
		case bytes.HasPrefix(raw, gzipMagic):
			r, err = gzip.NewReader(bytes.NewReader(raw))
		default:
			r, err = zlib.NewReader(bytes.NewReader(raw))
			if err != nil {
				r, err = flate.NewReader(bytes.NewReader(raw)), nil
			}
		}
	default:
		if !bytes.HasPrefix(raw, gzipMagic) {
			return raw, nil
		}
		r, err = gzip.NewReader(bytes.NewReader(raw))
	}
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
