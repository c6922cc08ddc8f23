// Package fetch implements the HTTP side of the grabber. Every request goes
// through the freshness check first, then mirror selection, then the shared
// rate limiter. Responses are written into the on-disk cache; callers read
// the payload back from there. There are no retries: a failed request is a
// failed run.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/derickschaefer/tvguidefetch/internal/httpcache"
	"github.com/derickschaefer/tvguidefetch/internal/mirror"
)

const (
	// Name, Version and Description identify the grabber to servers and
	// to XMLTV front ends.
	Name        = "TvGuideFetch"
	Version     = "1.1"
	Description = "tv_grab_au_tvguide for www.oztivo.net"

	DefaultUserAgent = Name + "/" + Version + " (" + Description + ")"
	acceptEncoding   = "gzip, deflate, x-gzip, x-deflate, identity"
	defaultTimeout   = 60 * time.Second
)

// Outcome reports what Fetch did for a URI.
type Outcome int

const (
	// Trusted: the cached copy was recent enough; no request was made.
	Trusted Outcome = iota
	// NotModified: the server confirmed the cached copy.
	NotModified
	// Fetched: a new body was stored.
	Fetched
)

func (o Outcome) String() string {
	switch o {
	case Trusted:
		return "Recently cached"
	case NotModified:
		return "Not modified"
	}
	return "Fetched"
}

// StatusError is returned for any response that is neither 2xx nor 304.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: HTTP %s", e.URL, e.Status)
}

// Options configures a Client. Zero values pick defaults.
type Options struct {
	Timeout   time.Duration
	Rate      float64 // requests per second across all mirrors; <= 0 disables
	UserAgent string
	Username  string
	Password  string
	Logger    *slog.Logger

	// HTTPClient overrides the transport; Timeout is ignored when set.
	// Its CheckRedirect is replaced so redirects are never followed.
	HTTPClient *http.Client
	// Now overrides the clock used for freshness decisions.
	Now func() time.Time
}

// Client fetches guide resources into a cache.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *httpcache.Cache
	selector   *mirror.Selector
	now        func() time.Time
	userAgent  string
	username   string
	password   string
	logger     *slog.Logger
}

// NewClient creates a Client writing into cache and choosing servers with
// selector.
func NewClient(cache *httpcache.Cache, selector *mirror.Selector, opts Options) *Client {
	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	} else {
		hc.Timeout = opts.Timeout
		if hc.Timeout <= 0 {
			hc.Timeout = defaultTimeout
		}
	}
	// A 3xx other than 304 is a failed fetch, not something to chase.
	hc.CheckRedirect = noRedirects
	limit := rate.Inf
	burst := 1
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
		if b := int(opts.Rate); b > 1 {
			burst = b
		}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		httpClient: &hc,
		limiter:    rate.NewLimiter(limit, burst),
		cache:      cache,
		selector:   selector,
		now:        opts.Now,
		userAgent:  opts.UserAgent,
		username:   opts.Username,
		password:   opts.Password,
		logger:     opts.Logger,
	}
}

// Fetch brings uri up to date in the cache, requesting it from one of bases
// unless the cached copy can be trusted as is.
func (c *Client) Fetch(ctx context.Context, bases []string, uri string) (Outcome, error) {
	h, err := c.cache.Header(uri)
	found := err == nil
	if err != nil && !errors.Is(err, httpcache.ErrNotCached) {
		return 0, err
	}

	decision := httpcache.Decide(h, found, c.now())
	if decision.Action == httpcache.TrustCache {
		c.logger.Info(Trusted.String(), "uri", uri)
		return Trusted, nil
	}

	reqURL := joinURL(c.selector.Select(bases), uri)
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	c.logger.Debug("guide request", "url", reqURL, "check", decision.Action.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	decision.Apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading body: %w", err)
	}
	c.logger.Debug("guide response", "status", resp.StatusCode, "bytes", len(body))

	outcome, ok := httpcache.Interpret(resp.StatusCode)
	if !ok {
		return 0, &StatusError{URL: reqURL, Code: resp.StatusCode, Status: resp.Status}
	}
	if outcome == httpcache.NotModified {
		c.logger.Info(NotModified.String(), "uri", uri)
		return NotModified, nil
	}

	if err := c.cache.Save(uri, body, httpcache.FormatHeader(resp, c.now())); err != nil {
		return 0, err
	}
	c.logger.Info(Fetched.String(), "uri", uri)
	return Fetched, nil
}

func noRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func joinURL(base, uri string) string {
	if base == "" || strings.HasSuffix(base, "/") {
		return base + uri
	}
	return base + "/" + uri
}
