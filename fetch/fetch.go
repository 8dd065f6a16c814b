// Package fetch retrieves raw page markup for ingestion.
//
// Script-driven pages only have their content after the browser runs, so
// the preferred source is a rendering service that returns the settled DOM.
// FallbackFetcher tries it first and falls back to a plain GET.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/lumina/core"
)

const (
	// DefaultUserAgent mimics a desktop browser; some sites refuse
	// unknown agents outright.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// DefaultTimeout bounds a single plain fetch.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxBytes caps the size of a fetched document.
	DefaultMaxBytes = 10 << 20
)

// Page is fetched markup.
type Page struct {
	// URL is the requested address.
	URL string
	// FinalURL is the address after redirects.
	FinalURL string
	// HTML is the document markup.
	HTML string
	// Rendered is true when scripts ran before the markup was captured.
	Rendered bool
}

// Fetcher retrieves a page. Failures wrap core.ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// HTTPFetcher performs plain GET requests.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxBytes  int64
	logger    *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// Option configures an HTTPFetcher or RenderFetcher.
type Option func(*options) error

type options struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxBytes  int64
	logger    *slog.Logger
}

// WithHTTPClient sets the underlying client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) error {
		if client == nil {
			return fmt.Errorf("%w: nil http client", core.ErrConfiguration)
		}
		o.client = client
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.client = &http.Client{Timeout: d}
		return nil
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given
// burst. Zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) error {
		if rps < 0 || (rps > 0 && burst < 1) {
			return fmt.Errorf("%w: invalid rate limit %v/%d", core.ErrConfiguration, rps, burst)
		}
		if rps == 0 {
			o.limiter = nil
			return nil
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) error {
		o.userAgent = ua
		return nil
	}
}

// WithMaxBytes caps the response size.
func WithMaxBytes(n int64) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("%w: max bytes must be positive", core.ErrConfiguration)
		}
		o.maxBytes = n
		return nil
	}
}

// WithLogger sets the logger. If nil, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

func buildOptions(component string, opts []Option) (*options, error) {
	o := &options{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		maxBytes:  DefaultMaxBytes,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", component)
	return o, nil
}

// NewHTTPFetcher creates a plain HTTP fetcher.
func NewHTTPFetcher(opts ...Option) (*HTTPFetcher, error) {
	o, err := buildOptions("http-fetcher", opts)
	if err != nil {
		return nil, err
	}
	return &HTTPFetcher{
		client:    o.client,
		limiter:   o.limiter,
		userAgent: o.userAgent,
		maxBytes:  o.maxBytes,
		logger:    o.logger,
	}, nil
}

// Fetch GETs rawURL and returns the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	if err := wait(ctx, f.limiter); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	f.logger.Debug("fetching", "url", rawURL)
	body, finalURL, err := do(f.client, req, f.maxBytes)
	if err != nil {
		f.logger.Warn("fetch failed", "url", rawURL, "err", err)
		return nil, err
	}
	return &Page{URL: rawURL, FinalURL: finalURL, HTML: body}, nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrFetch, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", core.ErrFetch, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", core.ErrFetch, rawURL)
	}
	return nil
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", core.ErrFetch, err)
	}
	return nil
}

// do executes req and reads at most maxBytes of a 2xx response.
func do(client *http.Client, req *http.Request, maxBytes int64) (string, string, error) {
	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", core.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("%w: %s returned %s", core.ErrFetch, req.URL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return "", "", fmt.Errorf("%w: reading body: %w", core.ErrFetch, err)
	}
	return string(data), resp.Request.URL.String(), nil
}

// FallbackFetcher tries each fetcher in order and returns the first page
// with a non-blank body.
type FallbackFetcher struct {
	fetchers []Fetcher
	logger   *slog.Logger
}

var _ Fetcher = (*FallbackFetcher)(nil)

// NewFallbackFetcher chains fetchers, most capable first.
func NewFallbackFetcher(fetchers ...Fetcher) *FallbackFetcher {
	return &FallbackFetcher{
		fetchers: fetchers,
		logger:   slog.Default().With("component", "fallback-fetcher"),
	}
}

// Fetch returns the first successful page. The error of the last attempt
// is returned when all fail.
func (f *FallbackFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if len(f.fetchers) == 0 {
		return nil, fmt.Errorf("%w: no fetchers configured", core.ErrConfiguration)
	}
	var lastErr error
	for i, fetcher := range f.fetchers {
		page, err := fetcher.Fetch(ctx, rawURL)
		if err == nil && strings.TrimSpace(page.HTML) != "" {
			return page, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: empty document from %s", core.ErrFetch, rawURL)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i < len(f.fetchers)-1 {
			f.logger.Warn("fetch attempt failed, falling back", "url", rawURL, "attempt", i+1, "err", err)
		}
	}
	return nil, lastErr
}
