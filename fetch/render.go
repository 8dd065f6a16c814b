package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/lumina/core"
)

// DefaultRenderTimeout bounds a rendered fetch, which waits for the
// network to go idle.
const DefaultRenderTimeout = 30 * time.Second

// RenderFetcher asks a headless browser service for the settled DOM of a
// page. The service speaks the browserless /content contract: a JSON POST
// naming the URL and wait condition, answered with the serialized HTML.
type RenderFetcher struct {
	endpoint  string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxBytes  int64
	logger    *slog.Logger
}

var _ Fetcher = (*RenderFetcher)(nil)

type renderRequest struct {
	URL         string     `json:"url"`
	GotoOptions renderGoto `json:"gotoOptions"`
	UserAgent   string     `json:"userAgent,omitempty"`
}

type renderGoto struct {
	WaitUntil string `json:"waitUntil"`
	Timeout   int64  `json:"timeout"`
}

// NewRenderFetcher creates a fetcher for the rendering service at endpoint,
// e.g. "http://localhost:3000/content".
func NewRenderFetcher(endpoint string, opts ...Option) (*RenderFetcher, error) {
	if err := ValidateURL(endpoint); err != nil {
		return nil, fmt.Errorf("%w: render endpoint: %w", core.ErrConfiguration, err)
	}
	o, err := buildOptions("render-fetcher", append([]Option{WithTimeout(DefaultRenderTimeout)}, opts...))
	if err != nil {
		return nil, err
	}
	return &RenderFetcher{
		endpoint:  strings.TrimSuffix(endpoint, "/"),
		client:    o.client,
		limiter:   o.limiter,
		userAgent: o.userAgent,
		maxBytes:  o.maxBytes,
		logger:    o.logger,
	}, nil
}

// Fetch renders rawURL and returns the resulting DOM.
func (f *RenderFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	if err := wait(ctx, f.limiter); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(renderRequest{
		URL: rawURL,
		GotoOptions: renderGoto{
			WaitUntil: "networkidle0",
			Timeout:   f.client.Timeout.Milliseconds(),
		},
		UserAgent: f.userAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetch, err)
	}
	req.Header.Set("Content-Type", "application/json")

	f.logger.Debug("rendering", "url", rawURL)
	start := time.Now()
	body, _, err := do(f.client, req, f.maxBytes)
	if err != nil {
		f.logger.Warn("render failed", "url", rawURL, "err", err)
		return nil, err
	}
	f.logger.Debug("rendered", "url", rawURL, "bytes", len(body), "elapsed", time.Since(start))
	return &Page{URL: rawURL, FinalURL: rawURL, HTML: body, Rendered: true}, nil
}
