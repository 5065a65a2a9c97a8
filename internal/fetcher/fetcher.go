// Package fetcher downloads search result pages and turns them into listings.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"kpwatch/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses search result pages.
type Fetcher struct {
	client    HTTPClient
	timeout   time.Duration
	userAgent string
	now       func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithClock overrides the clock used to judge feed item recency.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    client,
		timeout:   30 * time.Second,
		userAgent: "Mozilla/5.0",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the page at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Listings fetches the search page and parses every listing currently
// displayed on it, unfiltered and in page order.
func (f *Fetcher) Listings(ctx context.Context, search model.Search) ([]model.Listing, error) {
	body, err := f.Fetch(ctx, search.URL)
	if err != nil {
		return nil, err
	}

	switch search.Source {
	case model.SourceRSS:
		return ParseFeed(body, f.now())
	case model.SourceHTML, "":
		return ParseListings(bytes.NewReader(body), search.URL)
	}
	return nil, fmt.Errorf("unknown source %q", search.Source)
}
