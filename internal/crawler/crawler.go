package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const (
	ctxKeyURL  = "final_url"
	ctxKeyBody = "body"
)

// Page is a fetched article
type Page struct {
	URL      string // final URL after redirects
	Body     []byte
	Duration time.Duration
}

// Fetcher retrieves the page at a URL, following redirects
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// CollyFetcher fetches pages with a synchronous colly collector
type CollyFetcher struct {
	collector *colly.Collector
}

// NewCollyFetcher creates a fetcher with the given per-request timeout
func NewCollyFetcher(timeout time.Duration, userAgent string) *CollyFetcher {
	f := &CollyFetcher{}
	f.setupColly(timeout, userAgent)
	return f
}

// setupColly configures the Colly collector with callbacks
func (f *CollyFetcher) setupColly(timeout time.Duration, userAgent string) {
	f.collector = colly.NewCollector(
		colly.UserAgent(userAgent),
		// The random start URL and popular hub articles are fetched many times
		colly.AllowURLRevisit(),
	)

	f.collector.SetRequestTimeout(timeout)

	// Capture the body and resolved URL into the request context
	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxKeyURL, r.Request.URL.String())
		r.Ctx.Put(ctxKeyBody, r.Body)
		logrus.Debugf("Fetched %s (status=%d, %d bytes)", r.Request.URL, r.StatusCode, len(r.Body))
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Request != nil {
			logrus.Debugf("OnError called for %s: %v (status: %d)", r.Request.URL, err, r.StatusCode)
			return
		}
		logrus.Debugf("OnError called with nil response: %v", err)
	})
}

// Fetch performs a GET and returns the body and the URL it resolved to
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	reqCtx := colly.NewContext()
	if err := f.collector.Request(http.MethodGet, url, nil, reqCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	body, ok := reqCtx.GetAny(ctxKeyBody).([]byte)
	if !ok {
		return nil, fmt.Errorf("failed to fetch %s: no response captured", url)
	}

	finalURL := reqCtx.Get(ctxKeyURL)
	if finalURL == "" {
		finalURL = url
	}

	return &Page{
		URL:      finalURL,
		Body:     body,
		Duration: time.Since(start),
	}, nil
}
