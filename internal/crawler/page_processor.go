package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/masahif/tiendacrawl/internal/parser"
)

// DocumentLoader fetches a page and parses it into a parser.Document whose
// links resolve against the site base.
type DocumentLoader struct {
	fetcher Fetcher
	pacer   *Pacer
	base    *url.URL
}

// NewDocumentLoader creates a loader. pacer may be nil.
func NewDocumentLoader(fetcher Fetcher, pacer *Pacer, base *url.URL) *DocumentLoader {
	return &DocumentLoader{
		fetcher: fetcher,
		pacer:   pacer,
		base:    base,
	}
}

// Load fetches pageURL and parses the body. Fetch failures are returned as
// *FetchError.
func (l *DocumentLoader) Load(ctx context.Context, pageURL string, timeout time.Duration) (*parser.Document, error) {
	if l.pacer != nil {
		if err := l.pacer.WaitRequest(ctx, pageURL); err != nil {
			return nil, err
		}
	}

	resp, err := l.fetcher.GetWithTimeout(ctx, pageURL, timeout)
	if err != nil {
		return nil, err
	}

	slog.Debug("Fetched page", "url", pageURL, "status", resp.StatusCode, "bytes", len(resp.Body),
		"ttfb", resp.Metrics.TTFB, "download_time", resp.Metrics.DownloadTime)

	doc, err := parser.Parse(resp.Body, resp.ContentType, l.base)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}
