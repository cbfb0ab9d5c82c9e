package crawler

import (
	"context"
	"time"

	"github.com/masahif/tiendacrawl/internal/model"
)

// Crawler runs one catalog crawl from the root page
type Crawler interface {
	Run(ctx context.Context) (*model.CrawlResult, error)
	Close()
}

// Fetcher issues a single GET. Implementations return *FetchError on failure.
type Fetcher interface {
	GetWithTimeout(ctx context.Context, url string, timeout time.Duration) (*HTTPResponse, error)
}

// Materializer stores a remote image locally and returns its path. cached
// reports that the file already existed and nothing was fetched.
type Materializer interface {
	Materialize(ctx context.Context, imageURL, owner string) (path string, cached bool, err error)
}
