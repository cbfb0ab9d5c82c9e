// Package crawler provides the catalog crawl pipeline.
// It walks the paginated product listing one page at a time, claims every
// new item link exactly once, extracts a product record per item, stores the
// item's images locally and paces every request to the origin.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/masahif/tiendacrawl/internal/config"
	"github.com/masahif/tiendacrawl/internal/model"
	"github.com/masahif/tiendacrawl/internal/parser"
)

// Reasons a run stopped walking catalog pages
const (
	StopNoMorePages = "no_more_pages"
	StopMaxPages    = "max_pages"
	StopCycle       = "cycle"
	StopError       = "error"
)

// Coordinator drives one crawl run. It owns the seen set, the visited page
// set and the result buffer; none of them are shared, so a Coordinator must
// not be used from more than one goroutine.
type Coordinator struct {
	config       *config.CrawlConfig
	httpClient   *HTTPClient
	loader       *DocumentLoader
	materializer Materializer
	pacer        *Pacer
	robots       *RobotsGate
	filter       *URLFilter
	fields       parser.FieldChains
	rootPath     string

	seen    *SeenSet
	visited map[string]struct{}
	result  *model.CrawlResult
}

var _ Crawler = (*Coordinator)(nil)

// Option customizes a Coordinator
type Option func(*Coordinator)

// WithFieldChains overrides the product field extraction chains
func WithFieldChains(fields parser.FieldChains) Option {
	return func(c *Coordinator) { c.fields = fields }
}

// WithMaterializer replaces the image materializer
func WithMaterializer(m Materializer) Option {
	return func(c *Coordinator) { c.materializer = m }
}

// NewCoordinator creates a coordinator for cfg. Every call returns an
// independent run with its own state.
func NewCoordinator(cfg *config.CrawlConfig, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	root, err := url.Parse(cfg.CatalogURL())
	if err != nil {
		return nil, fmt.Errorf("invalid catalog path: %w", err)
	}

	filter, err := NewURLFilter(cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	httpClient := NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout)
	pacer := NewPacer(cfg.ItemDelay, cfg.PageDelay, cfg.RequestDelay)

	c := &Coordinator{
		config:       cfg,
		httpClient:   httpClient,
		loader:       NewDocumentLoader(httpClient, pacer, base),
		materializer: NewImageMaterializer(httpClient, pacer, cfg.ImageDir, cfg.ImageTimeout),
		pacer:        pacer,
		robots:       NewRobotsGate(httpClient, pacer, cfg.UserAgent, cfg.RequestTimeout, cfg.RespectRobots),
		filter:       filter,
		fields:       parser.DefaultFieldChains(),
		rootPath:     root.Path,
		seen:         NewSeenSet(),
		visited:      make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Close releases idle HTTP connections
func (c *Coordinator) Close() {
	c.httpClient.Close()
}

// Run walks the catalog from its root page until no next page remains, the
// page limit is hit, or a next link points back to a visited page. Call it
// once per Coordinator. The returned result is never nil; on a fatal error
// it holds what was collected before the failure.
func (c *Coordinator) Run(ctx context.Context) (*model.CrawlResult, error) {
	c.result = &model.CrawlResult{
		RunID:     uuid.NewString(),
		BaseURL:   c.config.BaseURL,
		StartedAt: time.Now().UTC(),
		Products:  []model.ProductRecord{},
	}
	defer func() { c.result.FinishedAt = time.Now().UTC() }()

	logger := slog.With("run_id", c.result.RunID)

	if c.config.DownloadImages {
		if err := os.MkdirAll(c.config.ImageDir, 0750); err != nil {
			c.result.Stats.StopReason = StopError
			return c.result, fmt.Errorf("failed to create image directory: %w", err)
		}
	}

	cursor := c.config.CatalogURL()
	if !c.robots.Allowed(ctx, cursor) {
		c.result.Stats.StopReason = StopError
		return c.result, ErrCatalogDisallowed
	}
	if u, err := url.Parse(cursor); err == nil {
		c.pacer.SetHostDelay(u.Host, c.robots.CrawlDelay(u.Host))
	}

	logger.Info("Starting catalog crawl", "catalog_url", cursor, "max_pages", c.config.MaxPages)

	for {
		next, err := c.visitPage(ctx, logger, cursor)
		if err != nil {
			c.result.Stats.StopReason = StopError
			return c.result, err
		}

		stop := c.stopReason(next)
		if stop != "" {
			c.result.Stats.StopReason = stop
			break
		}

		if err := c.pacer.AfterPage(ctx); err != nil {
			c.result.Stats.StopReason = StopError
			return c.result, err
		}
		cursor = next
	}

	logger.Info("Crawling completed",
		"stop_reason", c.result.Stats.StopReason,
		"pages", c.result.Stats.PagesVisited,
		"products", c.result.Stats.Products,
		"item_failures", c.result.Stats.ItemFailures,
		"image_failures", c.result.Stats.ImageFailures)

	return c.result, nil
}

// stopReason decides whether the walk ends after the current page
func (c *Coordinator) stopReason(next string) string {
	switch {
	case next == "":
		return StopNoMorePages
	case c.isVisited(next):
		slog.Warn("Next page was already visited, stopping", "url", next)
		return StopCycle
	case c.config.MaxPages > 0 && c.result.Stats.PagesVisited >= c.config.MaxPages:
		slog.Info("Reached page limit", "max_pages", c.config.MaxPages)
		return StopMaxPages
	}
	return ""
}

func (c *Coordinator) isVisited(pageURL string) bool {
	_, ok := c.visited[pageURL]
	return ok
}

// visitPage processes one catalog page and returns its next page URL. A
// catalog page that cannot be fetched ends the run.
func (c *Coordinator) visitPage(ctx context.Context, logger *slog.Logger, pageURL string) (string, error) {
	c.visited[pageURL] = struct{}{}

	doc, err := c.loader.Load(ctx, pageURL, c.config.RequestTimeout)
	if err != nil {
		logger.Error("Failed to load catalog page", "url", pageURL, "error", err)
		return "", fmt.Errorf("catalog page %s: %w", pageURL, err)
	}
	c.result.Stats.PagesVisited++

	links := c.filter.Apply(doc.ItemLinks(c.config.CatalogMarker, c.rootPath))
	next := doc.NextPage()

	logger.Info("Catalog page", "url", pageURL, "page", c.result.Stats.PagesVisited, "item_links", len(links))

	for _, link := range links {
		// Claimed before the fetch so a failed item is never retried.
		if !c.seen.Add(link) {
			continue
		}
		c.result.Stats.ItemsSeen = c.seen.Len()

		fetched := c.processItem(ctx, logger, link)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if fetched {
			if err := c.pacer.AfterItem(ctx); err != nil {
				return "", err
			}
		}
	}

	return next, nil
}

// processItem extracts one product and appends it to the result. It reports
// whether a request was made.
func (c *Coordinator) processItem(ctx context.Context, logger *slog.Logger, link string) bool {
	if !c.robots.Allowed(ctx, link) {
		logger.Info("Item disallowed by robots.txt", "url", link)
		c.recordFailure(link, model.FailureRobots, ErrItemDisallowed)
		c.result.Stats.ItemFailures++
		return false
	}

	doc, err := c.loader.Load(ctx, link, c.config.RequestTimeout)
	if err != nil {
		logger.Warn("Skipping item", "url", link, "error", err)
		c.recordFailure(link, failureKind(err), err)
		c.result.Stats.ItemFailures++
		return true
	}

	record := doc.Product(link, c.fields)
	if c.config.DownloadImages {
		record.Images = c.materializeImages(ctx, logger, record)
	}

	c.result.Products = append(c.result.Products, record)
	c.result.Stats.Products++
	logger.Info("Product extracted", "url", link, "name", record.Name, "images", len(record.Images))
	return true
}

// materializeImages returns the record's image list with local paths
// substituted where the download succeeded. Failed images keep their remote
// URL.
func (c *Coordinator) materializeImages(ctx context.Context, logger *slog.Logger, record model.ProductRecord) []string {
	images := make([]string, 0, len(record.Images))

	for _, remote := range record.Images {
		local, cached, err := c.materializer.Materialize(ctx, remote, record.Name)
		if err != nil {
			logger.Warn("Image not stored", "url", remote, "item", record.URL, "error", err)
			c.recordFailure(remote, failureKind(err), err)
			c.result.Stats.ImageFailures++
			images = append(images, remote)
			continue
		}

		if cached {
			c.result.Stats.ImagesCached++
		} else {
			c.result.Stats.ImagesSaved++
		}
		images = append(images, local)
	}

	return images
}

func (c *Coordinator) recordFailure(target, kind string, err error) {
	c.result.Failures = append(c.result.Failures, model.Failure{
		URL:        target,
		Kind:       kind,
		Message:    err.Error(),
		OccurredAt: time.Now().UTC(),
	})
}
