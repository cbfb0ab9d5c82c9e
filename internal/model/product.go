// Package model defines the records produced by a catalog crawl and handed
// to the persistence sinks.
package model

import "time"

// ProductRecord is one extracted catalog item. It is never modified after the
// coordinator appends it to a result.
type ProductRecord struct {
	Name        string   `json:"nombre"`      // First <h1> text
	Price       string   `json:"precio"`      // Raw currency text, unparsed
	Description string   `json:"descripcion"` // First matching description block
	URL         string   `json:"url"`         // Item detail page the record came from
	Images      []string `json:"imagenes"`    // Local paths, or remote URLs when not materialized
}

// Failure kinds recorded for skipped items and images.
const (
	FailureTimeout    = "timeout"
	FailureTransport  = "transport"
	FailureHTTPStatus = "http_status"
	FailureParse      = "parse"
	FailureDownload   = "download"
	FailureWrite      = "write"
	FailureRobots     = "robots"
)

// Failure describes a unit of work that was skipped during a run.
type Failure struct {
	URL        string    `json:"url"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CrawlStats counts what happened during a run.
type CrawlStats struct {
	PagesVisited  int
	ItemsSeen     int
	Products      int
	ItemFailures  int
	ImagesSaved   int
	ImagesCached  int
	ImageFailures int
	StopReason    string // no_more_pages, max_pages, cycle or error
}

// CrawlResult is the full output of one crawl run.
type CrawlResult struct {
	RunID      string
	BaseURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	Products   []ProductRecord
	Failures   []Failure
	Stats      CrawlStats
}

// Duration returns how long the run took.
func (r *CrawlResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
