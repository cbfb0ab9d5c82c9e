package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsGate answers whether the crawler may fetch a URL. robots.txt is
// fetched once per host; when it cannot be fetched or parsed everything is
// allowed.
type RobotsGate struct {
	client    *HTTPClient
	pacer     *Pacer
	userAgent string
	timeout   time.Duration
	enabled   bool

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

// NewRobotsGate creates a gate. A disabled gate allows every URL without
// fetching anything. robots.txt requests share the per-host spacing of pacer.
func NewRobotsGate(client *HTTPClient, pacer *Pacer, userAgent string, timeout time.Duration, enabled bool) *RobotsGate {
	return &RobotsGate{
		client:    client,
		pacer:     pacer,
		userAgent: userAgent,
		timeout:   timeout,
		enabled:   enabled,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether rawURL may be fetched
func (r *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	if !r.enabled {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	group := r.group(ctx, u)
	if group == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

// CrawlDelay returns the Crawl-delay robots.txt declares for host, if any
func (r *RobotsGate) CrawlDelay(host string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g := r.groups[host]; g != nil {
		return g.CrawlDelay
	}
	return 0
}

func (r *RobotsGate) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	r.mu.Lock()
	g, ok := r.groups[u.Host]
	r.mu.Unlock()
	if ok {
		return g
	}

	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	if err := r.pacer.WaitRequest(ctx, robotsURL); err != nil {
		// Not cached: the run is being cancelled.
		return nil
	}
	resp, err := r.client.do(ctx, robotsURL, r.timeout)
	if err != nil {
		slog.Warn("robots.txt fetch failed, allowing all", "url", robotsURL, "error", err)
	} else if data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body); err != nil {
		slog.Warn("robots.txt parse failed, allowing all", "url", robotsURL, "error", err)
	} else {
		g = data.FindGroup(r.userAgent)
	}

	r.mu.Lock()
	r.groups[u.Host] = g
	r.mu.Unlock()
	return g
}
