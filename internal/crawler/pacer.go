package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces the politeness delays of a run: a minimum spacing between
// any two requests to one host, plus fixed pauses after each item and after
// each catalog page.
type Pacer struct {
	itemDelay    time.Duration
	pageDelay    time.Duration
	requestDelay time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer. A zero requestDelay disables per-host spacing.
func NewPacer(itemDelay, pageDelay, requestDelay time.Duration) *Pacer {
	return &Pacer{
		itemDelay:    itemDelay,
		pageDelay:    pageDelay,
		requestDelay: requestDelay,
		limiters:     make(map[string]*rate.Limiter),
		sleep:        sleepContext,
	}
}

// WaitRequest blocks until a request to rawURL's host may be sent
func (p *Pacer) WaitRequest(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	return p.limiter(u.Host).Wait(ctx)
}

// SetHostDelay raises the spacing for host, e.g. from a robots.txt
// Crawl-delay. It never lowers the configured request delay.
func (p *Pacer) SetHostDelay(host string, delay time.Duration) {
	if delay <= p.requestDelay {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiters[host] = rate.NewLimiter(rate.Every(delay), 1)
}

// AfterItem pauses for the item delay
func (p *Pacer) AfterItem(ctx context.Context) error {
	return p.sleep(ctx, p.itemDelay)
}

// AfterPage pauses for the page delay
func (p *Pacer) AfterPage(ctx context.Context) error {
	return p.sleep(ctx, p.pageDelay)
}

func (p *Pacer) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.limiters[host]; ok {
		return l
	}

	limit := rate.Inf
	if p.requestDelay > 0 {
		limit = rate.Every(p.requestDelay)
	}
	l := rate.NewLimiter(limit, 1)
	p.limiters[host] = l
	return l
}

// sleepContext sleeps for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
