package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func robotsServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRobotsGate(t *testing.T) {
	var hits int32
	server := robotsServer(t, http.StatusOK, `User-agent: *
Disallow: /productos/privado/
Crawl-delay: 2
`, &hits)

	client := NewHTTPClient("ProductScraper/3.0", 5*time.Second)
	defer client.Close()
	gate := NewRobotsGate(client, NewPacer(0, 0, 0), "ProductScraper/3.0", 5*time.Second, true)
	ctx := context.Background()

	tests := []struct {
		path    string
		allowed bool
	}{
		{"/productos/", true},
		{"/productos/remera/", true},
		{"/productos/privado/secreto/", false},
		{"/", true},
	}

	for _, tt := range tests {
		if got := gate.Allowed(ctx, server.URL+tt.path); got != tt.allowed {
			t.Errorf("Allowed(%s) = %v, want %v", tt.path, got, tt.allowed)
		}
	}

	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("Expected robots.txt to be fetched once, got %d", hits)
	}

	u, _ := url.Parse(server.URL)
	if d := gate.CrawlDelay(u.Host); d != 2*time.Second {
		t.Errorf("Expected crawl delay 2s, got %v", d)
	}
}

func TestRobotsGateDisabled(t *testing.T) {
	var hits int32
	server := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /\n", &hits)

	client := NewHTTPClient("ProductScraper/3.0", 5*time.Second)
	defer client.Close()
	gate := NewRobotsGate(client, NewPacer(0, 0, 0), "ProductScraper/3.0", 5*time.Second, false)

	if !gate.Allowed(context.Background(), server.URL+"/productos/") {
		t.Error("Disabled gate should allow everything")
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("Disabled gate should not fetch robots.txt, got %d fetches", hits)
	}
}

func TestRobotsGateMissingFile(t *testing.T) {
	server := robotsServer(t, http.StatusNotFound, "", nil)

	client := NewHTTPClient("ProductScraper/3.0", 5*time.Second)
	defer client.Close()
	gate := NewRobotsGate(client, NewPacer(0, 0, 0), "ProductScraper/3.0", 5*time.Second, true)

	if !gate.Allowed(context.Background(), server.URL+"/productos/x/") {
		t.Error("Missing robots.txt should allow everything")
	}
}

func TestRobotsGateUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	client := NewHTTPClient("ProductScraper/3.0", time.Second)
	defer client.Close()
	gate := NewRobotsGate(client, NewPacer(0, 0, 0), "ProductScraper/3.0", time.Second, true)

	if !gate.Allowed(context.Background(), addr+"/productos/") {
		t.Error("Unreachable robots.txt should allow everything")
	}
}

func TestRobotsGateAgentGroup(t *testing.T) {
	server := robotsServer(t, http.StatusOK, `User-agent: ProductScraper
Disallow: /productos/

User-agent: *
Allow: /
`, nil)

	client := NewHTTPClient("ProductScraper/3.0", 5*time.Second)
	defer client.Close()

	ctx := context.Background()
	scraper := NewRobotsGate(client, NewPacer(0, 0, 0), "ProductScraper/3.0", 5*time.Second, true)
	if scraper.Allowed(ctx, server.URL+"/productos/a/") {
		t.Error("Expected agent-specific group to disallow /productos/")
	}

	other := NewRobotsGate(client, NewPacer(0, 0, 0), "OtherBot/1.0", 5*time.Second, true)
	if !other.Allowed(ctx, server.URL+"/productos/a/") {
		t.Error("Expected wildcard group to allow /productos/")
	}
}

func TestRobotsGateSharesRequestSpacing(t *testing.T) {
	server := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow:\n", nil)

	client := NewHTTPClient("ProductScraper/3.0", 5*time.Second)
	defer client.Close()
	pacer := NewPacer(0, 0, time.Hour)
	gate := NewRobotsGate(client, pacer, "ProductScraper/3.0", 5*time.Second, true)

	if !gate.Allowed(context.Background(), server.URL+"/productos/") {
		t.Fatal("Expected empty Disallow to allow everything")
	}

	u, _ := url.Parse(server.URL)
	if tokens := pacer.limiter(u.Host).Tokens(); tokens >= 1 {
		t.Errorf("Expected the robots.txt request to consume the host token, %v left", tokens)
	}
}

func TestRobotsGateCancelledBeforeFetch(t *testing.T) {
	var hits int32
	server := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /\n", &hits)

	client := NewHTTPClient("ProductScraper/3.0", 5*time.Second)
	defer client.Close()
	pacer := NewPacer(0, 0, time.Hour)
	gate := NewRobotsGate(client, pacer, "ProductScraper/3.0", 5*time.Second, true)

	u, _ := url.Parse(server.URL)
	pacer.limiter(u.Host).Allow() // spend the burst so the next wait blocks

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gate.Allowed(ctx, server.URL+"/productos/")

	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("Expected no robots.txt request after cancellation, got %d", hits)
	}
	if _, cached := gate.groups[u.Host]; cached {
		t.Error("Expected nothing cached for a cancelled robots.txt lookup")
	}
}
