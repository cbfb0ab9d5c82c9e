package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// HTTPClient issues single GET requests with a fixed identity. It never
// retries; callers decide what a failure means.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// HTTPMetrics contains timing for one request
type HTTPMetrics struct {
	TTFB         time.Duration // Time to First Byte
	DownloadTime time.Duration // Total download time
}

// HTTPResponse contains the response body and metadata
type HTTPResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
	Metrics     HTTPMetrics
	FinalURL    string // After following redirects
}

// NewHTTPClient creates a new HTTP client. timeout is the default per-request
// timeout used by Get.
func NewHTTPClient(userAgent string, timeout time.Duration) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Get fetches url with the client's default timeout
func (h *HTTPClient) Get(ctx context.Context, url string) (*HTTPResponse, error) {
	return h.GetWithTimeout(ctx, url, h.timeout)
}

// GetWithTimeout fetches url and fails with a *FetchError on transport
// errors, timeouts or a non-2xx status.
func (h *HTTPClient) GetWithTimeout(ctx context.Context, url string, timeout time.Duration) (*HTTPResponse, error) {
	resp, err := h.do(ctx, url, timeout)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Kind:       KindHTTPStatus,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", http.StatusText(resp.StatusCode)),
		}
	}

	return resp, nil
}

// do performs the request without judging the status code
func (h *HTTPClient) do(ctx context.Context, url string, timeout time.Duration) (*HTTPResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: url, Err: err}
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.5")

	var firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByte = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classifyTransportError(err), URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: classifyTransportError(err), URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var metrics HTTPMetrics
	if !firstByte.IsZero() {
		metrics.TTFB = firstByte.Sub(start)
	}
	metrics.DownloadTime = time.Since(start)

	return &HTTPResponse{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Metrics:     metrics,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// Close releases idle connections
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}
