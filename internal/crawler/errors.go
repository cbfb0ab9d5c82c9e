package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/masahif/tiendacrawl/internal/model"
)

// ErrorKind classifies a failed fetch
type ErrorKind string

const (
	KindTimeout    ErrorKind = model.FailureTimeout
	KindTransport  ErrorKind = model.FailureTransport
	KindHTTPStatus ErrorKind = model.FailureHTTPStatus
)

// Materialize operations that can fail
const (
	OpDownload = model.FailureDownload
	OpWrite    = model.FailureWrite
)

var (
	// ErrCatalogDisallowed is returned when robots.txt forbids the catalog root
	ErrCatalogDisallowed = errors.New("catalog root disallowed by robots.txt")
	// ErrItemDisallowed marks an item skipped because of robots.txt
	ErrItemDisallowed = errors.New("disallowed by robots.txt")
)

// FetchError is returned by the HTTP client when a request does not produce
// a successful response.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int // set for KindHTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MaterializeError is returned when an image could not be stored locally.
type MaterializeError struct {
	URL string
	Op  string // OpDownload or OpWrite
	Err error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("materialize %s: %s: %v", e.URL, e.Op, e.Err)
}

func (e *MaterializeError) Unwrap() error {
	return e.Err
}

// classifyTransportError maps a client.Do error to a FetchError kind
func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

// failureKind returns the model.Failure kind recorded for err
func failureKind(err error) string {
	// Image download failures wrap a FetchError; the materialize op wins.
	var me *MaterializeError
	if errors.As(err, &me) {
		return me.Op
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return model.FailureParse
}
