// Package search adapts web search backends to a single Provider interface.
package search

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnauthorized is returned (wrapped) when the backend rejects the API key.
var ErrUnauthorized = errors.New("search: unauthorized")

const (
	defaultCount = 5
	maxCount     = 20
)

// Result is a single web hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider executes a query and returns at most count results.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, count int) ([]Result, error)
}

func clampCount(count int) int {
	if count <= 0 {
		return defaultCount
	}
	if count > maxCount {
		return maxCount
	}
	return count
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
