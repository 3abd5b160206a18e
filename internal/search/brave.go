package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	bravesearch "github.com/cnosuke/go-brave-search"
)

// Brave queries the Brave Search web endpoint.
type Brave struct {
	client *bravesearch.Client
}

// NewBrave builds a Brave provider. Extra options are applied after the
// traced HTTP client, so callers may override the base URL or retries.
func NewBrave(apiKey string, timeout time.Duration, opts ...bravesearch.ClientOption) (*Brave, error) {
	opts = append([]bravesearch.ClientOption{bravesearch.WithHTTPClient(newHTTPClient(timeout))}, opts...)
	client, err := bravesearch.NewClient(apiKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("brave client: %w", err)
	}
	return &Brave{client: client}, nil
}

func (b *Brave) Name() string { return "brave" }

func (b *Brave) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	count = clampCount(count)

	slog.Debug("brave: searching", "query", query, "count", count)

	resp, err := b.client.WebSearch(ctx, query, &bravesearch.WebSearchParams{
		Count: count,
	})
	if err != nil {
		if bravesearch.IsAuthError(err) || errors.Is(err, bravesearch.ErrForbidden) ||
			errors.Is(err, bravesearch.ErrSubscriptionTokenInvalid) {
			return nil, fmt.Errorf("brave: %w: %w", ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("brave search: %w", err)
	}

	hits := resp.GetWebResults()
	results := make([]Result, 0, len(hits))
	for _, r := range hits {
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	if len(results) > count {
		results = results[:count]
	}

	slog.Debug("brave: search done", "query", query, "results", len(results))
	return results, nil
}
