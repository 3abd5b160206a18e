package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const serpAPIEndpoint = "https://serpapi.com/search.json"

// SerpAPI queries Google through serpapi.com.
type SerpAPI struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

type SerpAPIOption func(*SerpAPI)

// WithSerpAPIEndpoint overrides the search endpoint.
func WithSerpAPIEndpoint(endpoint string) SerpAPIOption {
	return func(s *SerpAPI) { s.endpoint = endpoint }
}

func WithSerpAPIHTTPClient(c *http.Client) SerpAPIOption {
	return func(s *SerpAPI) { s.client = c }
}

func NewSerpAPI(apiKey string, timeout time.Duration, opts ...SerpAPIOption) *SerpAPI {
	s := &SerpAPI{
		apiKey:   apiKey,
		endpoint: serpAPIEndpoint,
		client:   newHTTPClient(timeout),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SerpAPI) Name() string { return "serpapi" }

type serpAPIResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

func (s *SerpAPI) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	count = clampCount(count)

	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("num", strconv.Itoa(count))
	q.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("serpapi: searching", "query", query, "count", count)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi: %w", err)
	}
	defer resp.Body.Close()

	var payload serpAPIResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&payload)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("serpapi: %w: %s", ErrUnauthorized, payload.Error)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("serpapi: HTTP %d: %s", resp.StatusCode, payload.Error)
	case decodeErr != nil:
		return nil, fmt.Errorf("serpapi: decoding response: %w", decodeErr)
	case payload.Error != "" && len(payload.OrganicResults) == 0:
		// "Google hasn't returned any results for this query." arrives as 200 + error.
		slog.Debug("serpapi: no results", "query", query, "reason", payload.Error)
		return nil, nil
	}

	results := make([]Result, 0, len(payload.OrganicResults))
	for _, r := range payload.OrganicResults {
		results = append(results, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
		if len(results) == count {
			break
		}
	}

	slog.Debug("serpapi: search done", "query", query, "results", len(results))
	return results, nil
}
