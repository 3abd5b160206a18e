package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"aristotle/internal/agent"
	"aristotle/internal/search"
)

const defaultResultCount = 5

// WebSearch is the web_search capability backed by a search.Provider.
type WebSearch struct {
	provider search.Provider
	count    int
}

func NewWebSearch(provider search.Provider, count int) *WebSearch {
	if count <= 0 {
		count = defaultResultCount
	}
	return &WebSearch{provider: provider, count: count}
}

func (w *WebSearch) Name() string               { return "web_search" }
func (w *WebSearch) Kind() agent.CapabilityKind { return agent.CapabilityWebSearch }

func (w *WebSearch) Description() string {
	return "Search the web and return result titles, direct URLs and snippets"
}

func (w *WebSearch) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("Number of results to return (default %d, max 20)", w.count),
			},
		},
		"required":             []string{"query", "count"},
		"additionalProperties": false,
	}
}

func (w *WebSearch) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing web_search input: %w", err)
	}
	args.Query = strings.TrimSpace(args.Query)
	if args.Query == "" {
		return "", fmt.Errorf("query is required")
	}
	if args.Count <= 0 {
		args.Count = w.count
	}

	slog.Debug("web_search: searching", "agent", agent.AgentNameFromContext(ctx), "provider", w.provider.Name(), "query", args.Query)

	results, err := w.provider.Search(ctx, args.Query, args.Count)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "%s\n%s\n%s", r.Title, r.URL, r.Snippet)
	}
	return truncate([]byte(b.String())), nil
}
