package search

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aristotle/internal/db"
)

// CachedProvider wraps a Provider with a content-addressed result cache in SQLite.
type CachedProvider struct {
	inner   Provider
	queries *db.Queries
	ttl     time.Duration
	maxRows int
	now     func() time.Time
}

func NewCachedProvider(inner Provider, database *db.DB, ttl time.Duration, maxRows int) *CachedProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &CachedProvider{
		inner:   inner,
		queries: db.New(database.Conn()),
		ttl:     ttl,
		maxRows: maxRows,
		now:     time.Now,
	}
}

func (c *CachedProvider) Name() string { return c.inner.Name() }

func (c *CachedProvider) Search(ctx context.Context, query string, count int) ([]Result, error) {
	count = clampCount(count)
	key := cacheKey(c.inner.Name(), query, count)

	cached, err := c.queries.GetSearchCache(ctx, key)
	switch {
	case err == nil && c.now().Sub(time.Unix(cached.CreatedAt, 0)) < c.ttl:
		var results []Result
		if err := json.Unmarshal([]byte(cached.Results), &results); err == nil {
			slog.Debug("search cache hit", "provider", c.inner.Name(), "results", len(results))
			return results, nil
		}
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		slog.Debug("search cache lookup error", "error", err)
	}

	results, err := c.inner.Search(ctx, query, count)
	if err != nil {
		return nil, err
	}

	// Store and prune are best-effort.
	payload, err := json.Marshal(results)
	if err != nil {
		slog.Debug("search cache encode error", "error", err)
		return results, nil
	}
	if err := c.queries.UpsertSearchCache(ctx, db.UpsertSearchCacheParams{
		CacheKey:  key,
		Provider:  c.inner.Name(),
		Results:   string(payload),
		CreatedAt: c.now().Unix(),
	}); err != nil {
		slog.Debug("search cache store error", "error", err)
	}
	if err := c.queries.DeleteSearchCacheBefore(ctx, c.now().Add(-c.ttl).Unix()); err != nil {
		slog.Debug("search cache expire error", "error", err)
	}
	if err := c.queries.PruneSearchCache(ctx, int64(c.maxRows)); err != nil {
		slog.Debug("search cache prune error", "error", err)
	}

	return results, nil
}

func cacheKey(provider, query string, count int) string {
	norm := strings.ToLower(strings.Join(strings.Fields(query), " "))
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", provider, count, norm)))
	return fmt.Sprintf("%x", h)
}
