package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the statements used against the schema.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type SearchCache struct {
	CacheKey  string
	Provider  string
	Results   string
	CreatedAt int64
}

const getSearchCache = `SELECT cache_key, provider, results, created_at FROM search_cache WHERE cache_key = ?`

func (q *Queries) GetSearchCache(ctx context.Context, key string) (SearchCache, error) {
	var c SearchCache
	err := q.db.QueryRowContext(ctx, getSearchCache, key).Scan(&c.CacheKey, &c.Provider, &c.Results, &c.CreatedAt)
	return c, err
}

const upsertSearchCache = `
INSERT INTO search_cache (cache_key, provider, results, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET
    provider = excluded.provider,
    results = excluded.results,
    created_at = excluded.created_at`

type UpsertSearchCacheParams struct {
	CacheKey  string
	Provider  string
	Results   string
	CreatedAt int64
}

func (q *Queries) UpsertSearchCache(ctx context.Context, arg UpsertSearchCacheParams) error {
	_, err := q.db.ExecContext(ctx, upsertSearchCache, arg.CacheKey, arg.Provider, arg.Results, arg.CreatedAt)
	return err
}

const deleteSearchCacheBefore = `DELETE FROM search_cache WHERE created_at < ?`

func (q *Queries) DeleteSearchCacheBefore(ctx context.Context, before int64) error {
	_, err := q.db.ExecContext(ctx, deleteSearchCacheBefore, before)
	return err
}

// PruneSearchCache keeps only the newest keep rows.
const pruneSearchCache = `
DELETE FROM search_cache WHERE cache_key NOT IN (
    SELECT cache_key FROM search_cache ORDER BY created_at DESC LIMIT ?
)`

func (q *Queries) PruneSearchCache(ctx context.Context, keep int64) error {
	_, err := q.db.ExecContext(ctx, pruneSearchCache, keep)
	return err
}
