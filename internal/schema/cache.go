// Package schema answers "does this table have that column" once, caches the
// answer with a TTL, and turns the answers into soft-delete predicates.
package schema

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Introspector looks up column existence in the live database.
type Introspector interface {
	ColumnExists(ctx context.Context, table, column string) (bool, error)
}

// PGIntrospector reads information_schema.columns.
type PGIntrospector struct {
	db *pgxpool.Pool
}

func NewPGIntrospector(db *pgxpool.Pool) *PGIntrospector {
	return &PGIntrospector{db: db}
}

func (p *PGIntrospector) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema()
			  AND table_name = $1
			  AND column_name = $2
		)`, table, column,
	).Scan(&exists)
	return exists, err
}

type cacheEntry struct {
	exists    bool
	expiresAt time.Time
}

// ColumnCache memoises Introspector answers per table+column. Entries expire
// after ttl; Invalidate drops everything (call it after a migration).
type ColumnCache struct {
	src Introspector
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewColumnCache(src Introspector, ttl time.Duration) *ColumnCache {
	return &ColumnCache{
		src:     src,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *ColumnCache) HasColumn(ctx context.Context, table, column string) (bool, error) {
	key := table + "." + column
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.exists, nil
	}

	exists, err := c.src.ColumnExists(ctx, table, column)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{exists: exists, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return exists, nil
}

func (c *ColumnCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
