package schema

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIntrospector struct {
	columns map[string]bool
	calls   int
	err     error
}

func (f *fakeIntrospector) ColumnExists(_ context.Context, table, column string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.columns[table+"."+column], nil
}

func TestColumnCache_TTL(t *testing.T) {
	src := &fakeIntrospector{columns: map[string]bool{"hubs.deleted_at": true}}
	cache := NewColumnCache(src, time.Minute)
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := cache.HasColumn(ctx, "hubs", "deleted_at")
	require.NoError(t, err)
	assert.True(t, ok)
	_, _ = cache.HasColumn(ctx, "hubs", "deleted_at")
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	_, _ = cache.HasColumn(ctx, "hubs", "deleted_at")
	assert.Equal(t, 2, src.calls)

	cache.Invalidate()
	_, _ = cache.HasColumn(ctx, "hubs", "deleted_at")
	assert.Equal(t, 3, src.calls)
}

func TestResolve_PicksFirstPresentColumn(t *testing.T) {
	src := &fakeIntrospector{columns: map[string]bool{
		"hubs.is_deleted":        true,
		"hubs.status":            true,
		"delivery_zones.status":  true,
		"delivery_fee_rules.trashed_at": true,
	}}
	cache := NewColumnCache(src, time.Hour)
	all, err := ResolveAll(context.Background(), cache, "hubs", "delivery_zones", "cities", "delivery_fee_rules")
	require.NoError(t, err)

	assert.Equal(t, "COALESCE(h.is_deleted, FALSE) = FALSE", all.For("hubs").LivePredicate("h"))
	assert.Equal(t, "COALESCE(z.status, '') <> 'deleted'", all.For("delivery_zones").LivePredicate("z"))
	assert.Equal(t, "TRUE", all.For("cities").LivePredicate("c"))
	assert.Equal(t, "trashed_at IS NULL", all.For("delivery_fee_rules").LivePredicate(""))
	assert.Equal(t, NoSoftDelete, all.For("unknown"))
}

func TestResolve_PropagatesErrors(t *testing.T) {
	cache := NewColumnCache(&fakeIntrospector{err: errors.New("boom")}, time.Hour)
	_, err := Resolve(context.Background(), cache, "hubs")
	assert.Error(t, err)
}
