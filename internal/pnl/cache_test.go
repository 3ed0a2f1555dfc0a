package pnl

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fleetcore/fleetcore/internal/shared"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, time.Minute)
}

func TestCacheFetchJSONPopulatesOnce(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	q := Query{From: day("2026-03-01"), To: day("2026-03-31"), Granularity: shared.GranularityMonth, Comparison: CompareNone}
	key, err := cache.BuildKey(ctx, q)
	require.NoError(t, err)

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return &Report{Revenue: RevenueBlock{Total: 1575}}, nil
	}

	var first Report
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.InDelta(t, 1575, first.Revenue.Total, 1e-9)
	require.Equal(t, 1, calls)

	var second Report
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.InDelta(t, 1575, second.Revenue.Total, 1e-9)
	require.Equal(t, 1, calls)
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	q := Query{From: day("2026-03-01"), To: day("2026-03-31"), Granularity: shared.GranularityMonth, Comparison: CompareNone}
	before, err := cache.BuildKey(ctx, q)
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, q)
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCacheNilDegradesToLoader(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, Query{Granularity: shared.GranularityMonth, Comparison: CompareNone})
	require.NoError(t, err)

	var out Report
	err = cache.FetchJSON(ctx, key, &out, func(context.Context) (interface{}, error) {
		return &Report{NetProfit: 42}, nil
	})
	require.NoError(t, err)
	require.InDelta(t, 42, out.NetProfit, 1e-9)
	require.NoError(t, cache.Bump(ctx))
}
