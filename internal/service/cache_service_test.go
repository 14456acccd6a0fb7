package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/pkg/cache"
)

type cachedSummary struct {
	Total int `json:"total"`
}

func TestRememberLoadsOnceThenHits(t *testing.T) {
	svc := NewCacheService(cache.NewMemoryStore(), NewMetricsService(), time.Minute, zap.NewNop(), true)
	loads := 0
	load := func(context.Context) (*cachedSummary, error) {
		loads++
		return &cachedSummary{Total: 7}, nil
	}

	first, hit, err := remember(context.Background(), svc, "stats:resources", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, first.Total)

	second, hit, err := remember(context.Background(), svc, "stats:resources", 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, second.Total)
	assert.Equal(t, 1, loads)
}

func TestRememberPropagatesLoadError(t *testing.T) {
	svc := NewCacheService(cache.NewMemoryStore(), nil, time.Minute, nil, true)
	_, _, err := remember(context.Background(), svc, "k", 0, func(context.Context) (*cachedSummary, error) {
		return nil, errors.New("query failed")
	})
	assert.EqualError(t, err, "query failed")
}

func TestRememberWithDisabledCacheAlwaysLoads(t *testing.T) {
	var svc *CacheService
	loads := 0
	for i := 0; i < 2; i++ {
		_, hit, err := remember(context.Background(), svc, "k", 0, func(context.Context) (*cachedSummary, error) {
			loads++
			return &cachedSummary{}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, loads)
}

func TestInvalidateDropsMatchingPatterns(t *testing.T) {
	store := cache.NewMemoryStore()
	svc := NewCacheService(store, nil, time.Minute, nil, true)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "dashboard:admin:u1", cachedSummary{Total: 1}, 0))
	require.NoError(t, svc.Set(ctx, "dashboard:student:u2", cachedSummary{Total: 2}, 0))
	require.NoError(t, svc.Set(ctx, "stats:resources", cachedSummary{Total: 3}, 0))
	require.NoError(t, svc.Set(ctx, "other", cachedSummary{Total: 4}, 0))

	require.NoError(t, svc.Invalidate(ctx, "dashboard:*", "stats:resources"))

	var dest cachedSummary
	hit, err := svc.Get(ctx, "dashboard:admin:u1", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	hit, err = svc.Get(ctx, "stats:resources", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	hit, err = svc.Get(ctx, "other", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 4, dest.Total)
}
