package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/academic-repo-api/pkg/errors"
)

type summary struct {
	Total int `json:"total"`
}

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dashboard:admin", summary{Total: 4}, time.Minute))

	var got summary
	require.NoError(t, store.Get(ctx, "dashboard:admin", &got))
	assert.Equal(t, 4, got.Total)

	err := store.Get(ctx, "dashboard:student", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "stats", summary{Total: 1}, time.Minute))
	current = current.Add(time.Minute)

	var got summary
	assert.ErrorIs(t, store.Get(ctx, "stats", &got), appErrors.ErrCacheMiss)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreEvictionKeepsRefreshedEntry(t *testing.T) {
	store := NewMemoryStore()
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "stats", summary{Total: 1}, time.Minute))
	current = current.Add(time.Minute)
	require.NoError(t, store.Set(ctx, "stats", summary{Total: 2}, time.Minute))

	store.evictExpired("stats")

	var got summary
	require.NoError(t, store.Get(ctx, "stats", &got))
	assert.Equal(t, 2, got.Total)
}

func TestMemoryStoreDeleteByPattern(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dashboard:admin", 1, 0))
	require.NoError(t, store.Set(ctx, "dashboard:student:u1", 2, 0))
	require.NoError(t, store.Set(ctx, "resources:stats", 3, 0))

	require.NoError(t, store.DeleteByPattern(ctx, "dashboard:*"))
	assert.Equal(t, 1, store.Len())

	var got int
	require.NoError(t, store.Get(ctx, "resources:stats", &got))
	assert.Equal(t, 3, got)

	assert.Error(t, store.DeleteByPattern(ctx, "["))
}
