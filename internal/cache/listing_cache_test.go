package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateBack/internal/models"
)

func newTestCache(t *testing.T) (*ListingCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewListingCache(context.Background(), &redis.Options{Addr: mr.Addr()}, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestListingCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	_, hit, err := c.Get(ctx, v, "city=pune")
	require.NoError(t, err)
	assert.False(t, hit)

	price := 150000.0
	listings := []models.Listing{{
		ID:     3,
		City:   "Pune",
		Price:  &price,
		Photos: []models.PhotoRef{{ID: 9, URL: "/listing_photos/9"}},
	}}
	require.NoError(t, c.Set(ctx, v, "city=pune", listings))

	got, hit, err := c.Get(ctx, v, "city=pune")
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, 150000.0, *got[0].Price)
	assert.Equal(t, listings[0].Photos, got[0].Photos)
}

func TestListingCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 0, "all", []models.Listing{{ID: 1}}))
	require.NoError(t, c.Invalidate(ctx))

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	_, hit, err := c.Get(ctx, v, "all")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestListingCacheWriteForOldVersionIsNeverRead(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before, err := c.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, before, "all", []models.Listing{{ID: 1}}))

	now, err := c.Version(ctx)
	require.NoError(t, err)
	_, hit, err := c.Get(ctx, now, "all")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestListingCacheEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 0, "all", []models.Listing{{ID: 1}}))
	mr.FastForward(2 * time.Minute)

	_, hit, err := c.Get(ctx, 0, "all")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNewListingCacheUnreachable(t *testing.T) {
	_, err := NewListingCache(context.Background(), &redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}, 0)
	assert.Error(t, err)
}
