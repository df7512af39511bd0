package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"estateBack/internal/models"
)

const (
	versionKey = "listings:version"
	defaultTTL = 5 * time.Minute
)

// ListingCache keeps list results in redis. Every mutation bumps a version
// counter so stale entries are never read again and simply expire.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewListingCache(ctx context.Context, opts *redis.Options, ttl time.Duration) (*ListingCache, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ListingCache{client: client, ttl: ttl}, nil
}

// Version returns the current generation. Callers read it once per lookup
// and pass it to both Get and Set, so a result computed before an Invalidate
// lands on a generation nobody reads.
func (c *ListingCache) Version(ctx context.Context) (int64, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return version, nil
}

func (c *ListingCache) Get(ctx context.Context, version int64, filterKey string) ([]models.Listing, bool, error) {
	data, err := c.client.Get(ctx, entryKey(version, filterKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var listings []models.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, false, err
	}
	return listings, true, nil
}

func (c *ListingCache) Set(ctx context.Context, version int64, filterKey string, listings []models.Listing) error {
	data, err := json.Marshal(listings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, entryKey(version, filterKey), data, c.ttl).Err()
}

func (c *ListingCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, versionKey).Err()
}

func (c *ListingCache) Close() error {
	return c.client.Close()
}

func entryKey(version int64, filterKey string) string {
	sum := sha1.Sum([]byte(filterKey))
	return fmt.Sprintf("listings:v%d:%s", version, hex.EncodeToString(sum[:]))
}
