package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Location, error)
	Reverse(ctx context.Context, lat, lng float64) (*Location, error)
}

type Cache interface {
	Get(ctx context.Context, address string) (*Location, bool, error)
	Set(ctx context.Context, address string, loc *Location) error
}

func cacheKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// reverseKey rounds to about 10 cm so jittery positions share an entry.
func reverseKey(lat, lng float64) string {
	return fmt.Sprintf("@%.6f,%.6f", lat, lng)
}

type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]Location
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]Location)}
}

func (c *MemoryCache) Get(_ context.Context, address string) (*Location, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.items[cacheKey(address)]
	if !ok {
		return nil, false, nil
	}
	return &loc, true, nil
}

func (c *MemoryCache) Set(_ context.Context, address string, loc *Location) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[cacheKey(address)] = *loc
	return nil
}

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "bakery:geo"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, address string) (*Location, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+":"+cacheKey(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get geocode: %w", err)
	}

	var loc Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, false, fmt.Errorf("decode geocode: %w", err)
	}
	return &loc, true, nil
}

func (c *RedisCache) Set(ctx context.Context, address string, loc *Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+":"+cacheKey(address), data, c.ttl).Err()
}

// CachedGeocoder consults the cache before the API. Only successful lookups are cached.
type CachedGeocoder struct {
	next   Geocoder
	cache  Cache
	logger *slog.Logger
}

func NewCachedGeocoder(next Geocoder, cache Cache, logger *slog.Logger) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: cache, logger: logger}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (*Location, error) {
	return g.cached(ctx, address, func() (*Location, error) {
		return g.next.Geocode(ctx, address)
	})
}

func (g *CachedGeocoder) Reverse(ctx context.Context, lat, lng float64) (*Location, error) {
	if !ValidCoordinates(lat, lng) {
		return g.next.Reverse(ctx, lat, lng)
	}
	return g.cached(ctx, reverseKey(lat, lng), func() (*Location, error) {
		return g.next.Reverse(ctx, lat, lng)
	})
}

func (g *CachedGeocoder) cached(ctx context.Context, key string, lookup func() (*Location, error)) (*Location, error) {
	loc, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn("geocode cache read failed", "error", err)
	} else if ok {
		return loc, nil
	}

	loc, err = lookup()
	if err != nil {
		return nil, err
	}

	if err := g.cache.Set(ctx, key, loc); err != nil {
		g.logger.Warn("geocode cache write failed", "error", err)
	}
	return loc, nil
}
