package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Cache provides Redis-backed question pack caching for generated topics.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ PackCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(req PackRequest) string {
	return strings.Join([]string{
		"questionpack",
		strings.ToLower(strings.TrimSpace(req.Topic)),
		req.Difficulty,
		fmt.Sprint(req.Count),
	}, ":")
}

func (c *Cache) Get(ctx context.Context, req PackRequest) (*Pack, error) {
	data, err := c.client.Get(ctx, cacheKey(req)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

func (c *Cache) Set(ctx context.Context, req PackRequest, pack Pack) error {
	data, err := json.Marshal(pack)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(req), data, c.ttl).Err()
}
