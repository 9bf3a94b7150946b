// infrastructure/redis_highlight_cache.go
package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

// NewRedisClient builds a go-redis client, or returns nil when addr is empty.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// RedisHighlightCache stores highlights as JSON under highlights:<video id>.
type RedisHighlightCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHighlightCache wraps client. A zero ttl keeps entries forever.
func NewRedisHighlightCache(client *redis.Client, ttl time.Duration) *RedisHighlightCache {
	return &RedisHighlightCache{client: client, ttl: ttl}
}

func (c *RedisHighlightCache) key(videoID string) string {
	return fmt.Sprintf("highlights:%s", videoID)
}

func (c *RedisHighlightCache) Load(ctx context.Context, videoID string) ([]domain.HighlightSegment, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, c.key(videoID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var highlights []domain.HighlightSegment
	if err := json.Unmarshal(val, &highlights); err != nil {
		return nil, false, fmt.Errorf("parse cached highlights for %s: %w", videoID, err)
	}
	return highlights, true, nil
}

func (c *RedisHighlightCache) Save(ctx context.Context, videoID string, highlights []domain.HighlightSegment) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if highlights == nil {
		highlights = []domain.HighlightSegment{}
	}
	b, err := json.Marshal(highlights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(videoID), b, c.ttl).Err()
}

func (c *RedisHighlightCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

var _ domain.HighlightCache = (*RedisHighlightCache)(nil)
