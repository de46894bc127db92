package storage

import (
	"context"
	"fmt"
	"time"
)

var _ Backend = (*RedisBackend)(nil)

const rateLimitKeyPrefix = "ratelimit:"

type RedisBackend struct {
	client     redisClient
	rateLimit  int
	rateWindow time.Duration
}

func NewRedisBackend(cfg RedisConfig, rateLimit int) (*RedisBackend, error) {
	return &RedisBackend{
		client:     cfg.Client,
		rateLimit:  rateLimit,
		rateWindow: time.Second,
	}, nil
}

func (r *RedisBackend) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	params := rateLimitParams{
		window: r.rateWindow,
		limit:  r.rateLimit,
		ttl:    r.rateWindow + time.Second,
	}

	allowed, err := runRateLimitScript(ctx, r.client, rateLimitKeyPrefix+key, params)
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("running rate limit script: %w", err)
	}

	return RateLimitResult{
		Allowed:    allowed,
		RetryAfter: r.rateWindow,
	}, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
