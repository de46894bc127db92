// Package storage provides the rate limit backends the HTTP surface runs on.
// Redis backs multi-instance deployments; the in-memory backend covers
// single-instance and local runs.
package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

type Backend interface {
	RateLimiter

	Close() error

	Ping(ctx context.Context) error
}

type RedisConfig struct {
	Client *redis.Client
}
