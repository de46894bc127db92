package storage

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ Backend = (*MemoryBackend)(nil)

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type MemoryBackend struct {
	mu        sync.Mutex
	limiters  map[string]*keyedLimiter
	rateLimit rate.Limit
	rateBurst int

	done chan struct{}
}

func NewMemoryBackend(ratePerSec float64, burst int) *MemoryBackend {
	m := &MemoryBackend{
		limiters:  make(map[string]*keyedLimiter),
		rateLimit: rate.Limit(ratePerSec),
		rateBurst: burst,
		done:      make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

func (m *MemoryBackend) Allow(_ context.Context, key string) (RateLimitResult, error) {
	m.mu.Lock()
	kl, ok := m.limiters[key]
	if !ok {
		kl = &keyedLimiter{limiter: rate.NewLimiter(m.rateLimit, m.rateBurst)}
		m.limiters[key] = kl
	}
	kl.lastSeen = time.Now()
	m.mu.Unlock()

	return RateLimitResult{
		Allowed:    kl.limiter.Allow(),
		RetryAfter: time.Second,
	}, nil
}

func (m *MemoryBackend) Close() error {
	close(m.done)
	return nil
}

func (m *MemoryBackend) Ping(_ context.Context) error {
	return nil
}

// cleanupLoop drops limiters idle for more than ten minutes so the map does
// not grow with every caller ever seen.
func (m *MemoryBackend) cleanupLoop() {
	const idleTTL = 10 * time.Minute

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			cutoff := time.Now().Add(-idleTTL)
			for key, kl := range m.limiters {
				if kl.lastSeen.Before(cutoff) {
					delete(m.limiters, key)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}
