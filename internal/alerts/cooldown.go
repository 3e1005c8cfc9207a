package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore answers "has this alert key fired inside the window" and
// records new firings. Implementations must be safe for concurrent use.
type CooldownStore interface {
	// Acquire records the key if it is outside the window and reports whether
	// this caller may send. A false return means the alert is suppressed.
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)
}

// MemoryCooldown is a process-local cooldown store. Suitable for single
// instance deployments and tests; use RedisCooldown when running more than
// one replica.
type MemoryCooldown struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryCooldown creates an empty in-process cooldown store.
func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{seen: make(map[string]time.Time)}
}

// Acquire implements CooldownStore.
func (c *MemoryCooldown) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if last, ok := c.seen[key]; ok && now.Sub(last) < window {
		return false, nil
	}
	c.seen[key] = now

	// Opportunistic cleanup keeps the map bounded without a sweeper goroutine.
	for k, at := range c.seen {
		if now.Sub(at) >= window {
			delete(c.seen, k)
		}
	}
	return true, nil
}

// RedisCooldown shares the cooldown window across replicas via SET NX with
// expiry, so exactly one replica wins each window.
type RedisCooldown struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCooldown creates a Redis-backed cooldown store.
func NewRedisCooldown(client redis.UniversalClient) *RedisCooldown {
	return &RedisCooldown{client: client, prefix: "alerts:cooldown:"}
}

// Acquire implements CooldownStore.
func (c *RedisCooldown) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.prefix+key, time.Now().Unix(), window).Result()
}
