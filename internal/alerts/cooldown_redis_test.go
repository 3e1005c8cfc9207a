package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCooldown(t *testing.T) (*RedisCooldown, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCooldown(client), mr
}

func TestRedisCooldownAcquire(t *testing.T) {
	store, _ := newRedisCooldown(t)
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "db|critical", 15*time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire must win")
	}

	ok, err = store.Acquire(ctx, "db|critical", 15*time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ok {
		t.Fatal("second acquire inside window must lose")
	}

	// A different key is an independent window.
	if ok, _ := store.Acquire(ctx, "crm|warning", 15*time.Minute); !ok {
		t.Fatal("unrelated key must not share the window")
	}
}

func TestRedisCooldownExpiry(t *testing.T) {
	store, mr := newRedisCooldown(t)
	ctx := context.Background()

	if ok, _ := store.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("first acquire must win")
	}

	mr.FastForward(2 * time.Minute)

	if ok, _ := store.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("acquire after expiry must win")
	}
}
