package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestRedis(t *testing.T) *Redis {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping integration test")
	}
	r, err := NewRedis(context.Background(), url)
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedisIncrAnchorsExpiry(t *testing.T) {
	ctx := context.Background()
	r := openTestRedis(t)
	key := "test:incr:" + uuid.NewString()
	t.Cleanup(func() { r.Del(ctx, key) })

	if n, err := r.Incr(ctx, key, time.Hour); err != nil || n != 1 {
		t.Fatalf("first Incr = %d, %v", n, err)
	}
	first, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		t.Fatal(err)
	}
	if first <= 0 || first > time.Hour {
		t.Fatalf("Expected a 1h window, got %v", first)
	}

	// A later increment with a longer ttl must not extend the window.
	if n, err := r.Incr(ctx, key, 48*time.Hour); err != nil || n != 2 {
		t.Fatalf("second Incr = %d, %v", n, err)
	}
	second, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		t.Fatal(err)
	}
	if second > first {
		t.Errorf("Expiry was extended from %v to %v", first, second)
	}

	if n, err := r.Decr(ctx, key); err != nil || n != 1 {
		t.Fatalf("Decr = %d, %v", n, err)
	}
	if ttl, _ := r.client.PTTL(ctx, key).Result(); ttl <= 0 {
		t.Errorf("Decr dropped the expiry, PTTL = %v", ttl)
	}
}

func TestRedisLimiter(t *testing.T) {
	ctx := context.Background()
	r := openTestRedis(t)
	user := uuid.NewString()
	l := NewLimiter(r, map[string]int{ExternalSearch: 2}, false)
	t.Cleanup(func() { r.Del(ctx, l.key(ExternalSearch, user)) })

	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, ExternalSearch, user); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, ExternalSearch, user); err == nil {
		t.Fatal("Expected the third call to be limited")
	}
	if err := l.Release(ctx, ExternalSearch, user); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow(ctx, ExternalSearch, user); err != nil {
		t.Errorf("Expected a released unit to be reusable, got %v", err)
	}
}
