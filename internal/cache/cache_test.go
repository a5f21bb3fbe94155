package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"meal-planner/internal/apperr"
)

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestLimiterCountsFailures(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	l := NewLimiter(mem, map[string]int{URLExtraction: 2}, true)
	l.now = fixedNow(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))

	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, URLExtraction, "u1"); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
	}
	err := l.Allow(ctx, URLExtraction, "u1")
	if !apperr.Is(err, "GENERAL_002") {
		t.Fatalf("Expected GENERAL_002, got %v", err)
	}

	key := "url_extraction:rate_limit:u1:2024-01-01"
	if ttl := mem.TTL(key); ttl <= 0 || ttl > 24*time.Hour {
		t.Errorf("Expected a 24h window on %s, got %v", key, ttl)
	}

	// Other users are unaffected.
	if err := l.Allow(ctx, URLExtraction, "u2"); err != nil {
		t.Errorf("Expected u2 to be allowed, got %v", err)
	}
}

func TestLimiterReleaseOnFailure(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemory(), map[string]int{ExternalSearch: 1}, false)

	// Failed work hands its unit back, so the user keeps trying.
	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, ExternalSearch, "u1"); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
		if err := l.Release(ctx, ExternalSearch, "u1"); err != nil {
			t.Fatal(err)
		}
	}

	// A successful call keeps its unit.
	if err := l.Allow(ctx, ExternalSearch, "u1"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := l.Allow(ctx, ExternalSearch, "u1"); !apperr.Is(err, "GENERAL_002") {
		t.Fatalf("Expected limit after a kept unit, got %v", err)
	}
	// The rejected attempt is not left on the counter.
	if used, _ := l.Used(ctx, ExternalSearch, "u1"); used != 1 {
		t.Errorf("Expected 1 used, got %d", used)
	}
	if n, _ := l.Remaining(ctx, ExternalSearch, "u1"); n != 0 {
		t.Errorf("Expected 0 remaining, got %d", n)
	}
}

func TestLimiterReleaseIgnoredWhenFailuresCount(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemory(), map[string]int{ExternalSearch: 1}, true)
	if err := l.Allow(ctx, ExternalSearch, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(ctx, ExternalSearch, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow(ctx, ExternalSearch, "u1"); !apperr.Is(err, "GENERAL_002") {
		t.Errorf("Expected failures to stay charged, got %v", err)
	}
}

func TestLimiterConcurrentCallersShareTheLastUnit(t *testing.T) {
	for _, countFailures := range []bool{true, false} {
		ctx := context.Background()
		l := NewLimiter(NewMemory(), map[string]int{URLExtraction: 1}, countFailures)

		var (
			wg      sync.WaitGroup
			allowed atomic.Int32
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.Allow(ctx, URLExtraction, "u1") == nil {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()
		if n := allowed.Load(); n != 1 {
			t.Errorf("countFailures=%v: expected exactly one caller through, got %d", countFailures, n)
		}
	}
}

func TestLimiterNewDayResets(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemory(), map[string]int{URLExtraction: 1}, true)
	l.now = fixedNow(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC))
	_ = l.Allow(ctx, URLExtraction, "u1")
	if err := l.Allow(ctx, URLExtraction, "u1"); err == nil {
		t.Fatal("Expected the second call to be limited")
	}
	l.now = fixedNow(time.Date(2024, 1, 2, 0, 1, 0, 0, time.UTC))
	if err := l.Allow(ctx, URLExtraction, "u1"); err != nil {
		t.Errorf("Expected a fresh quota on a new day, got %v", err)
	}
}

func TestLimiterUnknownClass(t *testing.T) {
	l := NewLimiter(NewMemory(), map[string]int{}, true)
	if err := l.Allow(context.Background(), "nope", "u1"); err == nil {
		t.Error("Expected error for unknown class")
	}
}

func TestMemoryIncrKeepsFirstExpiry(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mem.now = fixedNow(start)
	mem.Incr(ctx, "k", time.Hour)

	mem.now = fixedNow(start.Add(30 * time.Minute))
	n, _ := mem.Incr(ctx, "k", time.Hour)
	if n != 2 {
		t.Fatalf("Expected 2, got %d", n)
	}
	if ttl := mem.TTL("k"); ttl != 30*time.Minute {
		t.Errorf("Expected expiry to stay anchored, got %v", ttl)
	}

	mem.now = fixedNow(start.Add(2 * time.Hour))
	if _, err := mem.Get(ctx, "k"); err != ErrMiss {
		t.Errorf("Expected expired key to miss, got %v", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	type payload struct{ Title string }

	var got payload
	ok, err := GetJSON(ctx, mem, "missing", &got)
	if err != nil || ok {
		t.Fatalf("Expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := SetJSON(ctx, mem, "k", payload{Title: "김치찌개"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	ok, err = GetJSON(ctx, mem, "k", &got)
	if err != nil || !ok || got.Title != "김치찌개" {
		t.Errorf("Unexpected result: ok=%v err=%v got=%+v", ok, err, got)
	}
}

func TestRevocation(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	if revoked, _ := IsRevoked(ctx, mem, "jti-1"); revoked {
		t.Fatal("Expected fresh token to be valid")
	}
	if err := Revoke(ctx, mem, "jti-1", time.Hour); err != nil {
		t.Fatal(err)
	}
	if revoked, _ := IsRevoked(ctx, mem, "jti-1"); !revoked {
		t.Error("Expected token to be revoked")
	}
}

func TestLoginGuard(t *testing.T) {
	ctx := context.Background()
	g := NewLoginGuard(NewMemory(), 2, 15*time.Minute)

	for i := 0; i < 2; i++ {
		if err := g.Check(ctx, "A@x.com"); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		g.Fail(ctx, "a@x.com")
	}
	if err := g.Check(ctx, " a@X.com"); !apperr.Is(err, "GENERAL_002") {
		t.Fatalf("Expected lockout, got %v", err)
	}
	g.Reset(ctx, "a@x.com")
	if err := g.Check(ctx, "a@x.com"); err != nil {
		t.Errorf("Expected reset to clear lockout, got %v", err)
	}
}
