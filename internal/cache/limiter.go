package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"meal-planner/internal/apperr"
)

// Quota classes. The value doubles as the Redis key prefix.
const (
	URLExtraction  = "url_extraction:rate_limit"
	ExternalSearch = "external_recipe:rate_limit"
)

const dayWindow = 24 * time.Hour

// Limiter enforces per-user daily quotas.
//
// Allow always reserves one unit with a single atomic increment, so two
// concurrent callers can never both take the last unit. With countFailures
// unset, callers hand the unit back through Release when the work fails.
type Limiter struct {
	store         Store
	limits        map[string]int
	countFailures bool
	now           func() time.Time
}

func NewLimiter(store Store, limits map[string]int, countFailures bool) *Limiter {
	return &Limiter{store: store, limits: limits, countFailures: countFailures, now: time.Now}
}

func (l *Limiter) key(class, userID string) string {
	return fmt.Sprintf("%s:%s:%s", class, userID, l.now().Format("2006-01-02"))
}

func (l *Limiter) limit(class string) (int, error) {
	n, ok := l.limits[class]
	if !ok {
		return 0, fmt.Errorf("unknown rate limit class %q", class)
	}
	return n, nil
}

// Allow reserves one unit of class for the user, or returns
// apperr.RateLimited once today's quota is exhausted.
func (l *Limiter) Allow(ctx context.Context, class, userID string) error {
	ceiling, err := l.limit(class)
	if err != nil {
		return err
	}
	key := l.key(class, userID)
	n, err := l.store.Incr(ctx, key, dayWindow)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if n > int64(ceiling) {
		if !l.countFailures {
			if _, err := l.store.Decr(ctx, key); err != nil {
				log.Printf("Failed to release rejected %s unit for %s: %v", class, userID, err)
			}
		}
		return exceeded(class, ceiling)
	}
	return nil
}

// Release hands back the unit reserved by Allow when the work failed. It is
// a no-op when failures are counted.
func (l *Limiter) Release(ctx context.Context, class, userID string) error {
	if l.countFailures {
		return nil
	}
	if _, err := l.store.Decr(ctx, l.key(class, userID)); err != nil {
		return fmt.Errorf("failed to release rate limit unit: %w", err)
	}
	return nil
}

// Used returns how many units the user consumed today.
func (l *Limiter) Used(ctx context.Context, class, userID string) (int, error) {
	raw, err := l.store.Get(ctx, l.key(class, userID))
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit: %w", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse rate limit counter: %w", err)
	}
	return n, nil
}

// Remaining returns the units left today, never negative.
func (l *Limiter) Remaining(ctx context.Context, class, userID string) (int, error) {
	ceiling, err := l.limit(class)
	if err != nil {
		return 0, err
	}
	used, err := l.Used(ctx, class, userID)
	if err != nil {
		return 0, err
	}
	return max(0, ceiling-used), nil
}

func exceeded(class string, ceiling int) error {
	switch class {
	case URLExtraction:
		return apperr.RateLimited(fmt.Sprintf("Daily URL extraction limit (%d) exceeded", ceiling))
	case ExternalSearch:
		return apperr.RateLimited(fmt.Sprintf("Daily external recipe search limit (%d) exceeded", ceiling))
	}
	return apperr.RateLimited(fmt.Sprintf("Daily limit (%d) exceeded", ceiling))
}
