package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"meal-planner/internal/apperr"
)

const revokedPrefix = "auth:revoked:"

// Revoke marks a token id as unusable for ttl.
func Revoke(ctx context.Context, s Store, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.Set(ctx, revokedPrefix+jti, "1", ttl)
}

func IsRevoked(ctx context.Context, s Store, jti string) (bool, error) {
	_, err := s.Get(ctx, revokedPrefix+jti)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return true, nil
}

// LoginGuard counts failed logins per email inside a fixed window.
type LoginGuard struct {
	store    Store
	attempts int
	window   time.Duration
}

func NewLoginGuard(store Store, attempts int, window time.Duration) *LoginGuard {
	return &LoginGuard{store: store, attempts: attempts, window: window}
}

func (g *LoginGuard) key(email string) string {
	return "auth:login_attempts:" + strings.ToLower(strings.TrimSpace(email))
}

// Check rejects the attempt once the failure budget is spent.
func (g *LoginGuard) Check(ctx context.Context, email string) error {
	raw, err := g.store.Get(ctx, g.key(email))
	if errors.Is(err, ErrMiss) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read login attempts: %w", err)
	}
	n, _ := strconv.Atoi(raw)
	if n >= g.attempts {
		return apperr.RateLimited(fmt.Sprintf("Too many login attempts. Try again in %d minutes", int(g.window.Minutes())))
	}
	return nil
}

func (g *LoginGuard) Fail(ctx context.Context, email string) error {
	if _, err := g.store.Incr(ctx, g.key(email), g.window); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

func (g *LoginGuard) Reset(ctx context.Context, email string) error {
	return g.store.Del(ctx, g.key(email))
}
