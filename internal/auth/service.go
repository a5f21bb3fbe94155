package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"meal-planner/internal/apperr"
	"meal-planner/internal/cache"

	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence surface the Service needs. *Repository implements it.
type Store interface {
	Create(ctx context.Context, email, hashedPassword, name string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) (*User, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Session is a user together with a token pair.
type Session struct {
	User   *User      `json:"user"`
	Tokens *TokenPair `json:"tokens"`
}

type Service struct {
	store      Store
	issuer     *Issuer
	revocation cache.Store
	guard      *cache.LoginGuard
	bcryptCost int
}

// NewService wires the auth use cases. revocation and guard may be nil, which
// disables logout revocation and login throttling.
func NewService(store Store, issuer *Issuer, revocation cache.Store, guard *cache.LoginGuard, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: store, issuer: issuer, revocation: revocation, guard: guard, bcryptCost: bcryptCost}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	existing, err := s.store.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.EmailExists()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u, err := s.store.Create(ctx, in.Email, string(hash), in.Name)
	if errors.Is(err, ErrEmailTaken) {
		return nil, apperr.EmailExists()
	}
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

// Login checks credentials. Failed attempts count against the email's
// budget; a success clears it.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.InvalidCredentials()
	}
	if s.guard != nil {
		if err := s.guard.Check(ctx, email); err != nil {
			return nil, err
		}
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || u.HashedPassword == nil ||
		bcrypt.CompareHashAndPassword([]byte(*u.HashedPassword), []byte(in.Password)) != nil {
		if s.guard != nil {
			if err := s.guard.Fail(ctx, email); err != nil {
				log.Printf("%v", err)
			}
		}
		return nil, apperr.InvalidCredentials()
	}

	if s.guard != nil {
		if err := s.guard.Reset(ctx, email); err != nil {
			log.Printf("failed to reset login attempts: %v", err)
		}
	}
	return s.session(u)
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	if raw == "" {
		return nil, apperr.InvalidToken("Refresh token not provided")
	}
	claims, err := s.issuer.Parse(raw, TypeRefresh)
	if err != nil {
		return nil, err
	}
	if s.revocation != nil {
		revoked, err := cache.IsRevoked(ctx, s.revocation, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, apperr.InvalidToken("Token has been revoked")
		}
	}

	u, err := s.store.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.InvalidToken("User not found")
	}
	s.revoke(ctx, claims)
	return s.issuer.Pair(u.ID)
}

// Logout revokes the refresh token for the rest of its lifetime. Missing or
// already invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, raw string) {
	if raw == "" {
		return
	}
	claims, err := s.issuer.Parse(raw, TypeRefresh)
	if err != nil {
		return
	}
	s.revoke(ctx, claims)
}

func (s *Service) revoke(ctx context.Context, claims *Claims) {
	if s.revocation == nil || claims.ExpiresAt == nil {
		return
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := cache.Revoke(ctx, s.revocation, claims.ID, ttl); err != nil {
		log.Printf("failed to revoke token %s: %v", claims.ID, err)
	}
}

// Authenticate resolves an access token to its user id.
func (s *Service) Authenticate(raw string) (string, error) {
	claims, err := s.issuer.Parse(raw, TypeAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("User", userID)
	}
	return u, nil
}

func (s *Service) UpdateMe(ctx context.Context, userID string, in ProfileUpdate) (*User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	in.apply(u)
	return s.store.Update(ctx, u)
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	ok, err := s.store.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("User", userID)
	}
	return nil
}

func (s *Service) session(u *User) (*Session, error) {
	tokens, err := s.issuer.Pair(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Tokens: tokens}, nil
}
