package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"meal-planner/internal/apperr"
	"meal-planner/internal/cache"

	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	users map[string]*User
	seq   int
}

func newFakeStore() *fakeStore { return &fakeStore{users: map[string]*User{}} }

func (f *fakeStore) Create(ctx context.Context, email, hashedPassword, name string) (*User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return nil, ErrEmailTaken
		}
	}
	f.seq++
	u := &User{ID: fmt.Sprintf("user-%d", f.seq), Email: email, HashedPassword: &hashedPassword, Name: name,
		Provider: "email", ServingsDefault: 4, DietaryRestrictions: []string{}, Allergens: []string{}}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Update(ctx context.Context, u *User) (*User, error) {
	cp := *u
	f.users[u.ID] = &cp
	return u, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) (bool, error) {
	_, ok := f.users[id]
	delete(f.users, id)
	return ok, nil
}

func newTestService(store Store) (*Service, cache.Store) {
	mem := cache.NewMemory()
	issuer := NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	return NewService(store, issuer, mem, cache.NewLoginGuard(mem, 3, 15*time.Minute), bcrypt.MinCost), mem
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newFakeStore())

	sess, err := svc.Register(ctx, RegisterInput{Email: " Cook@Example.com ", Password: "password123", Name: " Cook "})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if sess.User.Email != "cook@example.com" || sess.User.Name != "Cook" {
		t.Errorf("Expected normalized user, got %+v", sess.User)
	}
	if sess.Tokens.AccessToken == "" || sess.Tokens.RefreshToken == "" || sess.Tokens.TokenType != "Bearer" {
		t.Errorf("Unexpected tokens %+v", sess.Tokens)
	}
	if sess.Tokens.ExpiresIn != 900 {
		t.Errorf("Expected expires_in 900, got %d", sess.Tokens.ExpiresIn)
	}

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Email: "cook@example.com", Password: "password123", Name: "Other"})
		if !apperr.Is(err, "AUTH_003") {
			t.Errorf("Expected AUTH_003, got %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		cases := []RegisterInput{
			{Email: "not-an-email", Password: "password123", Name: "A"},
			{Email: "a@example.com", Password: "short", Name: "A"},
			{Email: "a@example.com", Password: "password123", Name: " "},
		}
		for _, in := range cases {
			if _, err := svc.Register(ctx, in); !apperr.Is(err, "GENERAL_001") {
				t.Errorf("Expected GENERAL_001 for %+v, got %v", in, err)
			}
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newFakeStore())
	if _, err := svc.Register(ctx, RegisterInput{Email: "cook@example.com", Password: "password123", Name: "Cook"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := svc.Login(ctx, LoginInput{Email: "COOK@example.com", Password: "password123"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginInput{Email: "cook@example.com", Password: "wrong-password"})
		if !apperr.Is(err, "AUTH_001") {
			t.Errorf("Expected AUTH_001, got %v", err)
		}
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password123"})
		if !apperr.Is(err, "AUTH_001") {
			t.Errorf("Expected AUTH_001, got %v", err)
		}
	})

	t.Run("Throttled", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			svc.Login(ctx, LoginInput{Email: "cook@example.com", Password: "wrong-password"})
		}
		_, err := svc.Login(ctx, LoginInput{Email: "cook@example.com", Password: "password123"})
		if !apperr.Is(err, "GENERAL_002") {
			t.Errorf("Expected GENERAL_002 after repeated failures, got %v", err)
		}
	})
}

func TestRefreshAndLogout(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newFakeStore())
	sess, err := svc.Register(ctx, RegisterInput{Email: "cook@example.com", Password: "password123", Name: "Cook"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	t.Run("AccessTokenRejected", func(t *testing.T) {
		if _, err := svc.Refresh(ctx, sess.Tokens.AccessToken); !apperr.Is(err, "AUTH_002") {
			t.Errorf("Expected AUTH_002, got %v", err)
		}
	})

	pair, err := svc.Refresh(ctx, sess.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if userID, err := svc.Authenticate(pair.AccessToken); err != nil || userID != sess.User.ID {
		t.Errorf("Expected new access token for %s, got %s (%v)", sess.User.ID, userID, err)
	}

	t.Run("RotatedTokenRevoked", func(t *testing.T) {
		if _, err := svc.Refresh(ctx, sess.Tokens.RefreshToken); !apperr.Is(err, "AUTH_002") {
			t.Errorf("Expected AUTH_002 for reused refresh token, got %v", err)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		svc.Logout(ctx, pair.RefreshToken)
		if _, err := svc.Refresh(ctx, pair.RefreshToken); !apperr.Is(err, "AUTH_002") {
			t.Errorf("Expected AUTH_002 after logout, got %v", err)
		}
		svc.Logout(ctx, "garbage")
	})
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc, _ := newTestService(store)
	sess, _ := svc.Register(ctx, RegisterInput{Email: "cook@example.com", Password: "password123", Name: "Cook"})
	id := sess.User.ID

	name, servings := "Chef", 2
	allergens := []string{" peanut ", ""}
	u, err := svc.UpdateMe(ctx, id, ProfileUpdate{Name: &name, ServingsDefault: &servings, Allergens: &allergens})
	if err != nil {
		t.Fatalf("UpdateMe failed: %v", err)
	}
	if u.Name != "Chef" || u.ServingsDefault != 2 || len(u.Allergens) != 1 || u.Allergens[0] != "peanut" {
		t.Errorf("Unexpected profile %+v", u)
	}

	bad := 21
	if _, err := svc.UpdateMe(ctx, id, ProfileUpdate{ServingsDefault: &bad}); !apperr.Is(err, "GENERAL_001") {
		t.Errorf("Expected GENERAL_001, got %v", err)
	}

	if err := svc.DeleteMe(ctx, id); err != nil {
		t.Fatalf("DeleteMe failed: %v", err)
	}
	if _, err := svc.Me(ctx, id); !apperr.Is(err, "USER_001") {
		t.Errorf("Expected USER_001, got %v", err)
	}
}
