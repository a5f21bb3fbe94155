package auth

import (
	"testing"
	"time"

	"meal-planner/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssuer(t *testing.T) {
	issuer := NewIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	pair, err := issuer.Pair("user-1")
	if err != nil {
		t.Fatalf("Pair failed: %v", err)
	}

	claims, err := issuer.Parse(pair.AccessToken, TypeAccess)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != "user-1" || claims.ID == "" {
		t.Errorf("Unexpected claims %+v", claims)
	}

	t.Run("WrongType", func(t *testing.T) {
		if _, err := issuer.Parse(pair.AccessToken, TypeRefresh); !apperr.Is(err, "AUTH_002") {
			t.Errorf("Expected AUTH_002, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		defer func() { issuer.now = time.Now }()
		_, err := issuer.Parse(pair.AccessToken, TypeAccess)
		e, ok := apperr.As(err)
		if !ok || e.Message != "Token has expired" {
			t.Errorf("Expected expiry error, got %v", err)
		}
	})

	t.Run("ForeignSigningMethod", func(t *testing.T) {
		raw, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Type: TypeAccess}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if _, err := issuer.Parse(raw, TypeAccess); !apperr.Is(err, "AUTH_002") {
			t.Errorf("Expected AUTH_002, got %v", err)
		}
	})
}
