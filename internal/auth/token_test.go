package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/tenantauth/tenantauth/internal/db/models"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func tokenUser() *models.User {
	return &models.User{
		ID:       42,
		TenantID: 3,
		Email:    "a@x.test",
	}
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, "tenantauth", 15*time.Minute)

	token, err := issuer.Generate(tokenUser(), []string{"admin", "member"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if claims.Subject != "42" {
		t.Errorf("expected subject 42, got %q", claims.Subject)
	}

	if claims.TenantID != 3 {
		t.Errorf("expected tenant 3, got %d", claims.TenantID)
	}

	if claims.Email != "a@x.test" {
		t.Errorf("expected email a@x.test, got %q", claims.Email)
	}

	if len(claims.Roles) != 2 || claims.Roles[0] != "admin" {
		t.Errorf("unexpected roles: %v", claims.Roles)
	}

	if claims.ID == "" {
		t.Error("expected a jti claim")
	}
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, "tenantauth", time.Minute)

	token, err := issuer.Generate(tokenUser(), nil)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	// Move the verification clock past the expiry.
	issuer.now = func() time.Time {
		return time.Now().Add(2 * time.Minute)
	}

	if _, err := issuer.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenWrongKey(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, "tenantauth", time.Minute)
	other := NewTokenIssuer("another-key-another-key-another!", "tenantauth", time.Minute)

	token, err := issuer.Generate(tokenUser(), nil)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := other.Parse(token); !errors.Is(err, ErrTokenInvalidOrRotated) {
		t.Fatalf("expected ErrTokenInvalidOrRotated, got %v", err)
	}
}

func TestTokenWrongIssuer(t *testing.T) {
	minted := NewTokenIssuer(testSigningKey, "someone-else", time.Minute)
	verifier := NewTokenIssuer(testSigningKey, "tenantauth", time.Minute)

	token, err := minted.Generate(tokenUser(), nil)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := verifier.Parse(token); !errors.Is(err, ErrTokenInvalidOrRotated) {
		t.Fatalf("expected ErrTokenInvalidOrRotated, got %v", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, "tenantauth", time.Minute)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := issuer.Parse(token); !errors.Is(err, ErrTokenInvalidOrRotated) {
			t.Fatalf("token %q: expected ErrTokenInvalidOrRotated, got %v", token, err)
		}
	}
}
