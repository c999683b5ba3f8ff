package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tenantauth/tenantauth/internal/db/models"
)

// Claims is the access token payload. Roles are the names assigned at
// issuance time; they are informational only. Authorization decisions
// re-resolve permissions from the live role assignments, so a role
// revoked mid-session denies the next check regardless of this claim.
type Claims struct {
	Email    string   `json:"email"`
	TenantID uint64   `json:"tenant_id"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and parses signed access tokens. It is stateless:
// the same key, payload and clock always produce the same token.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates a TokenIssuer signing with HMAC-SHA256.
func NewTokenIssuer(signingKey, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Generate mints a signed access token for the user with the given role
// name snapshot.
func (i *TokenIssuer) Generate(user *models.User, roles []string) (string, error) {
	now := i.now()

	claims := Claims{
		Email:    user.Email,
		TenantID: user.TenantID,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, nil
}

// Parse verifies the signature and standard claims of an access token.
// Expired tokens return ErrTokenExpired; every other failure returns
// ErrTokenInvalidOrRotated.
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := new(Claims)

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}

			return i.signingKey, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, ErrTokenInvalidOrRotated
	}

	return claims, nil
}
