package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nasuf/dictation-studio-service/internal/pkg/env"
)

// AccessTokenTTL is how long an issued access token stays valid.
const AccessTokenTTL = 120 * time.Minute

// RefreshWindow is the remaining lifetime below which an authenticated
// request gets a fresh token attached to its response.
const RefreshWindow = 5 * time.Minute

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the claims carried by an access token. Subject is the user's
// email, ID the unique token identifier used for revocation.
type Claims struct {
	jwt.RegisteredClaims
}

func signingSecret() []byte {
	return []byte(env.GetEnv("JWT_SECRET_KEY", "dev-secret-change-me"))
}

// IssueToken creates a signed access token for the given user.
func IssueToken(email string, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingSecret())
}

// ParseToken validates a signed access token and returns its claims.
func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return signingSecret(), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NeedsRefresh reports whether a token's remaining lifetime has dropped
// inside the refresh window.
func (c *Claims) NeedsRefresh(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Time.Sub(now) < RefreshWindow
}
