// Package auth handles session token issuance and credential verification.
// Sessions are stateless HS256 JWTs carrying only the user id; permissions are
// resolved from the database on every request, so a token never has to be
// reissued when a user's flags change.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/inevitable-science/article-registry/internal/db/models"
)

// ErrInvalidToken is returned for any token that fails parsing, signature
// verification, or expiry. Callers do not distinguish why
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT claims structure
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies session tokens with a shared secret
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService builds a token service. The secret comes from the
// environment via config; an empty secret is rejected at startup, not here.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed session token for the user
func (s *TokenService) Issue(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: models.CanonicalID(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "article-registry",
			Subject:   models.CanonicalID(userID),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a session token, returning the canonical user
// id it names. The id is untrusted until the caller matches it against a
// stored user.
func (s *TokenService) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return "", ErrInvalidToken
	}
	return models.CanonicalID(claims.UserID), nil
}
