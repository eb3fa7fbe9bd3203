// Package identity issues and verifies session tokens and exposes the acting
// user to handlers as an opaque {id, email} pair. Sign-in itself lives
// outside this service; anything that can mint a token with the shared
// secret can act as the session provider.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
)

const (
	defaultTTL  = 24 * time.Hour
	sessionType = "session"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims are the JWT claims of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Type  string `json:"type"`
}

// TokenIssuer issues and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer. The secret must be at least 32
// bytes. A zero ttl defaults to 24 hours.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes, got %d", len(secret))
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// Issue creates a signed session token for id.
func (t *TokenIssuer) Issue(id model.Identity) (string, error) {
	if id.ID == uuid.Nil {
		return "", errors.New("identity id is required")
	}
	now := time.Now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   id.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Email: strings.ToLower(id.Email),
		Type:  sessionType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses a session token and returns the identity it carries.
func (t *TokenIssuer) Verify(tokenStr string) (model.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Type != sessionType {
		return model.Identity{}, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return model.Identity{ID: id, Email: claims.Email}, nil
}
