package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/pkg/errorbank"
)

// Module provides the token manager to the Fx graph.
var Module = fx.Provide(NewTokenManager)

// Actor is an authenticated caller. Admin is a capability resolved against
// the configured privileged identity, not a stored role.
type Actor struct {
	ID    int64
	Admin bool
}

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies session tokens and resolves the admin
// capability for authenticated identities.
type TokenManager struct {
	secret      []byte
	ttl         time.Duration
	adminUserID int64
}

// NewTokenManager builds a TokenManager from configuration.
func NewTokenManager(cfg config.Config) *TokenManager {
	return &TokenManager{
		secret:      []byte(cfg.Auth.JWTSecret),
		ttl:         cfg.Auth.TokenTTL,
		adminUserID: cfg.Auth.AdminUserID,
	}
}

// Issue signs a token for the given user.
func (m *TokenManager) Issue(userID int64) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses a token and returns the actor it authenticates.
func (m *TokenManager) Verify(tokenString string) (Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errorbank.Unauthorized("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return Actor{}, errorbank.Unauthorized("invalid or expired token", errorbank.WithCause(err))
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Actor{}, errorbank.Unauthorized("invalid token claims")
	}
	return m.Resolve(claims.UserID), nil
}

// Resolve returns the actor for a user id, granting the admin capability
// when the id matches the configured privileged identity.
func (m *TokenManager) Resolve(userID int64) Actor {
	return Actor{ID: userID, Admin: m.adminUserID != 0 && userID == m.adminUserID}
}
