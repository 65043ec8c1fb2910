// Package auth turns a bearer token, or headers set by a trusted gateway,
// into the actor, location and permissions of a request.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/herbstock/herbstock-backend/pkg/config"
	apperrors "github.com/herbstock/herbstock-backend/pkg/errors"
)

// Claims represents the JWT claims issued by the identity layer
type Claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"user_id"`
	Name        string   `json:"name,omitempty"`
	LocationID  string   `json:"location_id"`
	Permissions []string `json:"permissions,omitempty"`
}

// Manager signs and verifies HS256 access tokens
type Manager struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewManager creates a new JWT manager
func NewManager(cfg *config.JWTConfig) *Manager {
	return &Manager{config: cfg, now: time.Now}
}

// Identity is the subject a token is issued for
type Identity struct {
	UserID      string
	Name        string
	LocationID  string
	Permissions []string
}

// Issue signs an access token. The identity layer owns login; this exists
// for service-to-service calls, tooling and tests.
func (m *Manager) Issue(id Identity) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		UserID:      id.UserID,
		Name:        id.Name,
		LocationID:  id.LocationID,
		Permissions: id.Permissions,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
}

// Parse validates an access token and returns its claims
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.TokenInvalid()
		}
		return []byte(m.config.Secret), nil
	},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Unauthorized("token expired")
		}
		return nil, apperrors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.TokenInvalid()
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}

	return claims, nil
}
