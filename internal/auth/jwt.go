// Package auth issues and verifies the bearer tokens carried on every
// authenticated request.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/models"
)

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// Issue signs an HS256 token for the account.
func (m *Manager) Issue(accountID string, role models.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify parses and validates a token, returning its claims.
func (m *Manager) Verify(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Authf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.Wrap(apperr.KindAuth, err, "invalid token")
	}
	if claims.Subject == "" {
		return nil, apperr.Authf("token missing subject")
	}
	return &claims, nil
}
