// Package auth issues and verifies the bearer tokens that bind a request to
// a wallet address.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pulsedelta/backend/internal/domain"
)

// Claims are the wallet token claims. The subject is the lower-cased wallet
// address.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 wallet tokens.
type TokenManager struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewTokenManager creates a TokenManager. Tokens expire after expiration.
func NewTokenManager(secret string, expiration time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// Issue signs a token for address.
func (m *TokenManager) Issue(address string) (string, error) {
	if address == "" {
		return "", errors.New("auth: issue: empty address")
	}
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(address),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: issue: %w", err)
	}
	return signed, nil
}

// Verify validates tokenString and returns the wallet address it carries.
// Every failure wraps domain.ErrUnauthorized.
func (m *TokenManager) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return m.secret, nil
		},
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("auth: verify: %w: %w", domain.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("auth: verify: %w: missing subject", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}
