package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pulsedelta/backend/internal/server/response"
)

// Auth returns middleware that validates requests using either a Bearer
// token in the Authorization header or a static key in the X-API-Key header.
// If apiKey is empty, the middleware passes all requests through (disabled).
func Auth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				response.Error(w, http.StatusUnauthorized, "missing authentication token", nil)
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				response.Error(w, http.StatusUnauthorized, "invalid authentication token", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// TokenVerifier resolves a bearer token to a wallet address.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// WalletAuth returns middleware that binds the request to the wallet named
// by a bearer token. A presented token must verify. When required is set, a
// request without one is rejected as well.
func WalletAuth(verifier TokenVerifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if required {
					response.Error(w, http.StatusUnauthorized, "Authentication required", nil)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			wallet, err := verifier.Verify(token)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "Authentication failed", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), walletKey, wallet)))
		})
	}
}

// WalletFrom returns the wallet address bound by WalletAuth, if any.
func WalletFrom(ctx context.Context) (string, bool) {
	wallet, ok := ctx.Value(walletKey).(string)
	return wallet, ok && wallet != ""
}
