package middleware

import (
	"context"
	"net/http"
	"strings"
)

// TokenVerifier validates an access token against the managed identity
// provider. Satisfied by the identity client.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) error
}

// BearerAuth guards the internal stats endpoints. The pipeline routes
// stay anonymous; only authenticated staff reach usage data.
func BearerAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			if err := verifier.Verify(r.Context(), token); err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
