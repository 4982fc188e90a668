package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/doclens/doclens/internal/api/response"
)

const internalTokenHeader = "X-Internal-Token"

// InternalAuth guards service-to-service endpoints with a shared secret.
// The comparison is constant time so the token cannot be probed byte by
// byte through response timing.
func InternalAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(internalTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				response.Error(w, http.StatusUnauthorized,
					"INVALID_TOKEN", "Missing or invalid internal token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
