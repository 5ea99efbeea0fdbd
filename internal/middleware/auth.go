package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"
)

// AuthHeader carries the shared API token, compared verbatim.
const AuthHeader = "Authorization"

// TokenAuth guards write endpoints with a static shared secret.
type TokenAuth struct {
	token []byte
}

// NewTokenAuth creates a TokenAuth. An empty token rejects every request.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: []byte(token)}
}

// Valid reports whether the presented value matches the configured token exactly.
func (a *TokenAuth) Valid(presented string) bool {
	if len(a.token) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), a.token) == 1
}

// RequireToken rejects requests whose Authorization header is not the token.
func (a *TokenAuth) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Valid(r.Header.Get(AuthHeader)) {
			log.Debug().Str("remote", r.RemoteAddr).Msg("Rejected request with bad token")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
