package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	infraauth "github.com/nabolaget/vibbobridge/internal/infrastructure/auth"
)

// RequireToken validates a Bearer token issued by the token endpoint. When
// the issuer is nil (no API secret configured) the middleware is a noop.
func RequireToken(issuer *infraauth.TokenIssuer, log zerolog.Logger) func(next http.Handler) http.Handler {
	if issuer == nil {
		return noopMiddleware
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"code":"unauthorized","message":"missing bearer token"}}`))
				return
			}
			client, err := issuer.Validate(raw)
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"code":"unauthorized","message":"invalid or expired token"}}`))
				return
			}
			r.Header.Set("X-Api-Client", client)
			next.ServeHTTP(w, r)
		})
	}
}
