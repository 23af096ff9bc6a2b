package middleware

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"
)

// CORS returns a middleware that answers preflight requests and adds the
// Access-Control-* headers for the given origins. The browser client runs
// on its own origin and sends the token in the Authorization header, so that
// header must be allowed explicitly.
//
// An empty origins list allows no cross-origin requests: no CORS headers
// are written at all. rs/cors would read an empty list as "any origin", so
// that case never reaches it. "*" allows any origin; credentials are then
// disabled, since browsers refuse a wildcard origin combined with
// credentials.
func CORS(origins []string, logger *slog.Logger) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		logger.Debug("CORS disabled; no allowed origins configured")
		return func(next http.Handler) http.Handler { return next }
	}

	allowCredentials := true
	for _, o := range origins {
		if o == "*" {
			allowCredentials = false
			break
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})

	logger.Debug("CORS enabled", slog.Any("origins", origins))
	return c.Handler
}
