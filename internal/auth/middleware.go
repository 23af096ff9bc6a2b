package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Caller is the authenticated identity bound to a request.
//
// It is derived exactly once, by RequireAuth, from the verified token.
// Downstream code receives a Caller value and never re-reads raw headers.
type Caller struct {
	UserID string
}

// TokenVerifier is the subset of TokenService the guard needs.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of type contextKey, so only this
// package can read or write the Caller stored under it.
type contextKey string

const callerKey contextKey = "caller"

// WithCaller returns a copy of ctx carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext retrieves the authenticated caller.
// Returns (Caller{}, false) if the request did not pass RequireAuth.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok && c.UserID != ""
}

// RequireAuth is a middleware that enforces authentication on protected
// routes.
//
// Per request it runs a small state machine:
//
//	Unauthenticated → (Authorization header present?) → Verifying → Authenticated | Rejected
//
// A missing header or a token that fails verification ends in Rejected with
// 401; otherwise the Caller is stored in the request context and the chain
// continues.
func RequireAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeGuardError(w, http.StatusUnauthorized, "unauthorized", "authorization header required")
				return
			}

			userID, err := tokens.Verify(header)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrTokenExpired) {
					msg = "token expired"
				}
				writeGuardError(w, http.StatusUnauthorized, "unauthorized", msg)
				return
			}

			ctx := WithCaller(r.Context(), Caller{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwner is a middleware for routes nested under a user id, such as
// /users/{id}/favorites. It must run after RequireAuth.
//
// The path parameter named param must equal the caller's user id. A
// mismatch is rejected with 403 before any handler (and therefore any
// storage access) runs, whether or not the addressed resource exists.
func RequireOwner(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				writeGuardError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			if chi.URLParam(r, param) != caller.UserID {
				writeGuardError(w, http.StatusForbidden, "forbidden", "cannot access another user's resources")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeGuardError emits the same {"error","code"} body shape the handler
// package uses, without importing it.
func writeGuardError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
