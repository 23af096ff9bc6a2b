package handler

import (
	"net/http"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/auth"
)

// callerHandlerFunc is a handler that needs to know who is calling.
type callerHandlerFunc func(w http.ResponseWriter, r *http.Request, caller auth.Caller)

// withCaller adapts a callerHandlerFunc to http.HandlerFunc.
//
// auth.RequireAuth has already verified the token and put the Caller in the
// request context. This adapter reads it exactly once and passes it on as a
// plain argument, so handlers never look at headers or the context for
// identity. On a route without RequireAuth it answers 401.
func withCaller(fn callerHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.CallerFromContext(r.Context())
		if !ok {
			writeError(w, apperror.Unauthorized("authentication required"))
			return
		}
		fn(w, r, caller)
	}
}
