package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/acme-skills/internal/service"
)

// UserHandler lists accounts. model.User hides the password hash and GitHub
// id from JSON, so users are written out as-is.
type UserHandler struct {
	accounts *service.AuthService
	logger   *slog.Logger
}

func NewUserHandler(accounts *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, logger: logger}
}

// HandleList returns every user.
//
// HTTP: GET /users
// RESPONSE: [{"id": "...", "username": "moe"}, ...]
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
