package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/acme-skills/internal/auth"
	"github.com/sakif/acme-skills/internal/service"
)

// FavoriteHandler serves /users/{id}/favorites.
//
// These routes sit behind auth.RequireAuth and auth.RequireOwner("id"), so
// by the time a method runs the {id} path segment is known to equal the
// caller's user id. The handlers use caller.UserID, never the path value.
type FavoriteHandler struct {
	favorites *service.FavoriteService
	logger    *slog.Logger
}

func NewFavoriteHandler(favorites *service.FavoriteService, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{favorites: favorites, logger: logger}
}

type createFavoriteRequest struct {
	SkillID string `json:"skill_id"`
}

// HandleList returns the caller's favorites.
//
// HTTP: GET /users/{id}/favorites
func (h *FavoriteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	withCaller(h.list)(w, r)
}

func (h *FavoriteHandler) list(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	favs, err := h.favorites.ListForUser(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

// HandleCreate favorites a skill.
//
// HTTP: POST /users/{id}/favorites
// REQUEST BODY: {"skill_id": "..."}
// RESPONSE: 201 {"id","user_id","skill_id"}; 400, 404 unknown skill, 409 duplicate
func (h *FavoriteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	withCaller(h.create)(w, r)
}

func (h *FavoriteHandler) create(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	var req createFavoriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	fav, err := h.favorites.Add(r.Context(), caller.UserID, req.SkillID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

// HandleDelete removes one of the caller's favorites.
//
// HTTP: DELETE /users/{id}/favorites/{favId}
// RESPONSE: 204, also when nothing matched
func (h *FavoriteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	withCaller(h.remove)(w, r)
}

func (h *FavoriteHandler) remove(w http.ResponseWriter, r *http.Request, caller auth.Caller) {
	if err := h.favorites.Remove(r.Context(), caller.UserID, chi.URLParam(r, "favId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
