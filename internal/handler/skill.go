package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/acme-skills/internal/service"
)

// SkillHandler serves the read-only skill catalog.
type SkillHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewSkillHandler(catalog *service.CatalogService, logger *slog.Logger) *SkillHandler {
	return &SkillHandler{catalog: catalog, logger: logger}
}

// HandleList returns every skill.
//
// HTTP: GET /skills
// RESPONSE: [{"id": "...", "name": "bar"}, ...]
func (h *SkillHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	skills, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, skills)
}
