package inventory

import (
	"log/slog"
	"net/http"

	"github.com/teamf/dresshop/internal/api"
)

// Handler serves the admin stock views. Mutations go through the
// ledger inside the order and payment workflows, never through HTTP.
type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.repo.ListStock(r.Context())
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("stock listed", "count", len(levels))
	api.WriteJSON(w, h.logger, http.StatusOK, levels)
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	dressID := r.PathValue("dressId")

	level, err := h.repo.GetStock(r.Context(), dressID)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}
	if level == nil {
		api.WriteError(w, h.logger, http.StatusNotFound, "dress not found")
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, level)
}
