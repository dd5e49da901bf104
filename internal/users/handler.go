package users

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/teamf/dresshop/internal/api"
	"github.com/teamf/dresshop/internal/auth"
	"github.com/teamf/dresshop/internal/domain"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	user, err := h.repo.Get(r.Context(), id.UserID)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}
	if user == nil {
		api.WriteError(w, h.logger, http.StatusNotFound, "user not found")
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, user)
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		api.WriteDomainError(w, h.logger, domain.NewValidationError("name", "required"))
		return
	}

	if err := h.repo.UpdateProfile(r.Context(), id.UserID, req.Name); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	user, err := h.repo.Get(r.Context(), id.UserID)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("profile updated", "user_id", id.UserID)
	api.WriteJSON(w, h.logger, http.StatusOK, user)
}

func (h *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("users listed", "count", len(users))
	api.WriteJSON(w, h.logger, http.StatusOK, users)
}

func (h *Handler) HandleAdminGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}
	if user == nil {
		api.WriteError(w, h.logger, http.StatusNotFound, "user not found")
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, user)
}
