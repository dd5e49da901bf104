package addresses

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

// ownedAddress loads the address and checks the caller owns it.
func (h *Handler) ownedAddress(r *http.Request) (*domain.Address, error) {
	id, _ := auth.FromContext(r.Context())

	address, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if address == nil {
		return nil, domain.ErrNotFound
	}
	if address.UserID != id.UserID {
		return nil, domain.ErrForbidden
	}
	return address, nil
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	addresses, err := h.repo.ListByUser(r.Context(), id.UserID)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, addresses)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	address, err := h.ownedAddress(r)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, address)
}

type addressRequest struct {
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	IsDefault  bool   `json:"is_default"`
}

func (req addressRequest) validate() *domain.ValidationError {
	fields := map[string]string{}
	if len(req.PostalCode) != 7 {
		fields["postal_code"] = "must be 7 digits"
	}
	if req.Prefecture == "" {
		fields["prefecture"] = "required"
	}
	if req.City == "" {
		fields["city"] = "required"
	}
	if req.Line1 == "" {
		fields["line1"] = "required"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if verr := req.validate(); verr != nil {
		api.WriteDomainError(w, h.logger, verr)
		return
	}

	address := &domain.Address{
		UserID:     id.UserID,
		PostalCode: req.PostalCode,
		Prefecture: req.Prefecture,
		City:       req.City,
		Line1:      req.Line1,
		Line2:      req.Line2,
		IsDefault:  req.IsDefault,
	}

	if err := h.repo.Create(r.Context(), address); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("address created", "address_id", address.ID, "user_id", id.UserID)
	api.WriteJSON(w, h.logger, http.StatusCreated, address)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	address, err := h.ownedAddress(r)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if verr := req.validate(); verr != nil {
		api.WriteDomainError(w, h.logger, verr)
		return
	}

	address.PostalCode = req.PostalCode
	address.Prefecture = req.Prefecture
	address.City = req.City
	address.Line1 = req.Line1
	address.Line2 = req.Line2

	if err := h.repo.Update(r.Context(), address); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	if req.IsDefault && !address.IsDefault {
		if err := h.repo.SetDefault(r.Context(), address.UserID, address.ID); err != nil {
			api.WriteDomainError(w, h.logger, err)
			return
		}
		address.IsDefault = true
	}

	h.logger.Info("address updated", "address_id", address.ID)
	api.WriteJSON(w, h.logger, http.StatusOK, address)
}

func (h *Handler) HandleSetDefault(w http.ResponseWriter, r *http.Request) {
	address, err := h.ownedAddress(r)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	if err := h.repo.SetDefault(r.Context(), address.UserID, address.ID); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("default address set", "address_id", address.ID, "user_id", address.UserID)
	address.IsDefault = true
	api.WriteJSON(w, h.logger, http.StatusOK, address)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	address, err := h.ownedAddress(r)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	if err := h.repo.Delete(r.Context(), address.ID); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("address deleted", "address_id", address.ID)
	w.WriteHeader(http.StatusNoContent)
}
