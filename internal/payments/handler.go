package payments

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/teamf/dresshop/internal/api"
	"github.com/teamf/dresshop/internal/auth"
	"github.com/teamf/dresshop/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	payment, err := h.service.Get(r.Context(), id, r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, payment)
}

func (h *Handler) HandleProcessCard(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var details CardDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, err := h.service.ProcessCard(r.Context(), id, r.PathValue("id"), details)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, payment)
}

func (h *Handler) HandleProcessBankTransfer(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	details, err := h.service.ProcessBankTransfer(r.Context(), id, r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, details)
}

func (h *Handler) HandleProcessCashOnDelivery(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	payment, err := h.service.ProcessCashOnDelivery(r.Context(), id, r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, payment)
}

type confirmRequest struct {
	TransactionRef string `json:"transaction_ref"`
}

func (h *Handler) HandleAdminConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, err := h.service.Confirm(r.Context(), r.PathValue("id"), req.TransactionRef)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, payment)
}

func (h *Handler) HandleAdminRefund(w http.ResponseWriter, r *http.Request) {
	payment, err := h.service.Refund(r.Context(), r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, payment)
}

func (h *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Status: domain.PaymentStatus(r.URL.Query().Get("status")),
		Method: domain.PaymentMethod(r.URL.Query().Get("method")),
	}

	payments, err := h.service.ListAll(r.Context(), filter)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("payments listed", "count", len(payments))
	api.WriteJSON(w, h.logger, http.StatusOK, payments)
}
