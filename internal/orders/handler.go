package orders

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

func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var in PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), id, in)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("order placed", "order_id", order.ID, "user_id", id.UserID, "total", order.TotalPrice)
	api.WriteJSON(w, h.logger, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	order, err := h.service.Get(r.Context(), id, r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	orders, err := h.service.ListForUser(r.Context(), id, domain.OrderStatus(r.URL.Query().Get("status")))
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, orders)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	order, err := h.service.Cancel(r.Context(), id, r.PathValue("id"))
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, order)
}

func (h *Handler) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListAll(r.Context(), domain.OrderStatus(r.URL.Query().Get("status")))
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	api.WriteJSON(w, h.logger, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleAdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, order)
}
