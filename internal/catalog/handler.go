package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/teamf/dresshop/internal/api"
	"github.com/teamf/dresshop/internal/domain"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) HandleListDresses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := DressFilter{
		ChildCategoryID: q.Get("category"),
		InStockOnly:     q.Get("in_stock") == "true",
	}
	filter.MinPrice, _ = strconv.ParseInt(q.Get("min_price"), 10, 64)
	filter.MaxPrice, _ = strconv.ParseInt(q.Get("max_price"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	dresses, err := h.repo.ListDresses(r.Context(), filter)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("dresses listed", "count", len(dresses))
	api.WriteJSON(w, h.logger, http.StatusOK, dresses)
}

func (h *Handler) HandleGetDress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	dress, err := h.repo.GetDress(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}
	if dress == nil {
		api.WriteError(w, h.logger, http.StatusNotFound, "dress not found")
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, dress)
}

type dressRequest struct {
	ChildCategoryID string `json:"child_category_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           int64  `json:"price"`
	Stock           int    `json:"stock"`
}

func (req dressRequest) validate() *domain.ValidationError {
	fields := map[string]string{}
	if req.Name == "" {
		fields["name"] = "required"
	}
	if req.ChildCategoryID == "" {
		fields["child_category_id"] = "required"
	}
	if req.Price < 0 {
		fields["price"] = "must not be negative"
	}
	if req.Stock < 0 {
		fields["stock"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func (h *Handler) HandleCreateDress(w http.ResponseWriter, r *http.Request) {
	var req dressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if verr := req.validate(); verr != nil {
		api.WriteDomainError(w, h.logger, verr)
		return
	}

	dress := &domain.Dress{
		ChildCategoryID: req.ChildCategoryID,
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		Stock:           req.Stock,
	}

	if err := h.repo.CreateDress(r.Context(), dress); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("dress created", "dress_id", dress.ID, "name", dress.Name)
	api.WriteJSON(w, h.logger, http.StatusCreated, dress)
}

func (h *Handler) HandleUpdateDress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req dressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if verr := req.validate(); verr != nil {
		api.WriteDomainError(w, h.logger, verr)
		return
	}

	dress := &domain.Dress{
		ID:              id,
		ChildCategoryID: req.ChildCategoryID,
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
	}

	if err := h.repo.UpdateDress(r.Context(), dress); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	updated, err := h.repo.GetDress(r.Context(), id)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("dress updated", "dress_id", id)
	api.WriteJSON(w, h.logger, http.StatusOK, updated)
}

func (h *Handler) HandleDeleteDress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.repo.DeleteDress(r.Context(), id); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("dress deleted", "dress_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListParentCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.ListParentCategories(r.Context())
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, categories)
}

func (h *Handler) HandleListChildCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.ListChildCategories(r.Context(),
		r.URL.Query().Get("parent"),
		r.URL.Query().Get("active") == "true",
	)
	if err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	api.WriteJSON(w, h.logger, http.StatusOK, categories)
}

type parentCategoryRequest struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

func (h *Handler) HandleCreateParentCategory(w http.ResponseWriter, r *http.Request) {
	var req parentCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		api.WriteDomainError(w, h.logger, domain.NewValidationError("name", "required"))
		return
	}

	category := &domain.ParentCategory{Name: req.Name, SortOrder: req.SortOrder}
	if err := h.repo.CreateParentCategory(r.Context(), category); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("parent category created", "category_id", category.ID)
	api.WriteJSON(w, h.logger, http.StatusCreated, category)
}

type childCategoryRequest struct {
	ParentID  string `json:"parent_id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	Active    bool   `json:"active"`
}

func (h *Handler) HandleCreateChildCategory(w http.ResponseWriter, r *http.Request) {
	var req childCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	fields := map[string]string{}
	if req.Name == "" {
		fields["name"] = "required"
	}
	if req.ParentID == "" {
		fields["parent_id"] = "required"
	}
	if len(fields) > 0 {
		api.WriteDomainError(w, h.logger, &domain.ValidationError{Fields: fields})
		return
	}

	category := &domain.ChildCategory{
		ParentID:  req.ParentID,
		Name:      req.Name,
		SortOrder: req.SortOrder,
		Active:    req.Active,
	}
	if err := h.repo.CreateChildCategory(r.Context(), category); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("child category created", "category_id", category.ID)
	api.WriteJSON(w, h.logger, http.StatusCreated, category)
}

func (h *Handler) HandleDeleteChildCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.repo.DeleteChildCategory(r.Context(), id); err != nil {
		api.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("child category deleted", "category_id", id)
	w.WriteHeader(http.StatusNoContent)
}
