// Package api holds the response helpers shared by the storefront
// handlers, including the mapping from domain error kinds to HTTP
// status codes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/teamf/dresshop/internal/domain"
)

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	WriteJSON(w, logger, status, map[string]string{"error": message})
}

// WriteDomainError maps a domain failure to its HTTP shape. Unknown
// errors are logged and returned opaque.
func WriteDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validation *domain.ValidationError
		stock      *domain.InsufficientStockError
		transition *domain.InvalidTransitionError
		processed  *domain.AlreadyProcessedError
	)

	switch {
	case errors.As(err, &validation):
		WriteJSON(w, logger, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": validation.Fields,
		})
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, logger, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, logger, http.StatusForbidden, "forbidden")
	case errors.As(err, &stock):
		WriteJSON(w, logger, http.StatusConflict, map[string]any{
			"error":      "insufficient stock",
			"dress_id":   stock.DressID,
			"dress_name": stock.DressName,
			"requested":  stock.Requested,
			"available":  stock.Available,
		})
	case errors.As(err, &transition):
		WriteError(w, logger, http.StatusConflict, transition.Error())
	case errors.As(err, &processed):
		WriteError(w, logger, http.StatusConflict, processed.Error())
	default:
		logger.Error("request failed", "error", err)
		WriteError(w, logger, http.StatusInternalServerError, "internal server error")
	}
}
