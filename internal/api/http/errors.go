package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/service"
	"github.com/shestoi/warehouse/platform/observability"
)

// statusFor сопоставляет ошибку сервиса HTTP-статусу
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError пишет ошибку сервиса. Текст 5xx наружу не отдаётся.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Success: false, Message: err.Error()}

	var insufficient *service.InsufficientStockError
	if errors.As(err, &insufficient) {
		resp.CurrentStock = &insufficient.Current
	}

	log := observability.LoggerFromContext(r.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
		if status == http.StatusInternalServerError {
			resp.Message = "internal server error"
		}
	} else {
		log.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}

	writeJSON(w, status, resp)
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Success: false, Message: msg})
}
