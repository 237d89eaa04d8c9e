package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/account-service/internal/metrics"
	"github.com/isdelr/account-service/internal/services"
)

// HealthHandler reports whether the user directory is reachable.
type HealthHandler struct {
	service services.AccountServiceProvider
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(service services.AccountServiceProvider) *HealthHandler {
	return &HealthHandler{service: service}
}

// Check pings the directory with a short timeout.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		metrics.SetDependencyHealth("directory", false)
		l := requestLogger(r)
		l.Warn().Err(err).Msg("Directory health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	metrics.SetDependencyHealth("directory", true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
