package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	store  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. store may be nil, in which case
// only liveness is reported.
func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logHandler(logger, "health")}
}

// HealthCheck responds with the server status and storage reachability.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "handler: storage ping failed",
				slog.String("error", err.Error()),
			)
			resp["status"] = "degraded"
			resp["storage"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["storage"] = "ok"
	}
	writeJSON(w, http.StatusOK, resp)
}
