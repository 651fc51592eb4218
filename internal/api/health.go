package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultHealthCheckTimeout = 5 * time.Second

// Pinger is anything whose reachability can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db        Pinger
	model     Pinger
	modelName string
	timeout   time.Duration
}

// NewHealthHandler creates a health handler. The database is required; an
// unreachable model only marks the service degraded.
func NewHealthHandler(db, model Pinger, modelName string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		model:     model,
		modelName: modelName,
		timeout:   defaultHealthCheckTimeout,
	}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
		"model":  h.modelName,
	}
	statusCode := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("Health check failed", "dependency", "database", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.model == nil {
		checks["model_service"] = "disabled"
	} else if err := h.model.Ping(ctx); err != nil {
		slog.Warn("Health check failed", "dependency", "model_service", "error", err)
		status["status"] = "degraded"
		checks["model_service"] = "disconnected"
	} else {
		checks["model_service"] = "connected"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
