package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/smartcost/backend/internal/provider"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	db        Pinger
	providers *provider.Registry
	version   string
}

func NewHealthHandler(db Pinger, providers *provider.Registry, version string) *HealthHandler {
	return &HealthHandler{db: db, providers: providers, version: version}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                           `json:"status"`
	Version   string                           `json:"version"`
	Database  string                           `json:"database"`
	Providers map[string]provider.HealthStatus `json:"providers,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Version: h.version, Database: "ok"}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if h.providers != nil {
		resp.Providers = h.providers.HealthAll(ctx)
	}

	writeJSON(w, r, status, resp)
}
