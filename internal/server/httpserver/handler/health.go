package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
)

func healthBody(status string) HealthResponse {
	info := buildinfo.Get()
	return HealthResponse{
		Status:    status,
		Version:   info.Version,
		Commit:    info.Commit,
		GoVersion: info.GoVersion,
		Time:      time.Now().UTC().Format(time.RFC3339),
	}
}

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, healthBody("healthy"))
}

// handleReady handles GET /ready. A draining server is alive but not ready.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.gateway != nil && h.gateway.Draining() {
		WriteError(w, r, domain.ErrServiceUnavailable.WithDetails("draining"))
		return
	}
	h.writeJSON(w, r, http.StatusOK, healthBody("ready"))
}
