package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/service"
	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
)

// Summarize builds the status summary shared by the HTTP and local socket
// surfaces.
func Summarize(st service.Stats, connections int, draining bool) StatusSummary {
	sessions := make(map[string]int, len(st.Sessions))
	for state, n := range st.Sessions {
		sessions[string(state)] = n
	}
	status := "running"
	if draining {
		status = "draining"
	}
	return StatusSummary{
		Status:             status,
		Version:            buildinfo.Version,
		Sessions:           sessions,
		RoomsActive:        st.RoomsActive,
		QueueDepth:         st.QueueDepth,
		Connections:        connections,
		GraceWindowSeconds: st.GraceWindow.Seconds(),
		UptimeSeconds:      int64(st.Uptime.Seconds()),
		Time:               time.Now().UTC().Format(time.RFC3339),
	}
}

// handleAdminStatus handles GET /admin/v1/status/summary.
func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	var (
		connections int
		draining    bool
	)
	if h.gateway != nil {
		connections = h.gateway.Connections()
		draining = h.gateway.Draining()
	}
	h.writeJSON(w, r, http.StatusOK, Summarize(h.core.Stats(), connections, draining))
}

// handleGCTrigger handles POST /admin/v1/gc/trigger.
func (h *Handler) handleGCTrigger(w http.ResponseWriter, r *http.Request) {
	count := h.core.Sweep(r.Context())
	h.logger.Info("tombstone sweep triggered", "cleaned", count)

	h.writeJSON(w, r, http.StatusOK, GCResponse{
		CleanedCount: count,
		TriggeredAt:  time.Now().UTC().Format(time.RFC3339),
	})
}
