package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/core/service"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// Core is the part of the pairing core the handlers read.
type Core interface {
	Stats() service.Stats
	Sweep(ctx context.Context) int
}

// Gateway reports connection-level state.
type Gateway interface {
	Connections() int
	Draining() bool
}

// Handler serves the health and admin endpoints.
type Handler struct {
	core    Core
	gateway Gateway
	logger  logger.Logger
	mux     *http.ServeMux
}

// New creates a new Handler.
func New(core Core, gw Gateway, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	h := &Handler{
		core:    core,
		gateway: gw,
		logger:  logger.Component(log, "http"),
		mux:     http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /admin/v1/status/summary", h.handleAdminStatus)
	h.mux.HandleFunc("POST /admin/v1/gc/trigger", h.handleGCTrigger)
}

// writeJSON wraps data in a success envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	response := Envelope{
		Code:      "OK",
		Message:   "Success",
		RequestID: logger.RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes err as an error envelope. Errors without a PM-* code
// are reported as internal errors.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	de := domain.ErrInternalServer
	errors.As(err, &de)

	message := de.Message
	if de.Details != "" {
		message += ": " + de.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", de.Code)
	w.WriteHeader(de.Status())
	json.NewEncoder(w).Encode(Envelope{
		Code:      de.Code,
		Message:   message,
		RequestID: logger.RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UnixMilli(),
	})
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if !domain.IsDomainError(err, "") {
		h.logger.Error("internal error", "error", err)
	}
	WriteError(w, r, err)
}
