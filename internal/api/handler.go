// Package api serves the local HTTP hook that editors call on save.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/djlord-it/devtrigger/internal/domain"
	"github.com/djlord-it/devtrigger/internal/trigger"
)

const maxRequestBodySize = 64 << 10

// TriggerHandler accepts events. Handle must not block on I/O.
type TriggerHandler interface {
	Handle(event domain.TriggerEvent) trigger.Decision
}

// HealthChecker reports on an optional dependency for verbose /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	triggers TriggerHandler
	checks   map[string]HealthChecker
}

func NewHandler(triggers TriggerHandler) *Handler {
	return &Handler{triggers: triggers, checks: make(map[string]HealthChecker)}
}

// WithHealthChecker adds a named component to verbose /health responses.
func (h *Handler) WithHealthChecker(name string, c HealthChecker) *Handler {
	h.checks[name] = c
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case r.URL.Path == "/v1/trigger" && r.Method == http.MethodPost:
		h.trigger(w, r)

	case r.URL.Path == "/v1/trigger":
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	if !verbose || len(h.checks) == 0 {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string, len(h.checks)),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for name, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components[name] = "unhealthy: " + err.Error()
		} else {
			resp.Components[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	source, err := validateTrigger(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event := domain.NewTriggerEvent(source, req.Path)
	decision := h.triggers.Handle(event)

	status := http.StatusOK
	if decision == trigger.DecisionQueued || decision == trigger.DecisionDebounced {
		status = http.StatusAccepted
	}
	writeJSON(w, status, TriggerResponse{EventID: event.ID.String(), Decision: string(decision)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
