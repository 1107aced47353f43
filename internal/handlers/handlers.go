// Package handlers provides the HTTP handlers for the classifier service.
package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

// MaxBodyBytes caps a push request body. Pub/Sub messages are at most 10 MB
// and base64 grows them by a third.
const MaxBodyBytes = 14 << 20

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	processor AlertProcessor
}

// NewHandlers creates a new handlers instance.
func NewHandlers(p AlertProcessor) *Handlers {
	return &Handlers{processor: p}
}

// Push handles one Pub/Sub push delivery. The response status is what
// Pub/Sub acts on: 2xx acks, anything else is redelivered.
func (h *Handlers) Push(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		slog.Warn("Failed to read push body", "error", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	msg, err := events.ParseEnvelope(body)
	if err != nil {
		slog.Warn("Rejected push request", "error", err)
		writeError(w, err)
		return
	}

	if _, err := h.processor.Process(r.Context(), msg); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
