package server

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/services"
	"github.com/desertthunder/renderkit/internal/shared"
)

const (
	routeStateEvent = "POST /events/{renderer}"
	routeQueueEvent = "POST /events/{renderer}/queue"
	routeHealth     = "GET /health"
)

// EventsHandler receives state and queue snapshots that devices push over HTTP.
type EventsHandler struct {
	sink   services.PushSink
	logger *log.Logger
}

// NewEventsHandler creates a handler forwarding pushes to sink.
func NewEventsHandler(sink services.PushSink, logger *log.Logger) *EventsHandler {
	return &EventsHandler{sink: sink, logger: shared.WithLogger(logger, "component", "events")}
}

// Routes returns the HTTP routes this handler serves.
func (h *EventsHandler) Routes() []string {
	return []string{routeStateEvent, routeQueueEvent, routeHealth}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case routeStateEvent:
		h.pushState(w, r)
	case routeQueueEvent:
		h.pushQueue(w, r)
	case routeHealth:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *EventsHandler) pushState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("renderer")

	var s models.RendererState
	if err := decodeBody(r, &s); err != nil {
		writeFailure(w, err, http.StatusBadRequest)
		return
	}
	if s.ID == "" {
		s.ID = id
	}
	if s.ID != id {
		writeFailure(w, fmt.Errorf("%w: state for %s pushed to %s", shared.ErrInvalidInput, s.ID, id), http.StatusBadRequest)
		return
	}

	if err := h.sink.PushState(s); err != nil {
		h.logger.Warn("state push rejected", "renderer", id, "error", err)
		writeFailure(w, err, http.StatusInternalServerError)
		return
	}
	h.logger.Debug("state pushed", "renderer", id, "revision", s.Revision)
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventsHandler) pushQueue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("renderer")

	var entries []models.QueueEntry
	if err := decodeBody(r, &entries); err != nil {
		writeFailure(w, err, http.StatusBadRequest)
		return
	}
	for _, e := range entries {
		if e.ID == "" {
			writeFailure(w, fmt.Errorf("%w: queue entry without ID", shared.ErrInvalidInput), http.StatusBadRequest)
			return
		}
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}

	if err := h.sink.PushQueue(id, entries); err != nil {
		h.logger.Warn("queue push rejected", "renderer", id, "error", err)
		writeFailure(w, err, http.StatusInternalServerError)
		return
	}
	h.logger.Debug("queue pushed", "renderer", id, "entries", len(entries))
	w.WriteHeader(http.StatusNoContent)
}
