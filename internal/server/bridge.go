package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/services"
	"github.com/desertthunder/renderkit/internal/shared"
)

const (
	routeNode         = "GET /catalog/{node}"
	routeItems        = "GET /catalog/{node}/items"
	routeSearch       = "POST /catalog/{node}/search"
	routeCancelSearch = "POST /catalog/{node}/search/cancel"
	routeRenderers    = "GET /renderers"
	routeState        = "GET /renderers/{id}/state"
	routeCommands     = "POST /renderers/{id}/commands"
	routeQueue        = "GET /renderers/{id}/queue"
	routeMutate       = "POST /renderers/{id}/queue"
)

// BridgeHandler exposes a backend in the bridge wire format, so that a bridge client can drive
// it over HTTP.
type BridgeHandler struct {
	backend *services.Backend
	logger  *log.Logger
}

// NewBridgeHandler creates a handler over backend.
func NewBridgeHandler(backend *services.Backend, logger *log.Logger) *BridgeHandler {
	return &BridgeHandler{backend: backend, logger: shared.WithLogger(logger, "component", "bridge-server", "backend", backend.Name)}
}

// Routes returns the HTTP routes this handler serves.
func (h *BridgeHandler) Routes() []string {
	return []string{
		routeNode, routeItems, routeSearch, routeCancelSearch,
		routeRenderers, routeState, routeCommands, routeQueue, routeMutate,
	}
}

func (h *BridgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case routeNode:
		h.node(w, r)
	case routeItems:
		h.items(w, r)
	case routeSearch:
		h.search(w, r)
	case routeCancelSearch:
		h.backend.Catalog.CancelSearch(r.PathValue("node"))
		w.WriteHeader(http.StatusNoContent)
	case routeRenderers:
		h.renderers(w, r)
	case routeState:
		h.state(w, r)
	case routeCommands:
		h.command(w, r)
	case routeQueue:
		h.queue(w, r)
	case routeMutate:
		h.mutate(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *BridgeHandler) node(w http.ResponseWriter, r *http.Request) {
	node, err := h.backend.Nodes.Node(r.Context(), r.PathValue("node"))
	if err != nil {
		writeFailure(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (h *BridgeHandler) items(w http.ResponseWriter, r *http.Request) {
	rng, err := rangeParams(r)
	if err != nil {
		writeFailure(w, err, http.StatusBadRequest)
		return
	}
	page, err := h.backend.Catalog.FetchRange(r.Context(), r.PathValue("node"), rng)
	if err != nil {
		writeFailure(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *BridgeHandler) search(w http.ResponseWriter, r *http.Request) {
	var req services.SearchRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, err, http.StatusBadRequest)
		return
	}
	rng := models.NewRange(req.Start, req.End)
	page, err := h.backend.Catalog.Search(r.Context(), r.PathValue("node"), req.Keyword, req.Criterion, rng, req.IsFirstSearch)
	if err != nil {
		writeFailure(w, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *BridgeHandler) renderers(w http.ResponseWriter, r *http.Request) {
	states, err := h.backend.Renderers.Renderers(r.Context())
	if err != nil {
		writeFailure(w, err, http.StatusInternalServerError)
		return
	}
	if states == nil {
		states = []models.RendererState{}
	}
	writeJSON(w, http.StatusOK, states)
}

func (h *BridgeHandler) state(w http.ResponseWriter, r *http.Request) {
	s, err := h.backend.Transport.FetchState(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *BridgeHandler) command(w http.ResponseWriter, r *http.Request) {
	var cmd models.Command
	if err := decodeBody(r, &cmd); err != nil {
		writeFailure(w, err, http.StatusBadRequest)
		return
	}
	if err := h.backend.Transport.SendCommand(r.Context(), r.PathValue("id"), cmd); err != nil {
		h.logger.Debug("command refused", "renderer", r.PathValue("id"), "command", cmd, "error", err)
		writeFailure(w, err, http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BridgeHandler) queue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.backend.Queue.FetchQueue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *BridgeHandler) mutate(w http.ResponseWriter, r *http.Request) {
	var cmd models.MutationCommand
	if err := decodeBody(r, &cmd); err != nil {
		writeFailure(w, err, http.StatusBadRequest)
		return
	}
	if err := h.backend.Queue.MutateQueue(r.Context(), r.PathValue("id"), cmd); err != nil {
		h.logger.Debug("mutation refused", "renderer", r.PathValue("id"), "kind", cmd.Kind, "error", err)
		writeFailure(w, err, http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func rangeParams(r *http.Request) (models.Range, error) {
	q := r.URL.Query()
	start, err := strconv.Atoi(q.Get("start"))
	if err != nil {
		return models.Range{}, fmt.Errorf("%w: start %q", shared.ErrInvalidArgument, q.Get("start"))
	}
	end, err := strconv.Atoi(q.Get("end"))
	if err != nil {
		return models.Range{}, fmt.Errorf("%w: end %q", shared.ErrInvalidArgument, q.Get("end"))
	}
	return models.NewRange(start, end), nil
}
