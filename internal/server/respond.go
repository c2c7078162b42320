package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/renderkit/internal/services"
	"github.com/desertthunder/renderkit/internal/shared"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	data, _ := json.Marshal(services.BridgeError{Detail: detail})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeFailure answers with the status matching err. fallback is used for errors that carry
// no classification.
func writeFailure(w http.ResponseWriter, err error, fallback int) {
	writeError(w, StatusFor(err, fallback), err.Error())
}

// StatusFor maps an error onto the HTTP status the bridge wire format uses for it.
func StatusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, shared.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrRendererNotFound), errors.Is(err, shared.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMalformedResponse), errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrCommandRejected), errors.Is(err, shared.ErrQueueMutationFailed),
		errors.Is(err, shared.ErrSearchFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrCancelled):
		return http.StatusConflict
	default:
		return fallback
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %w", shared.ErrInvalidInput, err)
	}
	return nil
}
