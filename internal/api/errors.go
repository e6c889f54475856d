// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/sources"
)

// errorResponse is the body of every JSON error.
type errorResponse struct {
	Error string `json:"error"`
	// Key names the existing source on a 409.
	Key string `json:"key,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeSourceError maps source store errors onto the management API's
// status codes and messages.
func writeSourceError(w http.ResponseWriter, r *http.Request, key string, err error) {
	var conflict *sources.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Source URL already exists.", Key: conflict.Key})
	case errors.Is(err, sources.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Source with key '%s' not found.", key))
	case errors.Is(err, sources.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldSourceID, key).
			Str(log.FieldEvent, "sources.store_error").
			Msg("source store operation failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
