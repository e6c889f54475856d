// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/ManuGH/hlsgate/internal/log"
)

// Recoverer turns a handler panic into a logged 500 with a JSON body that
// carries the request id. http.ErrAbortHandler is re-raised untouched.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}

			logger := log.WithComponentFromContext(r.Context(), "panic-recovery")
			logger.Error().
				Str(log.FieldEvent, "panic.recovered").
				Str(log.FieldMethod, r.Method).
				// segment paths embed arbitrary encoded bytes
				Str(log.FieldPath, strings.ToValidUTF8(r.URL.Path, "")).
				Str(log.FieldRemoteAddr, r.RemoteAddr).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(struct {
				Error     string `json:"error"`
				RequestID string `json:"requestId"`
			}{"Internal server error", log.RequestIDFromContext(r.Context())})
		}()
		next.ServeHTTP(w, r)
	})
}
