// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/ManuGH/hlsgate/internal/log"
)

// HeaderAPIKey carries the control API key.
const HeaderAPIKey = "X-API-Key"

// APIKey rejects requests whose X-API-Key does not equal key with 401.
// An empty key rejects every request.
func APIKey(key string) func(http.Handler) http.Handler {
	want := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(HeaderAPIKey))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				logger := log.WithComponentFromContext(r.Context(), "auth")
				logger.Warn().
					Str(log.FieldEvent, "auth.rejected").
					Str(log.FieldRemoteAddr, r.RemoteAddr).
					Bool("key_present", len(got) > 0).
					Msg("rejected request with invalid api key")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
