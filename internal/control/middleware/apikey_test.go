// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		wantCode   int
	}{
		{name: "valid key", configured: "secret", sent: "secret", wantCode: http.StatusOK},
		{name: "missing key", configured: "secret", wantCode: http.StatusUnauthorized},
		{name: "wrong key", configured: "secret", sent: "secreT", wantCode: http.StatusUnauthorized},
		{name: "prefix of key", configured: "secret", sent: "sec", wantCode: http.StatusUnauthorized},
		{name: "unconfigured key rejects all", configured: "", sent: "", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKey(tt.configured)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil)
			if tt.sent != "" {
				req.Header.Set(HeaderAPIKey, tt.sent)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
			}
		})
	}
}
