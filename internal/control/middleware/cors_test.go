// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveCORS(allowed []string, creds bool, req *http.Request) (*httptest.ResponseRecorder, bool) {
	reached := false
	h := CORS(allowed, creds)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, reached
}

func TestCORS_AllowOrigin(t *testing.T) {
	tests := []struct {
		name      string
		allowed   []string
		creds     bool
		origin    string
		wantAllow string
		wantCreds string
	}{
		{name: "wildcard reflects origin", allowed: []string{"*"}, origin: "http://example.com", wantAllow: "http://example.com"},
		{name: "no origin header", allowed: []string{"*"}},
		{name: "listed origin", allowed: []string{"https://player.example"}, creds: true, origin: "https://player.example", wantAllow: "https://player.example", wantCreds: "true"},
		{name: "unlisted origin", allowed: []string{"https://player.example"}, creds: true, origin: "https://evil.example"},
		{name: "credentials off", allowed: []string{"*"}, origin: "http://example.com", wantAllow: "http://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/hls/S/master.m3u8", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			rec, reached := serveCORS(tt.allowed, tt.creds, req)

			assert.True(t, reached)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, rec.Header().Get("Access-Control-Allow-Credentials"))
			assert.Contains(t, rec.Header().Get("Vary"), "Origin")
		})
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/play", nil)
	req.Header.Set("Origin", "https://player.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rec, reached := serveCORS([]string{"https://player.example"}, false, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, reached)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Range")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Range")
}

func TestCORS_PlainOptionsPassesThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/play", nil)

	_, reached := serveCORS([]string{"*"}, false, req)

	assert.True(t, reached)
}

func TestCORS_KeepsExistingVary(t *testing.T) {
	h := CORS([]string{"*"}, false)(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	rec.Header().Set("Vary", "Accept-Encoding")

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "Accept-Encoding, Origin", rec.Header().Get("Vary"))
}
