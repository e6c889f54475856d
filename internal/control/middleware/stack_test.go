// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/testutil"
)

func TestStack_AppliesCanonicalMiddleware(t *testing.T) {
	r := NewRouter(StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        []string{"https://player.example"},
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableLogging:         true,
	})
	var seenRequestID string
	r.Get("/hls/{sessionID}/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		seenRequestID = log.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	labels := map[string]string{"method": "GET", "route": "/hls/{sessionID}/master.m3u8", "status": "200"}
	before := testutil.HistogramCount(t, "hlsgate_http_request_duration_seconds", labels)

	req := httptest.NewRequest(http.MethodGet, "/hls/abc/master.m3u8", nil)
	req.Header.Set("Origin", "https://player.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Equal(t, w.Header().Get(HeaderRequestID), seenRequestID)
	assert.Equal(t, "https://player.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, before+1, testutil.HistogramCount(t, "hlsgate_http_request_duration_seconds", labels),
		"metrics are labelled by route pattern, not raw path")
}

func TestStack_RecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	log.Configure(log.Config{Output: &buf})
	defer log.Configure(log.Config{})

	r := NewRouter(StackConfig{})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(HeaderRequestID, "panic-req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "panic-req-1", w.Header().Get(HeaderRequestID))
	assert.JSONEq(t, `{"error":"Internal server error","requestId":"panic-req-1"}`, w.Body.String())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry), buf.String())
	assert.Equal(t, "panic.recovered", entry[log.FieldEvent])
	assert.Equal(t, "panic-req-1", entry[log.FieldRequestID])
}

func TestChain_RequestIDWrapsRecoverer(t *testing.T) {
	chain := Chain(StackConfig{})
	require.Len(t, chain, 2)

	var seen string
	h := chain[0](chain[1](http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = log.RequestIDFromContext(r.Context())
		panic("boom")
	})))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Contains(t, w.Body.String(), seen)
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "missing", incoming: ""},
		{name: "well formed", incoming: "abc-123_x.y:z", keep: true},
		{name: "log injection", incoming: "abc\nforged=1"},
		{name: "too long", incoming: string(make([]byte, maxRequestIDLen+1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Use(RequestID)
			r.Get("/", func(http.ResponseWriter, *http.Request) {})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			require.NotEmpty(t, got)
			if tt.keep {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.NotEqual(t, tt.incoming, got)
			}
		})
	}
}
