// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/hlsgate/internal/health"
	"github.com/ManuGH/hlsgate/internal/platform/httpx"
	"github.com/ManuGH/hlsgate/internal/proxy"
	"github.com/ManuGH/hlsgate/internal/resolver"
	"github.com/ManuGH/hlsgate/internal/sources"
	"github.com/ManuGH/hlsgate/internal/testutil"
)

const testAPIKey = "test-key"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubResolver struct {
	result *resolver.Result
	err    error
	lastID atomic.Value
}

func (s *stubResolver) Resolve(_ context.Context, sourceID, _ string) (*resolver.Result, error) {
	s.lastID.Store(sourceID)
	return s.result, s.err
}

type fixture struct {
	handler  http.Handler
	store    *sources.FileStore
	registry *proxy.Registry
	resolver *stubResolver
	upstream *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{resolver: &stubResolver{}}

	f.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/live/master.m3u8":
			_, _ = io.WriteString(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\n720p.m3u8\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.upstream.Close)

	store, err := sources.NewFileStore(filepath.Join(t.TempDir(), "sources.yaml"), sources.FileOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	f.store = store

	f.registry = proxy.NewRegistry(proxy.RegistryConfig{SweepInterval: -1})
	t.Cleanup(f.registry.Close)

	f.resolver.result = &resolver.Result{
		SessionID:  "resolver-session",
		PageURL:    "https://page.example/watch",
		DetectedAt: testNow.Format(time.RFC3339Nano),
		Streams:    []resolver.Stream{{Type: resolver.StreamTypeHLS, MasterURL: f.upstream.URL + "/live/master.m3u8"}},
		RequiredHeaders: map[string]string{
			"User-Agent": "Player/1.0",
			"X-Internal": "dropped",
		},
		RequiredCookies: []resolver.Cookie{
			{Name: "sid", Value: "abc"},
			{Name: "old", Value: "x", Expires: float64(testNow.Add(-time.Hour).Unix())},
		},
	}

	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewPingChecker("sources", store.Ping))

	srv, err := New(Config{
		PublicURL:      "https://gate.example/",
		APIKey:         testAPIKey,
		SessionTTL:     15 * time.Minute,
		AcceptLanguage: "en-US,en;q=0.8",
		RateLimitRPM:   1000,
	}, Deps{
		Sources:      store,
		Resolver:     f.resolver,
		Registry:     f.registry,
		Fetcher:      proxy.NewFetcher(httpx.NewStreamingClient(2 * time.Second)),
		Health:       hm,
		Now:          func() time.Time { return testNow },
		NewSessionID: func() string { return "sess-1" },
	})
	require.NoError(t, err)
	f.handler = srv.Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if authed {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) addSource(t *testing.T, url string) sources.Source {
	t.Helper()
	src, err := f.store.Create(context.Background(), sources.CreateInput{SourceURL: url})
	require.NoError(t, err)
	return src
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestPlay_CreatesSessionAndServesMaster(t *testing.T) {
	f := newFixture(t)
	src := f.addSource(t, "https://page.example/watch")
	before := testutil.CounterValue(t, "hlsgate_play_requests_total", map[string]string{"result": "ok"})

	rec := f.do(t, http.MethodGet, "/api/v1/play?sourceId="+src.Key, "", true)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PlayResponse](t, rec)
	assert.Equal(t, PlayResponse{
		SessionID:       "sess-1",
		PlaybackURL:     "/hls/sess-1/master.m3u8",
		FullPlaybackURL: "https://gate.example/hls/sess-1/master.m3u8",
	}, resp)
	assert.Equal(t, src.Key, f.resolver.lastID.Load())
	assert.Equal(t, before+1, testutil.CounterValue(t, "hlsgate_play_requests_total", map[string]string{"result": "ok"}))

	sess, ok := f.registry.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, src.Key, sess.SourceID)
	assert.Equal(t, f.upstream.URL, sess.OriginBase)
	assert.Equal(t, map[string]string{"User-Agent": "Player/1.0", "Accept-Language": "en-US,en;q=0.8"}, sess.UpstreamHeaders)
	assert.Equal(t, "sid=abc", sess.CookieHeader, "expired cookies are dropped")
	assert.Equal(t, testNow.Add(15*time.Minute), sess.ExpiresAt)

	master := f.do(t, http.MethodGet, resp.PlaybackURL, "", false)
	require.Equal(t, http.StatusOK, master.Code, "playback needs no api key")
	assert.Contains(t, master.Body.String(), "/hls/sess-1/media/")
}

func TestPlay_KeepsResolverAcceptLanguage(t *testing.T) {
	f := newFixture(t)
	src := f.addSource(t, "https://page.example/watch")
	f.resolver.result.RequiredHeaders = map[string]string{"accept-language": "de-DE"}

	rec := f.do(t, http.MethodGet, "/api/v1/play?sourceId="+src.Key, "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	sess, ok := f.registry.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"accept-language": "de-DE"}, sess.UpstreamHeaders)
}

func TestPlay_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		authed   bool
		setup    func(t *testing.T, f *fixture)
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing api key",
			path:     "/api/v1/play?sourceId=source-1",
			wantCode: http.StatusUnauthorized,
			wantErr:  "Unauthorized",
		},
		{
			name:     "missing source id",
			path:     "/api/v1/play",
			authed:   true,
			wantCode: http.StatusBadRequest,
			wantErr:  "Missing sourceId query parameter",
		},
		{
			name:     "unknown source",
			path:     "/api/v1/play?sourceId=source-404",
			authed:   true,
			wantCode: http.StatusNotFound,
			wantErr:  "Source ID not found: source-404",
		},
		{
			name:   "inactive source",
			path:   "/api/v1/play?sourceId=source-1",
			authed: true,
			setup: func(t *testing.T, f *fixture) {
				src := f.addSource(t, "https://page.example/watch")
				inactive := false
				_, err := f.store.Update(context.Background(), src.Key, sources.UpdateInput{IsActive: &inactive})
				require.NoError(t, err)
			},
			wantCode: http.StatusNotFound,
			wantErr:  "Source ID not found: source-1",
		},
		{
			name:   "resolver failure",
			path:   "/api/v1/play?sourceId=source-1",
			authed: true,
			setup: func(t *testing.T, f *fixture) {
				f.addSource(t, "https://page.example/watch")
				f.resolver.err = &resolver.Error{Reason: "no_hls_stream", Err: resolver.ErrNoStream}
			},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "Failed to resolve a valid HLS stream",
		},
		{
			name:   "master url without origin",
			path:   "/api/v1/play?sourceId=source-1",
			authed: true,
			setup: func(t *testing.T, f *fixture) {
				f.addSource(t, "https://page.example/watch")
				f.resolver.result.Streams[0].MasterURL = "ftp://cdn.example/master.m3u8"
			},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "Could not determine origin from master URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			rec := f.do(t, http.MethodGet, tt.path, "", tt.authed)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decode[errorResponse](t, rec).Error)
			assert.Zero(t, f.registry.Len(), "no session on failure")
		})
	}
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)
	src := f.addSource(t, "https://page.example/watch")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/play?sourceId="+src.Key, "", true).Code)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodDelete, "/api/v1/sessions/sess-1", "", false).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/sessions/sess-1", "", true).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/sessions/sess-1", "", true).Code, "idempotent")

	rec := f.do(t, http.MethodGet, "/hls/sess-1/master.m3u8", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSourcesCRUD(t *testing.T) {
	f := newFixture(t)

	list := f.do(t, http.MethodGet, "/api/v1/sources", "", true)
	require.Equal(t, http.StatusOK, list.Code)
	assert.JSONEq(t, `[]`, list.Body.String())

	created := f.do(t, http.MethodPost, "/api/v1/sources",
		`{"source_url":"https://page.example/a","name":"A","metadata":{"genre":"news"}}`, true)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	src := decode[sources.Source](t, created)
	assert.Equal(t, "source-1", src.Key)
	assert.Equal(t, "A", src.Name)
	assert.True(t, src.IsActive)
	assert.Equal(t, map[string]any{"genre": "news"}, src.Metadata)

	conflict := f.do(t, http.MethodPost, "/api/v1/sources", `{"source_url":"https://page.example/a"}`, true)
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, errorResponse{Error: "Source URL already exists.", Key: "source-1"}, decode[errorResponse](t, conflict))

	second := f.do(t, http.MethodPost, "/api/v1/sources", `{"source_url":"https://page.example/b"}`, true)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "source-2", decode[sources.Source](t, second).Key)

	updated := f.do(t, http.MethodPut, "/api/v1/sources/source-1", `{"name":"Renamed","is_active":false}`, true)
	require.Equal(t, http.StatusOK, updated.Code, updated.Body.String())
	up := decode[sources.Source](t, updated)
	assert.Equal(t, "Renamed", up.Name)
	assert.False(t, up.IsActive)
	assert.Equal(t, "https://page.example/a", up.SourceURL, "partial update keeps other fields")

	got := f.do(t, http.MethodGet, "/api/v1/sources/source-1", "", true)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "Renamed", decode[sources.Source](t, got).Name)

	deleted := f.do(t, http.MethodDelete, "/api/v1/sources/source-1", "", true)
	require.Equal(t, http.StatusOK, deleted.Code)
	assert.Equal(t, "source-1", decode[sources.Source](t, deleted).Key)

	list = f.do(t, http.MethodGet, "/api/v1/sources", "", true)
	assert.Len(t, decode[[]sources.Source](t, list), 1)
}

func TestSourcesErrors(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "update unknown", method: http.MethodPut, path: "/api/v1/sources/source-9", body: `{"name":"x"}`,
			wantCode: http.StatusNotFound, wantErr: "Source with key 'source-9' not found."},
		{name: "delete unknown", method: http.MethodDelete, path: "/api/v1/sources/source-9",
			wantCode: http.StatusNotFound, wantErr: "Source with key 'source-9' not found."},
		{name: "get unknown", method: http.MethodGet, path: "/api/v1/sources/source-9",
			wantCode: http.StatusNotFound, wantErr: "Source with key 'source-9' not found."},
		{name: "missing url", method: http.MethodPost, path: "/api/v1/sources", body: `{"name":"x"}`,
			wantCode: http.StatusBadRequest, wantErr: "source_url is required"},
		{name: "malformed json", method: http.MethodPost, path: "/api/v1/sources", body: `{"source_url":`,
			wantCode: http.StatusBadRequest, wantErr: "Invalid request body"},
		{name: "empty body", method: http.MethodPost, path: "/api/v1/sources",
			wantCode: http.StatusBadRequest, wantErr: "Request body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, tt.method, tt.path, tt.body, true)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decode[errorResponse](t, rec).Error)
		})
	}

	t.Run("invalid url", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/v1/sources", `{"source_url":"ftp://page.example/a"}`, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[errorResponse](t, rec).Error, "absolute http(s) URL")
	})
}

func TestProbesAndMetrics(t *testing.T) {
	f := newFixture(t)

	healthz := f.do(t, http.MethodGet, "/healthz", "", false)
	require.Equal(t, http.StatusOK, healthz.Code)
	body := decode[map[string]any](t, healthz)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])

	readyz := f.do(t, http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusOK, readyz.Code)

	metricsRec := f.do(t, http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), "hlsgate_sessions_active")
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/nope", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode[errorResponse](t, rec).Error)
}
