// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/hlsgate/internal/netutil"
	"github.com/ManuGH/hlsgate/internal/platform/httpx"
	"github.com/ManuGH/hlsgate/internal/testutil"
)

type proxyFixture struct {
	upstream *httptest.Server
	registry *Registry
	router   *chi.Mux
	hits     atomic.Int64
	lastReq  atomic.Pointer[http.Request]
}

func newProxyFixture(t *testing.T, cfg HandlerConfig, upstream http.HandlerFunc) *proxyFixture {
	t.Helper()
	f := &proxyFixture{}
	f.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.lastReq.Store(r.Clone(r.Context()))
		upstream(w, r)
	}))
	t.Cleanup(f.upstream.Close)

	f.registry = NewRegistry(RegistryConfig{SweepInterval: -1})
	t.Cleanup(f.registry.Close)

	f.router = chi.NewRouter()
	NewHandler(f.registry, NewFetcher(httpx.NewStreamingClient(2*time.Second)), cfg).Mount(f.router)

	f.registry.Create(Session{
		SessionID:       "S",
		OriginBase:      f.upstream.URL,
		MasterURL:       f.upstream.URL + "/path/master.m3u8",
		UpstreamHeaders: map[string]string{"User-Agent": "Player/1.0", "Referer": "https://page.example/"},
		CookieHeader:    "sid=1",
		ExpiresAt:       time.Now().Add(time.Hour),
	})
	return f
}

func (f *proxyFixture) do(t *testing.T, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func hlsUpstream(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/path/master.m3u8":
		_, _ = io.WriteString(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\nvariant.m3u8\n")
	case "/path/variant.m3u8":
		_, _ = io.WriteString(w, "#EXTM3U\n#EXTINF:6,\nseg0.ts\n#EXT-X-ENDLIST\n")
	case "/path/seg0.ts":
		w.Header().Set("Content-Type", "video/mp2t")
		w.Header().Set("X-Internal", "secret")
		_, _ = io.WriteString(w, "TSDATA")
	case "/forbidden.m3u8":
		http.Error(w, "nope", http.StatusForbidden)
	default:
		http.NotFound(w, r)
	}
}

func TestServeMaster(t *testing.T) {
	f := newProxyFixture(t, HandlerConfig{}, hlsUpstream)

	rec := f.do(t, "/hls/S/master.m3u8", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, ContentTypeHLS, rec.Header().Get("Content-Type"))
	wantVariant := "/hls/S/media/" + netutil.EncodeComponent(f.upstream.URL+"/path/variant.m3u8")
	assert.Equal(t, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\n"+wantVariant+"\n", rec.Body.String())

	upstreamReq := f.lastReq.Load()
	require.NotNil(t, upstreamReq)
	assert.Equal(t, "Player/1.0", upstreamReq.Header.Get("User-Agent"))
	assert.Equal(t, "sid=1", upstreamReq.Header.Get("Cookie"))
	assert.NotContains(t, rec.Body.String(), f.upstream.URL+"/path/variant.m3u8", "upstream url must not leak")
}

func TestServeMediaThenSegment(t *testing.T) {
	f := newProxyFixture(t, HandlerConfig{}, hlsUpstream)

	media := f.do(t, "/hls/S/media/"+netutil.EncodeComponent(f.upstream.URL+"/path/variant.m3u8"), nil)
	require.Equal(t, http.StatusOK, media.Code, media.Body.String())
	assert.Equal(t, ContentTypeHLS, media.Header().Get("Content-Type"))

	segPath := "/hls/S/segment/" + netutil.EncodeComponent(f.upstream.URL+"/path/seg0.ts")
	assert.Contains(t, media.Body.String(), segPath)

	seg := f.do(t, segPath, nil)
	require.Equal(t, http.StatusOK, seg.Code)
	assert.Equal(t, "TSDATA", seg.Body.String())
	assert.Equal(t, "video/mp2t", seg.Header().Get("Content-Type"))
	assert.Empty(t, seg.Header().Get("X-Internal"))
}

func TestServeSegmentForwardsRange(t *testing.T) {
	f := newProxyFixture(t, HandlerConfig{}, func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "seg.ts", time.Unix(0, 0), strings.NewReader("0123456789"))
	})

	rec := f.do(t, "/hls/S/segment/"+netutil.EncodeComponent(f.upstream.URL+"/seg.ts"),
		http.Header{"Range": {"bytes=2-5"}})

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "2345", rec.Body.String())
	assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))
	assert.Equal(t, "bytes=2-5", f.lastReq.Load().Header.Get("Range"))
}

func TestHandlersUnknownSession(t *testing.T) {
	f := newProxyFixture(t, HandlerConfig{}, hlsUpstream)

	for _, path := range []string{
		"/hls/nope/master.m3u8",
		"/hls/nope/media/" + netutil.EncodeComponent(f.upstream.URL+"/path/variant.m3u8"),
		"/hls/nope/segment/" + netutil.EncodeComponent(f.upstream.URL+"/path/seg0.ts"),
	} {
		rec := f.do(t, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "Session not found", errorBody(t, rec))
	}
	assert.Zero(t, f.hits.Load(), "no upstream fetch for unknown sessions")
}

func TestHandlersMissingOrInvalidEncodedURL(t *testing.T) {
	f := newProxyFixture(t, HandlerConfig{}, hlsUpstream)

	rec := f.do(t, "/hls/S/media/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing media playlist URL", errorBody(t, rec))

	rec = f.do(t, "/hls/S/segment/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing segment URL", errorBody(t, rec))

	rec = f.do(t, "/hls/S/segment/%25zz", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlersPropagateUpstreamStatus(t *testing.T) {
	f := newProxyFixture(t, HandlerConfig{}, hlsUpstream)
	before := testutil.CounterValue(t, "hlsgate_upstream_errors_total", map[string]string{"status": "403"})

	rec := f.do(t, "/hls/S/media/"+netutil.EncodeComponent(f.upstream.URL+"/forbidden.m3u8"), nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", rec.Body.String())
	assert.Equal(t, before+1, testutil.CounterValue(t, "hlsgate_upstream_errors_total", map[string]string{"status": "403"}))

	_, ok := f.registry.Get("S")
	assert.True(t, ok, "upstream failures leave the session intact")
}

func TestHandlersTransportFailureIs500(t *testing.T) {
	f := newProxyFixture(t, HandlerConfig{}, hlsUpstream)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	rec := f.do(t, "/hls/S/segment/"+netutil.EncodeComponent(deadURL+"/seg.ts"), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to process segment", errorBody(t, rec))

	master := f.do(t, "/hls/S/master.m3u8", nil)
	assert.Equal(t, http.StatusOK, master.Code, "session survives a failed fetch")
}

func TestHandlersEnforceOrigin(t *testing.T) {
	f := newProxyFixture(t, HandlerConfig{EnforceOrigin: true}, hlsUpstream)

	rec := f.do(t, "/hls/S/segment/"+netutil.EncodeComponent("https://elsewhere.example/seg.ts"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, f.hits.Load())

	rec = f.do(t, "/hls/S/segment/"+netutil.EncodeComponent(f.upstream.URL+"/path/seg0.ts"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlersOriginNotEnforcedByDefault(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "OTHER")
	}))
	defer other.Close()
	f := newProxyFixture(t, HandlerConfig{}, hlsUpstream)

	rec := f.do(t, "/hls/S/segment/"+netutil.EncodeComponent(other.URL+"/seg.ts"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTHER", rec.Body.String())
}
