// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/hlsgate/internal/resilience"
	"github.com/ManuGH/hlsgate/internal/testutil"
)

const validBody = `{
  "sessionId": "r-1",
  "pageUrl": "https://page.example/watch/1",
  "detectedAt": "2026-01-02T03:04:05.000Z",
  "streams": [{"type": "HLS", "masterUrl": "https://cdn.example/live/master.m3u8", "isLive": true}],
  "requiredHeaders": {"User-Agent": "Mozilla/5.0", "Referer": "https://page.example/"},
  "requiredCookies": [{"name": "sid", "value": "abc", "expires": 1999999999}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, breaker *resilience.CircuitBreaker) (*Client, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := New(Options{
		BaseURL:   srv.URL + "/",
		APIKey:    "resolver-key",
		Timeout:   2 * time.Second,
		RateLimit: 1000,
		Breaker:   breaker,
	})
	return c, &hits
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestResolveSuccess(t *testing.T) {
	var gotReq resolveRequest
	var gotKey, gotPath, gotMethod string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotPath = r.URL.Path
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		respond(http.StatusOK, validBody)(w, r)
	}, nil)

	res, err := c.Resolve(context.Background(), "source-1", "https://page.example/watch/1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/v1/resolve", gotPath)
	assert.Equal(t, "resolver-key", gotKey)
	assert.Equal(t, "https://page.example/watch/1", gotReq.URL)

	assert.Equal(t, "https://cdn.example/live/master.m3u8", res.MasterURL())
	assert.Equal(t, "Mozilla/5.0", res.RequiredHeaders["User-Agent"])
	require.Len(t, res.RequiredCookies, 1)
	assert.Equal(t, time.Unix(1999999999, 0), res.RequiredCookies[0].ExpiresAt())
	require.NotNil(t, res.Streams[0].IsLive)
	assert.True(t, *res.Streams[0].IsLive)
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantReason string
		wantErr    error
	}{
		{
			name:       "non-2xx status",
			handler:    respond(http.StatusBadGateway, `{"error":"down"}`),
			wantReason: "http_502",
			wantErr:    ErrUpstreamStatus,
		},
		{
			name:       "unauthorized",
			handler:    respond(http.StatusUnauthorized, ``),
			wantReason: "http_401",
			wantErr:    ErrUpstreamStatus,
		},
		{
			name:       "malformed json",
			handler:    respond(http.StatusOK, `{"sessionId":`),
			wantReason: ReasonInvalidResponse,
			wantErr:    ErrInvalidResponse,
		},
		{
			name:       "non-hls stream type",
			handler:    respond(http.StatusOK, `{"sessionId":"r","pageUrl":"https://p.example/","detectedAt":"2026-01-02T03:04:05Z","streams":[{"type":"DASH","masterUrl":"https://c.example/m.mpd"}],"requiredHeaders":{}}`),
			wantReason: ReasonInvalidResponse,
			wantErr:    ErrInvalidResponse,
		},
		{
			name:       "relative master url",
			handler:    respond(http.StatusOK, `{"sessionId":"r","pageUrl":"https://p.example/","detectedAt":"2026-01-02T03:04:05Z","streams":[{"type":"HLS","masterUrl":"/m.m3u8"}],"requiredHeaders":{}}`),
			wantReason: ReasonInvalidResponse,
			wantErr:    ErrInvalidResponse,
		},
		{
			name:       "bad detectedAt",
			handler:    respond(http.StatusOK, `{"sessionId":"r","pageUrl":"https://p.example/","detectedAt":"yesterday","streams":[],"requiredHeaders":{}}`),
			wantReason: ReasonInvalidResponse,
			wantErr:    ErrInvalidResponse,
		},
		{
			name:       "missing required headers",
			handler:    respond(http.StatusOK, `{"sessionId":"r","pageUrl":"https://p.example/","detectedAt":"2026-01-02T03:04:05Z","streams":[]}`),
			wantReason: ReasonInvalidResponse,
			wantErr:    ErrInvalidResponse,
		},
		{
			name:       "empty stream list",
			handler:    respond(http.StatusOK, `{"sessionId":"r","pageUrl":"https://p.example/","detectedAt":"2026-01-02T03:04:05Z","streams":[],"requiredHeaders":{}}`),
			wantReason: ReasonNoStream,
			wantErr:    ErrNoStream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler, nil)
			labels := map[string]string{"reason": tt.wantReason}
			before := testutil.CounterValue(t, "hlsgate_resolver_errors_total", labels)

			res, err := c.Resolve(context.Background(), "source-1", "https://page.example/")

			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantReason, Reason(err))
			assert.Equal(t, before+1, testutil.CounterValue(t, "hlsgate_resolver_errors_total", labels))
		})
	}
}

func TestResolveNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url, Timeout: time.Second})
	_, err := c.Resolve(context.Background(), "source-1", "https://page.example/")

	require.Error(t, err)
	assert.Equal(t, ReasonNetwork, Reason(err))
}

func TestResolveBreakerOpensOnServerErrors(t *testing.T) {
	breaker := resilience.NewCircuitBreaker("resolver-test", 2, time.Minute,
		resilience.WithFailureClassifier(countsAgainstBreaker))
	c, hits := newTestClient(t, respond(http.StatusInternalServerError, ""), breaker)

	for range 2 {
		_, err := c.Resolve(context.Background(), "source-1", "https://page.example/")
		require.Equal(t, "http_500", Reason(err))
	}
	require.Equal(t, resilience.StateOpen, c.BreakerState())

	_, err := c.Resolve(context.Background(), "source-1", "https://page.example/")
	assert.Equal(t, ReasonCircuitOpen, Reason(err))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int64(2), hits.Load(), "open breaker short-circuits")
}

func TestResolveClientErrorsDoNotTripBreaker(t *testing.T) {
	breaker := resilience.NewCircuitBreaker("resolver-test-4xx", 1, time.Minute,
		resilience.WithFailureClassifier(countsAgainstBreaker))
	c, _ := newTestClient(t, respond(http.StatusNotFound, ""), breaker)

	for range 3 {
		_, err := c.Resolve(context.Background(), "source-1", "https://page.example/")
		require.Equal(t, "http_404", Reason(err))
	}
	assert.Equal(t, resilience.StateClosed, c.BreakerState())
}

func TestResolveSharesConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		respond(http.StatusOK, validBody)(w, r)
	}, nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Resolve(context.Background(), "source-1", "https://page.example/")
		}()
	}

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), hits.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestResolveCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Resolve(ctx, "source-1", "https://page.example/")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, Reason(err))
}

func TestCookieExpiresAt(t *testing.T) {
	assert.True(t, Cookie{}.ExpiresAt().IsZero())
	assert.True(t, Cookie{Expires: -5}.ExpiresAt().IsZero())
	assert.Equal(t, time.Unix(10, int64(500*time.Millisecond)), Cookie{Expires: 10.5}.ExpiresAt())
}

func TestMasterURLNilSafe(t *testing.T) {
	var r *Result
	assert.Empty(t, r.MasterURL())
	assert.Empty(t, (&Result{}).MasterURL())
}
