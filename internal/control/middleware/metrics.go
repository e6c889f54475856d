// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpLabels = []string{"method", "route", "status"}

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hlsgate_http_request_duration_seconds",
		Help:    "Time to serve an HTTP request, by chi route pattern.",
		Buckets: prometheus.DefBuckets,
	}, httpLabels)

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hlsgate_http_response_size_bytes",
		Help:    "Bytes written per HTTP response, by chi route pattern.",
		Buckets: prometheus.ExponentialBuckets(100, 10, 8),
	}, httpLabels)

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlsgate_http_requests_in_flight",
		Help: "HTTP requests currently being served.",
	})
)

// Metrics observes latency and response size per route. Labels use the chi
// pattern: a raw /hls path would carry a session id and an upstream URL.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			began := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			labels := prometheus.Labels{
				"method": r.Method,
				"route":  routePattern(r),
				"status": strconv.Itoa(status),
			}
			httpRequestDuration.With(labels).Observe(time.Since(began).Seconds())
			if n := ww.BytesWritten(); n > 0 {
				httpResponseSize.With(labels).Observe(float64(n))
			}
		})
	}
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.RoutePattern() == "" {
		return "unmatched"
	}
	return rctx.RoutePattern()
}
