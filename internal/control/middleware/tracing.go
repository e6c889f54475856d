// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package middleware provides the HTTP ingress middleware shared by the
// proxy and control routes.
package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/hlsgate/internal/telemetry"
)

// Tracing wraps requests in OpenTelemetry server spans. Incoming W3C trace
// context is honoured through the global propagator. Spans are renamed to
// "METHOD route" once chi has matched the route.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			annotateSpan(next),
			serviceName,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithPropagators(otel.GetTextMapPropagator()),
			otelhttp.WithFilter(shouldTrace),
			otelhttp.WithSpanNameFormatter(spanNameFormatter),
		)
	}
}

func annotateSpan(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		span := trace.SpanFromContext(r.Context())
		if !span.IsRecording() {
			return
		}
		attrs := telemetry.HTTPAttributes(r.Method, routePattern(r), redactedTarget(r), ww.Status())
		if reqID := ww.Header().Get(HeaderRequestID); reqID != "" {
			attrs = append(attrs, attribute.String("http.request_id", reqID))
		}
		span.SetAttributes(attrs...)

		// 4xx are client-side issues; keep the error signal for 5xx.
		if ww.Status() >= 500 {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// shouldTrace skips probes and the scrape endpoint.
func shouldTrace(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return false
	}
	return true
}

// spanNameFormatter runs once before routing and again after it when the
// router has set r.Pattern. Raw proxy paths carry encoded upstream URLs, so
// the unrouted name is the method alone.
func spanNameFormatter(_ string, r *http.Request) string {
	if r.Pattern != "" {
		return r.Method + " " + r.Pattern
	}
	return "HTTP " + r.Method
}

// redactedTarget is the route pattern with a marker for a present query.
// Query values may hold tokens and are never recorded.
func redactedTarget(r *http.Request) string {
	target := routePattern(r)
	if r.URL.RawQuery != "" {
		target += "?"
	}
	return target
}
