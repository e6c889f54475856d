// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Middleware logs one line per HTTP request once the handler has returned.
// The route pattern is logged instead of the raw path: proxied paths carry
// encoded upstream URLs.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			logger := WithComponentFromContext(r.Context(), "http")
			var evt = logger.Info()
			switch status := ww.Status(); {
			case status >= 500:
				evt = logger.Error()
			case status >= 400:
				evt = logger.Warn()
			case route == "/healthz" || route == "/readyz" || route == "/metrics":
				evt = logger.Debug()
			}
			evt.
				Str(FieldEvent, "request.handled").
				Str(FieldMethod, r.Method).
				Str(FieldRoute, route).
				Int(FieldStatus, ww.Status()).
				Int(FieldBytes, ww.BytesWritten()).
				Int64(FieldDurationMS, time.Since(start).Milliseconds()).
				Str(FieldRemoteAddr, r.RemoteAddr).
				Msg("request handled")
		})
	}
}
