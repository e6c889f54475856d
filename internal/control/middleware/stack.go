// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/hlsgate/internal/log"
)

// StackConfig selects the optional layers of the ingress chain. Recovery and
// request ids are always on.
type StackConfig struct {
	EnableCORS           bool
	AllowedOrigins       []string
	CORSAllowCredentials bool

	EnableSecurityHeaders bool
	CSP                   string
	// TrustedProxies may set X-Forwarded-Proto for HSTS decisions.
	TrustedProxies []*net.IPNet

	EnableMetrics bool
	// TracingService names the otel span source; empty disables tracing.
	TracingService string
	EnableLogging  bool
}

// NewRouter returns a chi router with Chain(cfg) installed.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Chain(cfg)...)
	return r
}

// Chain lists the ingress middleware outermost first. RequestID wraps
// Recoverer so panic responses and logs carry the request id. The request
// logger sits innermost. Rate limiting and the API key gate belong to route
// groups and are absent.
func Chain(cfg StackConfig) []func(http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{RequestID, Recoverer}
	if cfg.EnableCORS {
		chain = append(chain, CORS(cfg.AllowedOrigins, cfg.CORSAllowCredentials))
	}
	if cfg.EnableSecurityHeaders {
		chain = append(chain, SecurityHeaders(cfg.CSP, cfg.TrustedProxies))
	}
	if cfg.EnableMetrics {
		chain = append(chain, Metrics())
	}
	if cfg.TracingService != "" {
		chain = append(chain, Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		chain = append(chain, log.Middleware())
	}
	return chain
}
