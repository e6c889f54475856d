// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api wires the HTTP surface: the per-session HLS routes, the
// control API under /api/v1 and the probe and metrics endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/hlsgate/internal/control/middleware"
	"github.com/ManuGH/hlsgate/internal/health"
	"github.com/ManuGH/hlsgate/internal/proxy"
	"github.com/ManuGH/hlsgate/internal/resolver"
	"github.com/ManuGH/hlsgate/internal/sources"
)

// Resolver turns a source URL into playable streams.
type Resolver interface {
	Resolve(ctx context.Context, sourceID, originalURL string) (*resolver.Result, error)
}

// Config holds the HTTP surface settings.
type Config struct {
	// PublicURL prefixes fullPlaybackUrl in play responses.
	PublicURL string
	APIKey    string

	SessionTTL     time.Duration
	AcceptLanguage string
	EnforceOrigin  bool

	CORSOrigins    []string
	TrustedProxies []*net.IPNet
	RateLimitRPM   int
	// TracingService enables request tracing when non-empty.
	TracingService string
}

// Deps are the collaborators the server dispatches to.
type Deps struct {
	Sources  sources.Store
	Resolver Resolver
	Registry *proxy.Registry
	Fetcher  *proxy.Fetcher
	Health   *health.Manager

	// Now and NewSessionID default to time.Now and uuid.NewString.
	Now          func() time.Time
	NewSessionID func() string
}

// Server serves the gateway's HTTP routes.
type Server struct {
	cfg      Config
	sources  sources.Store
	resolver Resolver
	registry *proxy.Registry
	fetcher  *proxy.Fetcher
	health   *health.Manager
	now      func() time.Time
	newID    func() string
}

// ErrMissingDependency is returned by New when a required dependency is nil.
var ErrMissingDependency = errors.New("missing dependency")

// New validates deps and builds a Server.
func New(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Sources == nil:
		return nil, fmt.Errorf("%w: sources store", ErrMissingDependency)
	case deps.Resolver == nil:
		return nil, fmt.Errorf("%w: resolver", ErrMissingDependency)
	case deps.Registry == nil:
		return nil, fmt.Errorf("%w: session registry", ErrMissingDependency)
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("%w: upstream fetcher", ErrMissingDependency)
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewSessionID == nil {
		deps.NewSessionID = uuid.NewString
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	return &Server{
		cfg:      cfg,
		sources:  deps.Sources,
		resolver: deps.Resolver,
		registry: deps.Registry,
		fetcher:  deps.Fetcher,
		health:   deps.Health,
		now:      deps.Now,
		newID:    deps.NewSessionID,
	}, nil
}

// Handler returns the configured HTTP handler with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.CORSOrigins,
		EnableSecurityHeaders: true,
		TrustedProxies:        s.cfg.TrustedProxies,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Players cannot send the API key; the session id is the capability.
	proxy.NewHandler(s.registry, s.fetcher, proxy.HandlerConfig{EnforceOrigin: s.cfg.EnforceOrigin}).Mount(r)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIRateLimit(s.cfg.RateLimitRPM))
		r.Use(middleware.APIKey(s.cfg.APIKey))

		r.Get("/play", s.handlePlay)
		r.Delete("/sessions/{sessionID}", s.handleDeleteSession)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Get("/{key}", s.handleGetSource)
			r.Put("/{key}", s.handleUpdateSource)
			r.Delete("/{key}", s.handleDeleteSource)
		})
	})
	return r
}
