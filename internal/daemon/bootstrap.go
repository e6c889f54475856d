// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon assembles the gateway from its configuration and owns the
// process lifecycle.
package daemon

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ManuGH/hlsgate/internal/api"
	"github.com/ManuGH/hlsgate/internal/config"
	"github.com/ManuGH/hlsgate/internal/control/middleware"
	"github.com/ManuGH/hlsgate/internal/health"
	"github.com/ManuGH/hlsgate/internal/log"
	"github.com/ManuGH/hlsgate/internal/platform/httpx"
	"github.com/ManuGH/hlsgate/internal/proxy"
	"github.com/ManuGH/hlsgate/internal/resolver"
	"github.com/ManuGH/hlsgate/internal/sources"
	"github.com/ManuGH/hlsgate/internal/telemetry"
)

// Bootstrap validates the environment and builds every component named by
// cfg. On error, whatever was already opened is closed again.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (app *App, err error) {
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: telemetry.DefaultServiceName,
		Version: cfg.Version,
	})
	logger := log.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, err
	}

	var cleanups []func(context.Context) error
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanups) - 1; i >= 0; i-- {
			_ = cleanups[i](context.WithoutCancel(ctx))
		}
	}()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    telemetry.DefaultServiceName,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	cleanups = append(cleanups, provider.Shutdown)

	store, err := sources.Open(ctx, sources.Config{
		Backend: cfg.Sources.Backend,
		Path:    cfg.Sources.Path,
		Redis: sources.RedisConfig{
			Addr:     cfg.Sources.Redis.Addr,
			Password: cfg.Sources.Redis.Password,
			DB:       cfg.Sources.Redis.DB,
		},
		Watch: cfg.Sources.Backend == config.BackendFile,
	})
	if err != nil {
		return nil, fmt.Errorf("open source store: %w", err)
	}
	cleanups = append(cleanups, func(context.Context) error { return store.Close() })

	registry := proxy.NewRegistry(proxy.RegistryConfig{SweepInterval: cfg.Session.SweepInterval})
	cleanups = append(cleanups, func(context.Context) error { registry.Close(); return nil })

	fetcher := proxy.NewFetcher(httpx.Traced(httpx.NewStreamingClient(cfg.Upstream.ResponseHeaderTimeout), "upstream"))

	resolverClient := resolver.New(resolver.Options{
		BaseURL:   cfg.Resolver.BaseURL,
		APIKey:    cfg.Resolver.APIKey,
		Timeout:   cfg.Resolver.Timeout,
		RateLimit: rate.Limit(cfg.Resolver.RPS),
	})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("sources", store.Ping))
	hm.RegisterChecker(health.NewBreakerChecker("resolver", resolverClient.BreakerState))
	hm.RegisterChecker(health.NewGaugeChecker("sessions", "active sessions", registry.Len))

	trusted, err := middleware.ParseCIDRs(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	var tracingService string
	if provider.Enabled() {
		tracingService = telemetry.DefaultServiceName
	}

	srv, err := api.New(api.Config{
		PublicURL:      cfg.Server.PublicURL,
		APIKey:         cfg.Auth.APIKey,
		SessionTTL:     cfg.Session.TTL,
		AcceptLanguage: cfg.Upstream.AcceptLanguage,
		EnforceOrigin:  cfg.Proxy.EnforceOrigin,
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustedProxies: trusted,
		RateLimitRPM:   cfg.Server.RateLimitRPM,
		TracingService: tracingService,
	}, api.Deps{
		Sources:  store,
		Resolver: resolverClient,
		Registry: registry,
		Fetcher:  fetcher,
		Health:   hm,
	})
	if err != nil {
		return nil, fmt.Errorf("build api server: %w", err)
	}

	mgr, err := NewManager(cfg.Server, Deps{
		Logger:     logger,
		APIHandler: srv.Handler(),
	})
	if err != nil {
		return nil, err
	}
	// LIFO: sessions stop first, tracing flushes last.
	mgr.RegisterShutdownHook("telemetry", provider.Shutdown)
	mgr.RegisterShutdownHook("sources", func(context.Context) error { return store.Close() })
	mgr.RegisterShutdownHook("sessions", func(context.Context) error { registry.Close(); return nil })

	var reloader Reloader
	if fs, ok := store.(*sources.FileStore); ok {
		reloader = fs
	}

	logger.Info().
		Str("backend", cfg.Sources.Backend).
		Bool("tracing", provider.Enabled()).
		Bool("enforce_origin", cfg.Proxy.EnforceOrigin).
		Dur("session_ttl", cfg.Session.TTL).
		Msg("gateway assembled")

	return NewApp(logger, mgr, reloader), nil
}
