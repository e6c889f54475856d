// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"net"

	"github.com/ManuGH/hlsgate/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("server.listenAddr", cfg.Server.ListenAddr)
	v.URL("server.publicURL", cfg.Server.PublicURL, []string{"http", "https"})
	v.NonNegative("server.rateLimitRPM", cfg.Server.RateLimitRPM)
	v.PositiveDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)
	for _, origin := range cfg.Server.CORSOrigins {
		if origin == "*" {
			continue
		}
		v.URL("server.corsOrigins", origin, []string{"http", "https"})
	}

	for _, cidr := range cfg.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			v.AddError("server.trustedProxies", "invalid CIDR", cidr)
		}
	}

	v.NotEmpty("auth.apiKey", cfg.Auth.APIKey)

	v.URL("resolver.baseURL", cfg.Resolver.BaseURL, []string{"http", "https"})
	v.NotEmpty("resolver.apiKey", cfg.Resolver.APIKey)
	v.PositiveDuration("resolver.timeout", cfg.Resolver.Timeout)
	if cfg.Resolver.RPS < 0 {
		v.AddError("resolver.rps", "value cannot be negative", cfg.Resolver.RPS)
	}

	v.PositiveDuration("session.ttl", cfg.Session.TTL)
	v.PositiveDuration("session.sweepInterval", cfg.Session.SweepInterval)
	if cfg.Session.TTL > 0 && cfg.Session.SweepInterval > 0 {
		v.Less("session.sweepInterval", cfg.Session.SweepInterval, "session.ttl", cfg.Session.TTL)
	}

	v.PositiveDuration("upstream.responseHeaderTimeout", cfg.Upstream.ResponseHeaderTimeout)

	v.OneOf("sources.backend", cfg.Sources.Backend, []string{BackendFile, BackendSQLite, BackendRedis})
	switch cfg.Sources.Backend {
	case BackendFile, BackendSQLite:
		v.NotEmpty("sources.path", cfg.Sources.Path)
	case BackendRedis:
		v.NotEmpty("sources.redis.addr", cfg.Sources.Redis.Addr)
		v.NonNegative("sources.redis.db", cfg.Sources.Redis.DB)
	}

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, []string{ExporterGRPC, ExporterHTTP})
		v.NotEmpty("tracing.endpoint", cfg.Tracing.Endpoint)
		v.FloatRange("tracing.sampleRate", cfg.Tracing.SampleRate, 0, 1)
	}

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("logLevel", err.Error(), cfg.LogLevel)
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
