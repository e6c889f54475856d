// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultListenAddr            = ":8000"
	DefaultPublicURL             = "http://localhost:8000"
	DefaultResolverTimeout       = 20 * time.Second
	DefaultResolverRPS           = 5.0
	DefaultSessionTTL            = 15 * time.Minute
	DefaultSweepInterval         = 60 * time.Second
	DefaultAcceptLanguage        = "en-US,en;q=0.8"
	DefaultResponseHeaderTimeout = 15 * time.Second
	DefaultSourcesPath           = "sources.yaml"
	DefaultRedisAddr             = "localhost:6379"
	DefaultRateLimitRPM          = 600
	DefaultShutdownTimeout       = 10 * time.Second
	DefaultTracingEndpoint       = "localhost:4317"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envStrings(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringSlice(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// The merged result is validated before it is returned.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the configuration used when neither file nor environment
// set a value. Required keys stay empty.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		Server: ServerConfig{
			ListenAddr:      DefaultListenAddr,
			PublicURL:       DefaultPublicURL,
			RateLimitRPM:    DefaultRateLimitRPM,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Resolver: ResolverConfig{
			Timeout: DefaultResolverTimeout,
			RPS:     DefaultResolverRPS,
		},
		Session: SessionConfig{
			TTL:           DefaultSessionTTL,
			SweepInterval: DefaultSweepInterval,
		},
		Upstream: UpstreamConfig{
			AcceptLanguage:        DefaultAcceptLanguage,
			ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		},
		Sources: SourcesConfig{
			Backend: BackendFile,
			Path:    DefaultSourcesPath,
			Redis:   RedisConfig{Addr: DefaultRedisAddr},
		},
		Tracing: TracingConfig{
			Exporter:   ExporterGRPC,
			Endpoint:   DefaultTracingEndpoint,
			SampleRate: 1.0,
		},
	}
}

// LoadFileConfig loads a YAML config file without applying defaults or env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	return NewLoader(path, "").loadFile(path)
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, fc *FileConfig) error {
	setString(&cfg.LogLevel, fc.LogLevel)

	setString(&cfg.Server.ListenAddr, fc.Server.ListenAddr)
	setString(&cfg.Server.PublicURL, fc.Server.PublicURL)
	if len(fc.Server.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = append([]string(nil), fc.Server.CORSOrigins...)
	}
	if len(fc.Server.TrustedProxies) > 0 {
		cfg.Server.TrustedProxies = append([]string(nil), fc.Server.TrustedProxies...)
	}
	if fc.Server.RateLimitRPM != nil {
		cfg.Server.RateLimitRPM = *fc.Server.RateLimitRPM
	}

	setString(&cfg.Auth.APIKey, fc.Auth.APIKey)

	setString(&cfg.Resolver.BaseURL, fc.Resolver.BaseURL)
	setString(&cfg.Resolver.APIKey, fc.Resolver.APIKey)
	if fc.Resolver.RPS != nil {
		cfg.Resolver.RPS = *fc.Resolver.RPS
	}

	setString(&cfg.Upstream.AcceptLanguage, fc.Upstream.AcceptLanguage)
	if fc.Proxy.EnforceOrigin != nil {
		cfg.Proxy.EnforceOrigin = *fc.Proxy.EnforceOrigin
	}

	setString(&cfg.Sources.Backend, fc.Sources.Backend)
	setString(&cfg.Sources.Path, fc.Sources.Path)
	setString(&cfg.Sources.Redis.Addr, fc.Sources.Redis.Addr)
	setString(&cfg.Sources.Redis.Password, fc.Sources.Redis.Password)
	if fc.Sources.Redis.DB != nil {
		cfg.Sources.Redis.DB = *fc.Sources.Redis.DB
	}

	if fc.Tracing.Enabled != nil {
		cfg.Tracing.Enabled = *fc.Tracing.Enabled
	}
	setString(&cfg.Tracing.Exporter, fc.Tracing.Exporter)
	setString(&cfg.Tracing.Endpoint, fc.Tracing.Endpoint)
	if fc.Tracing.SampleRate != nil {
		cfg.Tracing.SampleRate = *fc.Tracing.SampleRate
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"server.shutdownTimeout", fc.Server.ShutdownTimeout, &cfg.Server.ShutdownTimeout},
		{"resolver.timeout", fc.Resolver.Timeout, &cfg.Resolver.Timeout},
		{"session.ttl", fc.Session.TTL, &cfg.Session.TTL},
		{"session.sweepInterval", fc.Session.SweepInterval, &cfg.Session.SweepInterval},
		{"upstream.responseHeaderTimeout", fc.Upstream.ResponseHeaderTimeout, &cfg.Upstream.ResponseHeaderTimeout},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", d.field, d.raw, err)
		}
		*d.dst = v
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)

	cfg.Server.ListenAddr = l.envString("HLSGATE_LISTEN", cfg.Server.ListenAddr)
	cfg.Server.PublicURL = l.envString("HLSGATE_PUBLIC_URL", cfg.Server.PublicURL)
	cfg.Server.CORSOrigins = l.envStrings("HLSGATE_CORS_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Server.TrustedProxies = l.envStrings("HLSGATE_TRUSTED_PROXIES", cfg.Server.TrustedProxies)
	cfg.Server.RateLimitRPM = l.envInt("HLSGATE_RATE_LIMIT_RPM", cfg.Server.RateLimitRPM)
	cfg.Server.ShutdownTimeout = l.envDuration("HLSGATE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Auth.APIKey = l.envString("HLSGATE_API_KEY", cfg.Auth.APIKey)

	cfg.Resolver.BaseURL = l.envString("HLSGATE_RESOLVER_URL", cfg.Resolver.BaseURL)
	cfg.Resolver.APIKey = l.envString("HLSGATE_RESOLVER_API_KEY", cfg.Resolver.APIKey)
	cfg.Resolver.Timeout = l.envDuration("HLSGATE_RESOLVER_TIMEOUT", cfg.Resolver.Timeout)
	cfg.Resolver.RPS = l.envFloat("HLSGATE_RESOLVER_RPS", cfg.Resolver.RPS)

	cfg.Session.TTL = l.envDuration("HLSGATE_SESSION_TTL", cfg.Session.TTL)
	cfg.Session.SweepInterval = l.envDuration("HLSGATE_SWEEP_INTERVAL", cfg.Session.SweepInterval)

	cfg.Upstream.AcceptLanguage = l.envString("HLSGATE_ACCEPT_LANGUAGE", cfg.Upstream.AcceptLanguage)
	cfg.Upstream.ResponseHeaderTimeout = l.envDuration("HLSGATE_UPSTREAM_HEADER_TIMEOUT", cfg.Upstream.ResponseHeaderTimeout)

	cfg.Proxy.EnforceOrigin = l.envBool("HLSGATE_ENFORCE_ORIGIN", cfg.Proxy.EnforceOrigin)

	cfg.Sources.Backend = strings.ToLower(l.envString("HLSGATE_SOURCES_BACKEND", cfg.Sources.Backend))
	cfg.Sources.Path = l.envString("HLSGATE_SOURCES_PATH", cfg.Sources.Path)
	cfg.Sources.Redis.Addr = l.envString("HLSGATE_REDIS_ADDR", cfg.Sources.Redis.Addr)
	cfg.Sources.Redis.Password = l.envString("HLSGATE_REDIS_PASSWORD", cfg.Sources.Redis.Password)
	cfg.Sources.Redis.DB = l.envInt("HLSGATE_REDIS_DB", cfg.Sources.Redis.DB)

	cfg.Tracing.Enabled = l.envBool("HLSGATE_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("HLSGATE_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("HLSGATE_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SampleRate = l.envFloat("HLSGATE_TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
