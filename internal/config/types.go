// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Source store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Tracing exporters.
const (
	ExporterGRPC = "grpc"
	ExporterHTTP = "http"
)

// AppConfig is the effective runtime configuration after defaults, file and
// environment have been merged.
type AppConfig struct {
	Version  string
	LogLevel string

	Server   ServerConfig
	Auth     AuthConfig
	Resolver ResolverConfig
	Session  SessionConfig
	Upstream UpstreamConfig
	Proxy    ProxyConfig
	Sources  SourcesConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	ListenAddr      string
	PublicURL       string
	CORSOrigins     []string
	RateLimitRPM    int
	ShutdownTimeout time.Duration

	// TrustedProxies are CIDRs allowed to set X-Forwarded-Proto.
	TrustedProxies []string
}

type AuthConfig struct {
	APIKey string
}

type ResolverConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RPS bounds outbound resolve calls; zero disables the limiter.
	RPS float64
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type UpstreamConfig struct {
	// AcceptLanguage is applied to sessions whose resolver headers carry none.
	AcceptLanguage        string
	ResponseHeaderTimeout time.Duration
}

type ProxyConfig struct {
	EnforceOrigin bool
}

type SourcesConfig struct {
	Backend string
	Path    string
	Redis   RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TracingConfig struct {
	Enabled    bool
	Exporter   string
	Endpoint   string
	SampleRate float64
}

// FileConfig represents the YAML configuration structure.
// Durations are Go duration strings ("20s"); pointers distinguish unset from zero.
type FileConfig struct {
	LogLevel string `yaml:"logLevel,omitempty"`

	Server   ServerFileConfig   `yaml:"server,omitempty"`
	Auth     AuthFileConfig     `yaml:"auth,omitempty"`
	Resolver ResolverFileConfig `yaml:"resolver,omitempty"`
	Session  SessionFileConfig  `yaml:"session,omitempty"`
	Upstream UpstreamFileConfig `yaml:"upstream,omitempty"`
	Proxy    ProxyFileConfig    `yaml:"proxy,omitempty"`
	Sources  SourcesFileConfig  `yaml:"sources,omitempty"`
	Tracing  TracingFileConfig  `yaml:"tracing,omitempty"`
}

type ServerFileConfig struct {
	ListenAddr      string   `yaml:"listenAddr,omitempty"`
	PublicURL       string   `yaml:"publicURL,omitempty"`
	CORSOrigins     []string `yaml:"corsOrigins,omitempty"`
	TrustedProxies  []string `yaml:"trustedProxies,omitempty"`
	RateLimitRPM    *int     `yaml:"rateLimitRPM,omitempty"`
	ShutdownTimeout string   `yaml:"shutdownTimeout,omitempty"`
}

type AuthFileConfig struct {
	APIKey string `yaml:"apiKey,omitempty"`
}

type ResolverFileConfig struct {
	BaseURL string   `yaml:"baseURL,omitempty"`
	APIKey  string   `yaml:"apiKey,omitempty"`
	Timeout string   `yaml:"timeout,omitempty"`
	RPS     *float64 `yaml:"rps,omitempty"`
}

type SessionFileConfig struct {
	TTL           string `yaml:"ttl,omitempty"`
	SweepInterval string `yaml:"sweepInterval,omitempty"`
}

type UpstreamFileConfig struct {
	AcceptLanguage        string `yaml:"acceptLanguage,omitempty"`
	ResponseHeaderTimeout string `yaml:"responseHeaderTimeout,omitempty"`
}

type ProxyFileConfig struct {
	EnforceOrigin *bool `yaml:"enforceOrigin,omitempty"`
}

type SourcesFileConfig struct {
	Backend string          `yaml:"backend,omitempty"`
	Path    string          `yaml:"path,omitempty"`
	Redis   RedisFileConfig `yaml:"redis,omitempty"`
}

type RedisFileConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       *int   `yaml:"db,omitempty"`
}

type TracingFileConfig struct {
	Enabled    *bool    `yaml:"enabled,omitempty"`
	Exporter   string   `yaml:"exporter,omitempty"`
	Endpoint   string   `yaml:"endpoint,omitempty"`
	SampleRate *float64 `yaml:"sampleRate,omitempty"`
}
