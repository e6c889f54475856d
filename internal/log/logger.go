// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const defaultService = "hlsgate"

// Config selects level, sink and the identity fields stamped on every entry.
// Zero fields fall back to LOG_LEVEL, LOG_SERVICE and VERSION from the
// environment, then to info, stdout and "hlsgate".
type Config struct {
	Level   string
	Output  io.Writer
	Service string
	Version string
}

var root atomic.Pointer[zerolog.Logger]

func init() {
	Configure(Config{})
}

// Configure replaces the process logger. An unparsable level means info.
func Configure(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(resolveLevel(firstNonEmpty(cfg.Level, os.Getenv("LOG_LEVEL"))))

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	l := zerolog.New(out).With().
		Timestamp().
		Str("service", firstNonEmpty(cfg.Service, os.Getenv("LOG_SERVICE"), defaultService)).
		Str("version", firstNonEmpty(cfg.Version, os.Getenv("VERSION"))).
		Logger()
	root.Store(&l)
}

func resolveLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Base returns a copy of the process logger.
func Base() zerolog.Logger {
	return *root.Load()
}

// WithComponent tags a child logger with the subsystem name.
func WithComponent(component string) zerolog.Logger {
	return Derive(func(c *zerolog.Context) {
		*c = c.Str(FieldComponent, component)
	})
}

// Derive builds a child logger; build may add any fields.
func Derive(build func(*zerolog.Context)) zerolog.Logger {
	c := Base().With()
	if build != nil {
		build(&c)
	}
	return c.Logger()
}
