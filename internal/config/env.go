// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/hlsgate/internal/log"
)

var sensitiveKeyParts = []string{"token", "password", "secret", "api_key"}

// isSensitiveEnvKey reports whether the value of key must never be logged.
func isSensitiveEnvKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// lookupEnv returns the parsed value of key, or def when the variable is
// unset, blank or malformed. Every outcome is logged at debug level except
// malformed input, which is a warning. Sensitive values are never logged.
func lookupEnv[T any](logger zerolog.Logger, key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
		return def
	}

	v, err := parse(strings.TrimSpace(raw))
	sensitive := isSensitiveEnvKey(key)
	if err != nil {
		ev := logger.Warn().Str("key", key).Err(err)
		if !sensitive {
			ev = ev.Str("value", raw)
		}
		ev.Interface("default", def).Msg("invalid environment variable, using default")
		return def
	}

	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if sensitive {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", v)
	}
	ev.Msg("using environment variable")
	return v
}

func envLogger() zerolog.Logger {
	return log.WithComponent("config")
}

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(envLogger(), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	return lookupEnv(logger, key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt reads a base-10 integer.
func ParseInt(key string, defaultValue int) int {
	return lookupEnv(envLogger(), key, defaultValue, strconv.Atoi)
}

// ParseFloat reads a float64.
func ParseFloat(key string, defaultValue float64) float64 {
	return lookupEnv(envLogger(), key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseDuration reads a Go duration such as "90s".
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return lookupEnv(envLogger(), key, defaultValue, time.ParseDuration)
}

// ParseBool accepts true/false, 1/0 and yes/no in any case.
func ParseBool(key string, defaultValue bool) bool {
	return lookupEnv(envLogger(), key, defaultValue, parseBool)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// ParseStringSlice reads a comma-separated list. Empty entries are dropped.
func ParseStringSlice(key string, defaultValue []string) []string {
	return lookupEnv(envLogger(), key, defaultValue, func(s string) ([]string, error) {
		return splitList(s), nil
	})
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
