// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		envSet       bool
		want         string
	}{
		{"environment variable set", "TEST_STRING", "default", "from-env", true, "from-env"},
		{"environment variable not set", "TEST_STRING_UNSET", "default", "", false, "default"},
		{"environment variable empty string", "TEST_STRING_EMPTY", "default", "", true, "default"},
		{"sensitive variable", "TEST_API_KEY", "", "secret123", true, "secret123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, ParseString(tt.key, tt.defaultValue))
		})
	}
}

func TestParseStringDoesNotLogSecrets(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	t.Setenv("HLSGATE_RESOLVER_API_KEY", "super-secret")
	got := parseStringWithLogger(logger, "HLSGATE_RESOLVER_API_KEY", "")

	assert.Equal(t, "super-secret", got)
	assert.NotContains(t, buf.String(), "super-secret")
	assert.Contains(t, buf.String(), `"sensitive":true`)
}

func TestParseInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("TEST_INT", 7))

	t.Setenv("TEST_INT_BAD", "forty-two")
	assert.Equal(t, 7, ParseInt("TEST_INT_BAD", 7))

	assert.Equal(t, 7, ParseInt("TEST_INT_UNSET", 7))
}

func TestParseFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "2.5")
	assert.InDelta(t, 2.5, ParseFloat("TEST_FLOAT", 1), 1e-9)

	t.Setenv("TEST_FLOAT_BAD", "fast")
	assert.InDelta(t, 1.0, ParseFloat("TEST_FLOAT_BAD", 1), 1e-9)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		envSet   bool
		want     time.Duration
	}{
		{"valid", "90s", true, 90 * time.Second},
		{"invalid falls back", "ninety", true, 5 * time.Second},
		{"empty falls back", "", true, 5 * time.Second},
		{"unset", "", false, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv("TEST_DURATION", tt.envValue)
			}
			assert.Equal(t, tt.want, ParseDuration("TEST_DURATION", 5*time.Second))
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "1", "yes"} {
		t.Setenv("TEST_BOOL", v)
		assert.True(t, ParseBool("TEST_BOOL", false), v)
	}
	for _, v := range []string{"false", "0", "No"} {
		t.Setenv("TEST_BOOL", v)
		assert.False(t, ParseBool("TEST_BOOL", true), v)
	}
	t.Setenv("TEST_BOOL", "maybe")
	assert.True(t, ParseBool("TEST_BOOL", true))
}

func TestParseStringSlice(t *testing.T) {
	t.Setenv("TEST_LIST", " https://a.example , ,https://b.example,")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, ParseStringSlice("TEST_LIST", nil))

	t.Setenv("TEST_LIST", "   ")
	assert.Equal(t, []string{"x"}, ParseStringSlice("TEST_LIST", []string{"x"}))
}

func TestIsSensitiveEnvKey(t *testing.T) {
	for key, want := range map[string]bool{
		"HLSGATE_API_KEY":          true,
		"HLSGATE_RESOLVER_API_KEY": true,
		"HLSGATE_REDIS_PASSWORD":   true,
		"HLSGATE_LISTEN":           false,
		"HLSGATE_SESSION_TTL":      false,
	} {
		assert.Equal(t, want, isSensitiveEnvKey(key), key)
		assert.Equal(t, want, isSensitiveEnvKey(strings.ToLower(key)), key)
	}
}
