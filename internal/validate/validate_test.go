// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_URL(t *testing.T) {
	web := []string{"http", "https"}
	tests := []struct {
		name    string
		value   string
		wantErr string
	}{
		{name: "https", value: "https://resolver.example"},
		{name: "port and path", value: "http://127.0.0.1:9000/base"},
		{name: "empty", value: "", wantErr: "URL cannot be empty"},
		{name: "no host", value: "http://", wantErr: "URL must have a host"},
		{name: "no scheme", value: "resolver.example", wantErr: "URL must have a host"},
		{name: "wrong scheme", value: "ftp://resolver.example", wantErr: `unsupported URL scheme "ftp"`},
		{name: "unparseable", value: "http://[::1", wantErr: "invalid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("resolver.baseURL", tt.value, web)

			if tt.wantErr == "" {
				assert.NoError(t, v.Err())
				return
			}
			require.Error(t, v.Err())
			assert.Contains(t, v.Err().Error(), tt.wantErr)
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	for addr, ok := range map[string]bool{
		":8000":         true,
		"127.0.0.1:0":   true,
		"[::1]:65535":   true,
		"8000":          false,
		":http":         false,
		"0.0.0.0:70000": false,
		"localhost:-1":  false,
		"":              false,
	} {
		v := New()
		v.ListenAddr("server.listenAddr", addr)
		assert.Equal(t, ok, v.Err() == nil, "addr %q", addr)
	}
}

func TestValidator_Scalars(t *testing.T) {
	v := New()
	v.NotEmpty("auth.apiKey", "  ")
	v.NonNegative("server.rateLimitRPM", -1)
	v.PositiveDuration("session.ttl", 0)
	v.Less("session.sweepInterval", time.Hour, "session.ttl", time.Minute)
	v.OneOf("sources.backend", "mongo", []string{"file", "sqlite", "redis"})
	v.FloatRange("tracing.sampleRate", 1.5, 0, 1)

	// Passing checks add nothing.
	v.NotEmpty("resolver.apiKey", "k")
	v.NonNegative("sources.redis.db", 0)
	v.PositiveDuration("resolver.timeout", time.Second)
	v.Less("a", time.Second, "b", time.Minute)
	v.OneOf("sources.backend", "file", []string{"file"})
	v.FloatRange("tracing.sampleRate", 0, 0, 1)

	err := v.Err()
	require.Error(t, err)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{
		"auth.apiKey",
		"server.rateLimitRPM",
		"session.ttl",
		"session.sweepInterval",
		"sources.backend",
		"tracing.sampleRate",
	}, verr.Fields())
	assert.Len(t, verr.Errors(), 6)
	assert.Contains(t, err.Error(), "must be less than session.ttl (1m0s), got 1h0m0s")
	assert.Contains(t, err.Error(), "; ")
}

func TestValidator_ErrIsSnapshot(t *testing.T) {
	v := New()
	assert.NoError(t, v.Err())

	v.AddError("a", "first", nil)
	err := v.Err()
	v.AddError("b", "second", nil)

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"a"}, verr.Fields())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
		ok   bool
	}{
		{in: "trace", want: zerolog.TraceLevel, ok: true},
		{in: "debug", want: zerolog.DebugLevel, ok: true},
		{in: "INFO", want: zerolog.InfoLevel, ok: true},
		{in: " warn ", want: zerolog.WarnLevel, ok: true},
		{in: "error", want: zerolog.ErrorLevel, ok: true},
		{in: "fatal"},
		{in: "disabled"},
		{in: "verbose"},
		{in: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidLogLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
