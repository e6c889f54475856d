// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey uint8

const (
	requestIDKey ctxKey = iota + 1
	sessionIDKey
)

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// ContextWithRequestID attaches the X-Request-ID correlation id. A nil ctx is
// treated as Background.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithSessionID attaches the playback session id.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, sessionIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

func SessionIDFromContext(ctx context.Context) string { return stringValue(ctx, sessionIDKey) }

// WithContext adds request_id and session_id to logger when ctx carries them.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	rid, sid := RequestIDFromContext(ctx), SessionIDFromContext(ctx)
	if rid == "" && sid == "" {
		return logger
	}
	c := logger.With()
	if rid != "" {
		c = c.Str(FieldRequestID, rid)
	}
	if sid != "" {
		c = c.Str(FieldSessionID, sid)
	}
	return c.Logger()
}

// WithComponentFromContext is WithComponent plus the correlation fields of ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}

// FromContext returns the logger stored by zerolog in ctx, else the base logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	l := Base()
	return &l
}
