// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across the gateway.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	SessionIDKey = "hlsgate.session_id"
	SourceIDKey  = "hlsgate.source_id"

	ResolverStreamsKey = "resolver.streams"
	ResolverLiveKey    = "resolver.is_live"
	ResolverReasonKey  = "resolver.error_reason"

	ManifestTypeKey = "hls.manifest_type"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes identifies the playback a span belongs to. Empty ids
// are omitted.
func SessionAttributes(sessionID, sourceID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if sourceID != "" {
		attrs = append(attrs, attribute.String(SourceIDKey, sourceID))
	}
	return attrs
}

// ResolverAttributes describes a successful resolution.
func ResolverAttributes(streams int, live bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ResolverStreamsKey, streams),
		attribute.Bool(ResolverLiveKey, live),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
