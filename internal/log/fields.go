// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldSourceID  = "source_id"
	FieldRequestID = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// HTTP fields
	FieldMethod     = "method"
	FieldRoute      = "route"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldBytes      = "bytes"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"

	// Upstream fields
	FieldUpstreamURL    = "upstream_url"
	FieldUpstreamStatus = "upstream_status"
	FieldManifestType   = "manifest_type"
	FieldHeader         = "header"
)
