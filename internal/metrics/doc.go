// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics registers the hlsgate Prometheus collectors on the default
// registry. Session ids are never used as label values.
package metrics
