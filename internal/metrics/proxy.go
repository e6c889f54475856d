// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manifest types used as the "type" label.
const (
	ManifestMaster = "master"
	ManifestMedia  = "media"
)

var (
	invalidHeaders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_invalid_headers_total",
		Help: "Resolver-supplied headers dropped because their value failed validation",
	}, []string{"header"})

	manifestRewrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_manifest_rewrites_total",
		Help: "Playlists rewritten by type",
	}, []string{"type"}) // type=master|media

	segmentsProxied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsgate_segments_proxied_total",
		Help: "Segments relayed to clients",
	})

	segmentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsgate_segment_bytes_total",
		Help: "Segment bytes relayed to clients",
	})

	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_upstream_errors_total",
		Help: "Failed upstream fetches by status (\"transport\" for network failures)",
	}, []string{"status"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hlsgate_upstream_request_duration_seconds",
		Help:    "Time to upstream response headers",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"}) // kind=master|media|segment

	originRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsgate_origin_rejections_total",
		Help: "Proxied URLs refused because they left the session origin",
	})
)

// headerLabels bounds label cardinality to the allow-listed header names.
var headerLabels = map[string]struct{}{
	"user-agent": {}, "referer": {}, "origin": {}, "accept": {}, "accept-language": {}, "cookie": {},
}

// RecordInvalidHeader counts a dropped resolver header.
func RecordInvalidHeader(name string) {
	if _, ok := headerLabels[name]; !ok {
		name = "other"
	}
	invalidHeaders.WithLabelValues(name).Inc()
}

// RecordManifestRewrite counts a rewritten playlist.
func RecordManifestRewrite(manifestType string) {
	manifestRewrites.WithLabelValues(manifestType).Inc()
}

// RecordSegmentProxied counts a relayed segment and its size.
func RecordSegmentProxied(bytes int64) {
	segmentsProxied.Inc()
	if bytes > 0 {
		segmentBytes.Add(float64(bytes))
	}
}

// RecordUpstreamStatus counts an upstream non-2xx response.
func RecordUpstreamStatus(status int) {
	upstreamErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordUpstreamTransportError counts an upstream fetch that failed before a response arrived.
func RecordUpstreamTransportError() {
	upstreamErrors.WithLabelValues("transport").Inc()
}

// ObserveUpstreamDuration records upstream latency for kind.
func ObserveUpstreamDuration(kind string, seconds float64) {
	upstreamDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordOriginRejection counts a request refused by origin enforcement.
func RecordOriginRejection() {
	originRejections.Inc()
}
