// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sourcesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlsgate_sources",
		Help: "Sources held by the source store after the last load",
	})

	sourcesReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_sources_reloads_total",
		Help: "Source file reloads by result",
	}, []string{"result"}) // result=success|failure
)

// SetSourcesTotal records the number of known sources.
func SetSourcesTotal(n int) {
	sourcesTotal.Set(float64(n))
}

// RecordSourcesReload counts a hot reload of the source file.
func RecordSourcesReload(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	sourcesReloads.WithLabelValues(result).Inc()
}
