// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlsgate_sessions_active",
		Help: "Sessions currently held by the registry",
	})

	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsgate_sessions_created_total",
		Help: "Sessions created",
	})

	sessionsRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_sessions_removed_total",
		Help: "Sessions removed by reason",
	}, []string{"reason"}) // reason=deleted|expired
)

// SetSessionsActive sets the active session gauge.
func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

// RecordSessionCreated counts a new session.
func RecordSessionCreated() {
	sessionsCreated.Inc()
}

// RecordSessionsRemoved counts n sessions removed for reason.
func RecordSessionsRemoved(reason string, n int) {
	if n > 0 {
		sessionsRemoved.WithLabelValues(reason).Add(float64(n))
	}
}
