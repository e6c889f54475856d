// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolverErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_resolver_errors_total",
		Help: "Failed resolver calls by reason",
	}, []string{"reason"}) // reason=http_<status>|invalid_response|no_hls_stream|network_error|circuit_open|rate_limited

	resolverDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hlsgate_resolver_request_duration_seconds",
		Help:    "Resolver call latency by outcome",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
	}, []string{"outcome"}) // outcome=success|failure

	playRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_play_requests_total",
		Help: "Play requests by result",
	}, []string{"result"}) // result=ok|bad_request|source_not_found|unresolvable|error

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hlsgate_circuit_breaker_state",
		Help: "Circuit breaker state by component; the active state is 1, the others 0",
	}, []string{"component", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_circuit_breaker_trips_total",
		Help: "Transitions to the open state",
	}, []string{"component", "reason"})
)

var circuitStates = []string{"closed", "half-open", "open"}

// RecordResolverError counts a failed resolver call.
func RecordResolverError(reason string) {
	resolverErrors.WithLabelValues(reason).Inc()
}

// ObserveResolverDuration records how long a resolver call took.
func ObserveResolverDuration(success bool, seconds float64) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	resolverDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordPlayRequest counts a play request by result.
func RecordPlayRequest(result string) {
	playRequests.WithLabelValues(result).Inc()
}

// SetCircuitBreakerState records the active circuit breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range circuitStates {
		v := 0.0
		if s == state {
			v = 1
		}
		circuitBreakerState.WithLabelValues(component, s).Set(v)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}
