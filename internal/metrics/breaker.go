// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker states as exported in the state label.
var breakerStates = [...]string{"closed", "half-open", "open"}

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xmlembed_breaker_state",
		Help: "1 for the current state of each breaker, 0 for the others.",
	}, []string{"breaker", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlembed_breaker_trips_total",
		Help: "Transitions into the open state, by breaker and cause.",
	}, []string{"breaker", "cause"})

	breakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlembed_breaker_rejections_total",
		Help: "Calls refused without reaching the backend because the breaker was open.",
	}, []string{"breaker"})
)

// SetCircuitBreakerState marks state as the current state of the named breaker.
func SetCircuitBreakerState(name, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(name, s).Set(v)
	}
}

// RecordCircuitBreakerTrip counts one trip of the named breaker.
func RecordCircuitBreakerTrip(name, cause string) {
	breakerTrips.WithLabelValues(name, cause).Inc()
}

// RecordCircuitBreakerRejection counts one call refused by an open breaker.
func RecordCircuitBreakerRejection(name string) {
	breakerRejections.WithLabelValues(name).Inc()
}
