// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics provides Prometheus metrics for xmlembed.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// No session or submission IDs in labels.

var (
	// GatewayCallsTotal counts backend primitive invocations by result.
	GatewayCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlembed_gateway_calls_total",
		Help: "Total number of backend primitive calls, by primitive and result.",
	}, []string{"primitive", "result"})

	// GatewayCallDuration observes backend primitive latency.
	GatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xmlembed_gateway_call_duration_seconds",
		Help:    "Backend primitive call duration in seconds.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"primitive"})

	// SessionTransitionsTotal counts applied state transitions.
	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlembed_session_transitions_total",
		Help: "Total number of session state transitions, by source and target state.",
	}, []string{"from", "to"})

	// IllegalTransitionsTotal counts operations rejected by the lifecycle table.
	IllegalTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlembed_session_illegal_transitions_total",
		Help: "Total number of rejected operations, by state and operation.",
	}, []string{"state", "operation"})

	// OperationFailuresTotal counts operations that moved a session to FAILED.
	OperationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlembed_session_operation_failures_total",
		Help: "Total number of failed session operations, by operation and stage.",
	}, []string{"operation", "stage"})

	// PollsTotal counts status polls.
	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xmlembed_polls_total",
		Help: "Total number of status polls issued.",
	})

	// PollOutcomesTotal counts polling loop outcomes.
	PollOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlembed_poll_outcomes_total",
		Help: "Total number of polling loop outcomes, by outcome.",
	}, []string{"outcome"})

	// LastStatusCode exposes the last decoded backend status code.
	LastStatusCode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xmlembed_last_status_code",
		Help: "Last status code reported by the backend.",
	})

	// SubmissionsTotal counts completed submission runs.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlembed_submissions_total",
		Help: "Total number of submission runs, by kind and outcome.",
	}, []string{"kind", "outcome"})

	// SubmissionDuration observes end-to-end submission latency.
	SubmissionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xmlembed_submission_duration_seconds",
		Help:    "End-to-end submission duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"kind"})

	// SubmissionsInFlight tracks runs currently holding the backend.
	SubmissionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xmlembed_submissions_in_flight",
		Help: "Current number of submission runs holding the backend.",
	})

	// RawLogErrorsTotal counts raw response log write failures.
	RawLogErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xmlembed_rawlog_errors_total",
		Help: "Total number of raw response log write failures.",
	})

	// InboxFilesTotal counts inbox files by result.
	InboxFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlembed_inbox_files_total",
		Help: "Total number of inbox files processed, by result.",
	}, []string{"result"})
)

// RecordGatewayCall records one primitive invocation.
func RecordGatewayCall(primitive string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	GatewayCallsTotal.WithLabelValues(primitive, result).Inc()
	GatewayCallDuration.WithLabelValues(primitive).Observe(elapsed.Seconds())
}

// RecordTransition records an applied state transition.
func RecordTransition(from, to string) {
	SessionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordIllegalTransition records a rejected operation.
func RecordIllegalTransition(state, operation string) {
	IllegalTransitionsTotal.WithLabelValues(state, operation).Inc()
}

// RecordOperationFailure records an operation failure at the given stage
// (encode, gateway, decode).
func RecordOperationFailure(operation, stage string) {
	OperationFailuresTotal.WithLabelValues(operation, stage).Inc()
}

// RecordPoll records a poll and the status it returned.
func RecordPoll(status int) {
	PollsTotal.Inc()
	LastStatusCode.Set(float64(status))
}

// RecordPollOutcome records how a polling loop ended.
func RecordPollOutcome(outcome string) {
	PollOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordSubmission records a finished submission run.
func RecordSubmission(kind, outcome string, elapsed time.Duration) {
	SubmissionsTotal.WithLabelValues(kind, outcome).Inc()
	SubmissionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// IncSubmissionsInFlight marks a run as holding the backend.
func IncSubmissionsInFlight() { SubmissionsInFlight.Inc() }

// DecSubmissionsInFlight releases a run.
func DecSubmissionsInFlight() { SubmissionsInFlight.Dec() }

// RecordRawLogError records a raw log write failure.
func RecordRawLogError() { RawLogErrorsTotal.Inc() }

// RecordInboxFile records an inbox file result (done, failed, skipped).
func RecordInboxFile(result string) {
	InboxFilesTotal.WithLabelValues(result).Inc()
}

// GetSubmissionsInFlight reads the in-flight gauge.
func GetSubmissionsInFlight() float64 {
	var m dto.Metric
	if err := SubmissionsInFlight.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
