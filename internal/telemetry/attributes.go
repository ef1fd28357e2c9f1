// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	SessionIDKey    = "session.id"
	SessionStateKey = "session.state"
	SessionToKey    = "session.to_state"

	OperationKey  = "submission.operation"
	SubmitKindKey = "submission.kind"
	SubmissionKey = "submission.id"
	StatusCodeKey = "submission.status_code"
	PollCountKey  = "submission.polls"
	OutcomeKey    = "submission.outcome"

	PrimitiveKey    = "gateway.primitive"
	InputLengthKey  = "gateway.input_length"
	OutputLengthKey = "gateway.output_length"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// OperationAttributes creates session operation span attributes.
func OperationAttributes(sessionID, operation, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionIDKey, sessionID),
		attribute.String(OperationKey, operation),
		attribute.String(SessionStateKey, state),
	}
}

// GatewayAttributes creates backend primitive span attributes.
// Only lengths are recorded; inputs may carry credentials.
func GatewayAttributes(primitive string, inputLen int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PrimitiveKey, primitive),
		attribute.Int(InputLengthKey, inputLen),
	}
}

// SubmissionAttributes creates workflow span attributes.
func SubmissionAttributes(id, kind string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if id != "" {
		attrs = append(attrs, attribute.String(SubmissionKey, id))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(SubmitKindKey, kind))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
