// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID    = "session_id"
	FieldSubmissionID = "submission_id"
	FieldTraceID      = "trace_id"
	FieldSpanID       = "span_id"
	FieldRequestID    = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldPrimitive = "primitive"

	// State fields
	FieldOldState   = "old_state"
	FieldNewState   = "new_state"
	FieldStatusCode = "status_code"
	FieldPoll       = "poll"
	FieldOutcome    = "outcome"

	// Submission fields
	FieldKind   = "kind"
	FieldSource = "source"
	FieldPath   = "path"

	// HTTP fields
	FieldMethod     = "method"
	FieldRoute      = "route"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"
)
