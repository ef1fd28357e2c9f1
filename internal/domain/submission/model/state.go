// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// State is the lifecycle position of a submission session.
// Exactly one State is owned by a session and it only changes through
// the session operation entry points.
type State string

const (
	StateUnconfigured   State = "UNCONFIGURED"
	StateConfigured     State = "CONFIGURED"
	StateStarted        State = "STARTED"
	StateAwaitingResult State = "AWAITING_RESULT"
	StateFinished       State = "FINISHED"
	StateFailed         State = "FAILED"
)

// States lists every state in lifecycle order.
func States() []State {
	return []State{
		StateUnconfigured,
		StateConfigured,
		StateStarted,
		StateAwaitingResult,
		StateFinished,
		StateFailed,
	}
}

// IsActive reports whether the backend holds job state for the session,
// i.e. a Finalize is required to release it.
func (s State) IsActive() bool {
	return s != StateUnconfigured
}

func (s State) String() string { return string(s) }
