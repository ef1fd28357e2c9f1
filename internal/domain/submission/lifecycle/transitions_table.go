// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/xmlembed/internal/domain/submission/model"

// Transition is a single allowed edge in the submission state machine.
// Terminal is only set for PollStatus, where the decoded status decides
// between staying in AWAITING_RESULT and moving to FINISHED.
type Transition struct {
	From     model.State
	Op       model.OpKind
	To       model.State
	Terminal model.State
	Forced   bool
}

// Target returns the state reached on success.
func (t Transition) Target(terminal bool) model.State {
	if terminal && t.Terminal != "" {
		return t.Terminal
	}
	return t.To
}

var transitionsTable = []Transition{
	// Happy path
	{From: model.StateUnconfigured, Op: model.OpConfigure, To: model.StateConfigured},
	{From: model.StateConfigured, Op: model.OpStart, To: model.StateStarted},
	{From: model.StateStarted, Op: model.OpSubmit, To: model.StateAwaitingResult},
	{From: model.StateAwaitingResult, Op: model.OpPollStatus, To: model.StateAwaitingResult, Terminal: model.StateFinished},
	{From: model.StateFinished, Op: model.OpFinalize, To: model.StateUnconfigured},

	// Forced finalize (cancel / cleanup)
	{From: model.StateUnconfigured, Op: model.OpFinalize, To: model.StateUnconfigured, Forced: true},
	{From: model.StateConfigured, Op: model.OpFinalize, To: model.StateUnconfigured, Forced: true},
	{From: model.StateStarted, Op: model.OpFinalize, To: model.StateUnconfigured, Forced: true},
	{From: model.StateAwaitingResult, Op: model.OpFinalize, To: model.StateUnconfigured, Forced: true},
	{From: model.StateFailed, Op: model.OpFinalize, To: model.StateUnconfigured, Forced: true},
}

// TransitionFor returns the allowed transition for a given state+operation.
func TransitionFor(from model.State, op model.OpKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Op == op {
			return tr, true
		}
	}
	return Transition{}, false
}
