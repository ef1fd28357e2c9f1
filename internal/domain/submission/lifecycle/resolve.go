// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"fmt"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
)

// ErrIllegalTransition classifies operations attempted from a state that does not list them.
var ErrIllegalTransition = errors.New("illegal transition")

// IllegalTransitionError names the offending state×operation pair.
type IllegalTransitionError struct {
	From   model.State
	Op     model.OpKind
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("illegal transition: %s + %s (%s)", e.From, e.Op, e.Reason)
	}
	return fmt.Sprintf("illegal transition: %s + %s", e.From, e.Op)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// Resolve is the single entry point that decides whether op may run from state.
// It never mutates anything; callers apply the returned transition once the
// backend call has succeeded.
func Resolve(from model.State, op model.OpKind) (Transition, error) {
	d, ok := DecisionFor(from, op)
	if !ok || !d.Allowed {
		return Transition{}, &IllegalTransitionError{From: from, Op: op, Reason: d.Reason}
	}
	tr, ok := TransitionFor(from, op)
	if !ok {
		return Transition{}, &IllegalTransitionError{From: from, Op: op, Reason: "missing_edge"}
	}
	return tr, nil
}
