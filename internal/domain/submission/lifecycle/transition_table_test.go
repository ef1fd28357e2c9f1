// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"errors"
	"testing"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable_Coverage(t *testing.T) {
	allowedEdges := map[model.State]map[model.OpKind]struct{}{}
	for _, tr := range transitionsTable {
		if _, ok := allowedEdges[tr.From]; !ok {
			allowedEdges[tr.From] = map[model.OpKind]struct{}{}
		}
		if _, exists := allowedEdges[tr.From][tr.Op]; exists {
			t.Fatalf("duplicate transition: %s + %s", tr.From, tr.Op)
		}
		allowedEdges[tr.From][tr.Op] = struct{}{}
	}

	for _, state := range model.States() {
		for _, op := range model.OpKinds() {
			decision, ok := DecisionFor(state, op)
			require.True(t, ok, "missing decision for %s + %s", state, op)
			if _, ok := allowedEdges[state][op]; ok {
				require.True(t, decision.Allowed, "edge must be marked allowed for %s + %s", state, op)
				continue
			}
			require.False(t, decision.Allowed, "missing edge must be forbidden for %s + %s", state, op)
			require.NotEmpty(t, decision.Reason, "forbidden decision needs a reason for %s + %s", state, op)
		}
	}
}

func TestResolve_FinalizeFromAnyState(t *testing.T) {
	for _, state := range model.States() {
		tr, err := Resolve(state, model.OpFinalize)
		require.NoError(t, err, "finalize from %s", state)
		assert.Equal(t, model.StateUnconfigured, tr.Target(false))
		assert.Equal(t, state != model.StateFinished, tr.Forced, "forced flag for %s", state)
	}
}

func TestResolve_SubmitBeforeStart(t *testing.T) {
	for _, state := range []model.State{model.StateUnconfigured, model.StateConfigured} {
		_, err := Resolve(state, model.OpSubmit)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrIllegalTransition))

		var ite *IllegalTransitionError
		require.ErrorAs(t, err, &ite)
		assert.Equal(t, state, ite.From)
		assert.Equal(t, model.OpSubmit, ite.Op)
	}
}

func TestResolve_PollTargets(t *testing.T) {
	tr, err := Resolve(model.StateAwaitingResult, model.OpPollStatus)
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingResult, tr.Target(false))
	assert.Equal(t, model.StateFinished, tr.Target(true))
}

func TestForbiddenReason(t *testing.T) {
	assert.Equal(t, ForbiddenRequiresStart, ForbiddenReason(model.StateConfigured, model.OpSubmit))
	assert.Equal(t, ForbiddenFailedAbsorbing, ForbiddenReason(model.StateFailed, model.OpPollStatus))
	assert.Empty(t, ForbiddenReason(model.StateStarted, model.OpSubmit))
}
