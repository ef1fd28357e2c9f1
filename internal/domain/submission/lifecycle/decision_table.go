// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/xmlembed/internal/domain/submission/model"

const (
	ForbiddenAlreadyInState   = "already_in_state"
	ForbiddenOutOfOrder       = "out_of_order"
	ForbiddenRequiresConfig   = "requires_configure"
	ForbiddenRequiresStart    = "requires_start"
	ForbiddenRequiresSubmit   = "requires_submit"
	ForbiddenRequiresFinalize = "requires_finalize"
	ForbiddenFailedAbsorbing  = "failed_absorbing"
)

// Decision records whether an operation is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

func allowed() Decision        { return Decision{Allowed: true} }
func forbid(r string) Decision { return Decision{Allowed: false, Reason: r} }

// decisionTable defines an explicit decision for every State×Operation combination.
// Finalize is allowed everywhere: from FINISHED it is the normal release,
// from any other state it is a forced reset.
var decisionTable = map[model.State]map[model.OpKind]Decision{
	model.StateUnconfigured: {
		model.OpConfigure:  allowed(),
		model.OpStart:      forbid(ForbiddenRequiresConfig),
		model.OpSubmit:     forbid(ForbiddenRequiresConfig),
		model.OpPollStatus: forbid(ForbiddenRequiresConfig),
		model.OpFinalize:   allowed(),
	},
	model.StateConfigured: {
		model.OpConfigure:  forbid(ForbiddenAlreadyInState),
		model.OpStart:      allowed(),
		model.OpSubmit:     forbid(ForbiddenRequiresStart),
		model.OpPollStatus: forbid(ForbiddenRequiresStart),
		model.OpFinalize:   allowed(),
	},
	model.StateStarted: {
		model.OpConfigure:  forbid(ForbiddenOutOfOrder),
		model.OpStart:      forbid(ForbiddenAlreadyInState),
		model.OpSubmit:     allowed(),
		model.OpPollStatus: forbid(ForbiddenRequiresSubmit),
		model.OpFinalize:   allowed(),
	},
	model.StateAwaitingResult: {
		model.OpConfigure:  forbid(ForbiddenOutOfOrder),
		model.OpStart:      forbid(ForbiddenOutOfOrder),
		model.OpSubmit:     forbid(ForbiddenAlreadyInState),
		model.OpPollStatus: allowed(),
		model.OpFinalize:   allowed(),
	},
	model.StateFinished: {
		model.OpConfigure:  forbid(ForbiddenRequiresFinalize),
		model.OpStart:      forbid(ForbiddenRequiresFinalize),
		model.OpSubmit:     forbid(ForbiddenRequiresFinalize),
		model.OpPollStatus: forbid(ForbiddenRequiresFinalize),
		model.OpFinalize:   allowed(),
	},
	model.StateFailed: {
		model.OpConfigure:  forbid(ForbiddenFailedAbsorbing),
		model.OpStart:      forbid(ForbiddenFailedAbsorbing),
		model.OpSubmit:     forbid(ForbiddenFailedAbsorbing),
		model.OpPollStatus: forbid(ForbiddenFailedAbsorbing),
		model.OpFinalize:   allowed(),
	},
}

// DecisionFor returns the explicit decision for state×operation.
func DecisionFor(from model.State, op model.OpKind) (Decision, bool) {
	m, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := m[op]
	return d, ok
}

// ForbiddenReason documents why an operation is disallowed in a state.
// It returns "" for allowed or unknown combinations.
func ForbiddenReason(from model.State, op model.OpKind) string {
	d, ok := DecisionFor(from, op)
	if !ok || d.Allowed {
		return ""
	}
	return d.Reason
}
