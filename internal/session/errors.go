// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"fmt"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
)

// Stage names where an operation failed.
type Stage string

const (
	StageEncode  Stage = "encode"
	StageGateway Stage = "gateway"
	StageDecode  Stage = "decode"
)

// OperationError wraps a failure that moved the session to FAILED.
type OperationError struct {
	Op    model.OpKind
	Stage Stage
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed at %s: %v", e.Op, e.Stage, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
