// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package protocol

import (
	"errors"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
)

// Decoding errors. Use errors.Is instead of string matching.
var (
	ErrMalformedResponse    = errors.New("malformed response")
	ErrFieldNotFound        = errors.New("field not found")
	ErrMissingStatusCode    = errors.New("missing status code")
	ErrNonIntegerStatusCode = errors.New("non-integer status code")
	ErrMalformedCommand     = errors.New("malformed command")
)

// Encoding errors are the descriptor invariants of the model package.
var (
	ErrInvalidCredentialField = model.ErrInvalidCredentialField
	ErrEmptyPayload           = model.ErrEmptyPayload
)
