// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyPayload      = errors.New("submit payload must not be empty")
	ErrEmptyProduct      = errors.New("start product must not be empty")
	ErrUnknownSubmitKind = errors.New("unknown submit kind")
)

// OpKind names a high-level session operation.
type OpKind int

const (
	OpUnknown OpKind = iota
	OpConfigure
	OpStart
	OpSubmit
	OpPollStatus
	OpFinalize
)

// OpKinds lists every operation understood by the session.
func OpKinds() []OpKind {
	return []OpKind{OpConfigure, OpStart, OpSubmit, OpPollStatus, OpFinalize}
}

func (k OpKind) String() string {
	switch k {
	case OpConfigure:
		return "configure"
	case OpStart:
		return "start"
	case OpSubmit:
		return "submit"
	case OpPollStatus:
		return "poll_status"
	case OpFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// SubmitKind selects how the document reaches the backend.
type SubmitKind int

const (
	SubmitUnknown SubmitKind = iota
	SubmitArchive
	SubmitCompressedArchive
	SubmitFilePath
	SubmitInlineContent
)

// Token returns the wire token for the kind.
func (k SubmitKind) Token() string {
	switch k {
	case SubmitArchive:
		return "zip"
	case SubmitCompressedArchive:
		return "rar"
	case SubmitFilePath:
		return "path"
	case SubmitInlineContent:
		return "xml"
	default:
		return ""
	}
}

func (k SubmitKind) String() string {
	if t := k.Token(); t != "" {
		return t
	}
	return "unknown"
}

// SubmitKinds lists the valid submit kinds.
func SubmitKinds() []SubmitKind {
	return []SubmitKind{SubmitArchive, SubmitCompressedArchive, SubmitFilePath, SubmitInlineContent}
}

// ParseSubmitKind maps a wire token (case-insensitive) back to its kind.
func ParseSubmitKind(token string) (SubmitKind, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	for _, k := range SubmitKinds() {
		if k.Token() == t {
			return k, nil
		}
	}
	return SubmitUnknown, fmt.Errorf("%w: %q", ErrUnknownSubmitKind, token)
}

// Operation describes exactly one backend call.
// Only the fields belonging to Kind are meaningful.
type Operation struct {
	Kind        OpKind
	Credentials Credentials
	Product     string
	SubmitKind  SubmitKind
	Payload     string
	// Forced marks a Finalize issued outside the normal FINISHED path (cancel/cleanup).
	Forced bool
}

func ConfigureOp(c Credentials) Operation { return Operation{Kind: OpConfigure, Credentials: c} }
func StartOp(product string) Operation    { return Operation{Kind: OpStart, Product: product} }
func PollStatusOp() Operation             { return Operation{Kind: OpPollStatus} }
func FinalizeOp() Operation               { return Operation{Kind: OpFinalize} }
func ForceFinalizeOp() Operation          { return Operation{Kind: OpFinalize, Forced: true} }

func SubmitOp(kind SubmitKind, payload string) Operation {
	return Operation{Kind: OpSubmit, SubmitKind: kind, Payload: payload}
}

// Validate enforces the per-kind descriptor invariants.
func (o Operation) Validate() error {
	switch o.Kind {
	case OpConfigure:
		return o.Credentials.Validate()
	case OpStart:
		if o.Product == "" {
			return ErrEmptyProduct
		}
		if strings.Contains(o.Product, FieldDelimiter) {
			return fmt.Errorf("%w: product contains %q", ErrInvalidCredentialField, FieldDelimiter)
		}
	case OpSubmit:
		if o.SubmitKind.Token() == "" {
			return fmt.Errorf("%w: %d", ErrUnknownSubmitKind, int(o.SubmitKind))
		}
		if o.Payload == "" {
			return ErrEmptyPayload
		}
	case OpPollStatus, OpFinalize:
	default:
		return fmt.Errorf("unknown operation kind %d", int(o.Kind))
	}
	return nil
}

// LogName is the per-operation artifact name used for raw response records.
func (o Operation) LogName() string {
	switch o.Kind {
	case OpConfigure:
		return "configurar"
	case OpStart:
		return "iniciar"
	case OpSubmit:
		return o.SubmitKind.Token()
	case OpPollStatus:
		return "status"
	case OpFinalize:
		return "finalizar"
	default:
		return "unknown"
	}
}
