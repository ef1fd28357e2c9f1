// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package protocol encodes session operations into the backend's flat command
// grammar and decodes its JSON responses.
package protocol

import (
	"fmt"
	"strings"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
)

const (
	// SubmitOperation prefixes every submit command.
	SubmitOperation = "enviar_xml"
	// PollToken is the bare status query command.
	PollToken = "get_status"
	// FinalizeCommand is sent to finalize; the backend takes no argument.
	FinalizeCommand Command = ""
)

// Command is the flat string handed to a gateway primitive.
type Command string

func (c Command) String() string { return string(c) }

// Encode builds the command for op. Encoding is pure; the backend has no
// named-field addressing, so field order is part of the contract.
func Encode(op model.Operation) (Command, error) {
	if err := op.Validate(); err != nil {
		return "", fmt.Errorf("encode %s: %w", op.Kind, err)
	}
	switch op.Kind {
	case model.OpConfigure:
		return Command(strings.Join(op.Credentials.Fields(), model.FieldDelimiter)), nil
	case model.OpStart:
		return Command(op.Product), nil
	case model.OpSubmit:
		return Command(SubmitOperation + model.FieldDelimiter + op.SubmitKind.Token() + model.FieldDelimiter + op.Payload), nil
	case model.OpPollStatus:
		return PollToken, nil
	case model.OpFinalize:
		return FinalizeCommand, nil
	}
	return "", fmt.Errorf("encode: unsupported operation %s", op.Kind)
}

// SplitSubmit decodes a submit command. The payload is the rest of the string
// after the second delimiter and is never re-split.
func SplitSubmit(cmd Command) (model.SubmitKind, string, error) {
	parts := strings.SplitN(string(cmd), model.FieldDelimiter, 3)
	if len(parts) != 3 || parts[0] != SubmitOperation {
		return model.SubmitUnknown, "", fmt.Errorf("%w: not a submit command", ErrMalformedCommand)
	}
	kind, err := model.ParseSubmitKind(parts[1])
	if err != nil {
		return model.SubmitUnknown, "", fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if parts[2] == "" {
		return model.SubmitUnknown, "", fmt.Errorf("%w: %v", ErrMalformedCommand, model.ErrEmptyPayload)
	}
	return kind, parts[2], nil
}

// SplitConfigure decodes a configure command into credentials.
func SplitConfigure(cmd Command) (model.Credentials, error) {
	parts := strings.Split(string(cmd), model.FieldDelimiter)
	if len(parts) != len(model.FieldNames()) {
		return model.Credentials{}, fmt.Errorf("%w: configure expects %d fields, got %d", ErrMalformedCommand, len(model.FieldNames()), len(parts))
	}
	return model.Credentials{
		Product:    parts[0],
		SubProduct: parts[1],
		AccessKey:  parts[2],
		SecretKey:  parts[3],
		TerminalID: parts[4],
	}, nil
}
