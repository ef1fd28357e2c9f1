// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package gateway defines the boundary to the document-submission backend.
//
// The backend exposes four string-in/string-out primitives. Implementations
// are blocking and not abortable: the context carries trace and log
// correlation only. Every primitive returns JSON text on success.
package gateway

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the backend cannot be loaded or resolved.
// It is fatal at startup: no session can be created without a backend.
var ErrUnavailable = errors.New("backend unavailable")

// Primitive names the four backend entry points.
type Primitive string

const (
	PrimitiveConfigure Primitive = "configure"
	PrimitiveStart     Primitive = "start"
	PrimitiveProcess   Primitive = "process"
	PrimitiveFinalize  Primitive = "finalize"
)

func (p Primitive) String() string { return string(p) }

// Port is the backend seen by a session.
type Port interface {
	Configure(ctx context.Context, input string) (string, error)
	Start(ctx context.Context, input string) (string, error)
	Process(ctx context.Context, input string) (string, error)
	Finalize(ctx context.Context, input string) (string, error)
}

// Call dispatches input to the named primitive of p.
func Call(ctx context.Context, p Port, prim Primitive, input string) (string, error) {
	switch prim {
	case PrimitiveConfigure:
		return p.Configure(ctx, input)
	case PrimitiveStart:
		return p.Start(ctx, input)
	case PrimitiveProcess:
		return p.Process(ctx, input)
	case PrimitiveFinalize:
		return p.Finalize(ctx, input)
	default:
		return "", errors.New("unknown primitive " + string(prim))
	}
}

// Closer is implemented by ports holding an OS resource.
type Closer interface {
	Close() error
}

// Close releases p if it holds resources.
func Close(p Port) error {
	if c, ok := p.(Closer); ok {
		return c.Close()
	}
	return nil
}

// decorator applies one wrapping function to every primitive.
type decorator struct {
	next Port
	wrap func(ctx context.Context, prim Primitive, input string, call func(context.Context, string) (string, error)) (string, error)
}

func (d decorator) Configure(ctx context.Context, input string) (string, error) {
	return d.wrap(ctx, PrimitiveConfigure, input, d.next.Configure)
}

func (d decorator) Start(ctx context.Context, input string) (string, error) {
	return d.wrap(ctx, PrimitiveStart, input, d.next.Start)
}

func (d decorator) Process(ctx context.Context, input string) (string, error) {
	return d.wrap(ctx, PrimitiveProcess, input, d.next.Process)
}

func (d decorator) Finalize(ctx context.Context, input string) (string, error) {
	return d.wrap(ctx, PrimitiveFinalize, input, d.next.Finalize)
}

func (d decorator) Close() error { return Close(d.next) }
