// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package gatewaytest provides a scripted gateway.Port for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/xmlembed/internal/gateway"
	"github.com/ManuGH/xmlembed/internal/protocol"
)

// Route distinguishes calls; Process carries both submits and polls.
type Route string

const (
	RouteConfigure Route = "configure"
	RouteStart     Route = "start"
	RouteSubmit    Route = "submit"
	RoutePoll      Route = "poll"
	RouteFinalize  Route = "finalize"
)

// RouteOf classifies a primitive invocation.
func RouteOf(prim gateway.Primitive, input string) Route {
	switch prim {
	case gateway.PrimitiveConfigure:
		return RouteConfigure
	case gateway.PrimitiveStart:
		return RouteStart
	case gateway.PrimitiveFinalize:
		return RouteFinalize
	}
	if input == protocol.PollToken {
		return RoutePoll
	}
	return RouteSubmit
}

// Call is one recorded invocation.
type Call struct {
	Primitive gateway.Primitive
	Route     Route
	Input     string
}

// Response is a scripted answer.
type Response struct {
	Output string
	Err    error
}

// StatusResponse answers with a well-formed status document.
func StatusResponse(code int) Response {
	return Response{Output: fmt.Sprintf(`{"resultado":{"status_code":%d,"mensagem":"ok"}}`, code)}
}

// ErrorResponse answers with a gateway error.
func ErrorResponse(err error) Response { return Response{Err: err} }

// RawResponse answers with arbitrary text.
func RawResponse(out string) Response { return Response{Output: out} }

// Gate holds one call inside the fake until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered is closed once the blocked call is in flight.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release lets the blocked call return.
func (g *Gate) Release() { g.once.Do(func() { close(g.release) }) }

// Fake is a scripted, recording gateway.Port. Unscripted routes answer
// status 0. The last scripted response of a route repeats.
type Fake struct {
	mu        sync.Mutex
	calls     []Call
	responses map[Route][]Response
	gates     map[Route]*Gate
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		responses: make(map[Route][]Response),
		gates:     make(map[Route]*Gate),
	}
}

// Script appends responses for route.
func (f *Fake) Script(route Route, responses ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[route] = append(f.responses[route], responses...)
	return f
}

// ScriptPolls scripts poll status codes in order.
func (f *Fake) ScriptPolls(codes ...int) *Fake {
	rs := make([]Response, len(codes))
	for i, c := range codes {
		rs[i] = StatusResponse(c)
	}
	return f.Script(RoutePoll, rs...)
}

// Block makes the next call on route wait until the returned gate is released.
func (f *Fake) Block(route Route) *Gate {
	g := &Gate{entered: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.gates[route] = g
	f.mu.Unlock()
	return g
}

// Calls returns a copy of every recorded call in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many calls hit route.
func (f *Fake) Count(route Route) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Route == route {
			n++
		}
	}
	return n
}

// Routes returns the recorded routes in order.
func (f *Fake) Routes() []Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Route, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Route
	}
	return out
}

func (f *Fake) invoke(prim gateway.Primitive, input string) (string, error) {
	route := RouteOf(prim, input)

	f.mu.Lock()
	f.calls = append(f.calls, Call{Primitive: prim, Route: route, Input: input})
	gate := f.gates[route]
	delete(f.gates, route)
	resp := StatusResponse(0)
	if q := f.responses[route]; len(q) > 0 {
		resp = q[0]
		if len(q) > 1 {
			f.responses[route] = q[1:]
		}
	}
	f.mu.Unlock()

	if gate != nil {
		close(gate.entered)
		<-gate.release
	}
	return resp.Output, resp.Err
}

func (f *Fake) Configure(_ context.Context, input string) (string, error) {
	return f.invoke(gateway.PrimitiveConfigure, input)
}

func (f *Fake) Start(_ context.Context, input string) (string, error) {
	return f.invoke(gateway.PrimitiveStart, input)
}

func (f *Fake) Process(_ context.Context, input string) (string, error) {
	return f.invoke(gateway.PrimitiveProcess, input)
}

func (f *Fake) Finalize(_ context.Context, input string) (string, error) {
	return f.invoke(gateway.PrimitiveFinalize, input)
}

var _ gateway.Port = (*Fake)(nil)
