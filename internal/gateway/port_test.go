// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/xmlembed/internal/gateway"
	"github.com/ManuGH/xmlembed/internal/gateway/gatewaytest"
	"github.com/ManuGH/xmlembed/internal/resilience"
)

func TestCall_Dispatch(t *testing.T) {
	fake := gatewaytest.New()
	ctx := context.Background()
	for _, prim := range []gateway.Primitive{
		gateway.PrimitiveConfigure, gateway.PrimitiveStart, gateway.PrimitiveProcess, gateway.PrimitiveFinalize,
	} {
		_, err := gateway.Call(ctx, fake, prim, "in")
		require.NoError(t, err)
	}
	assert.Equal(t, []gatewaytest.Route{
		gatewaytest.RouteConfigure, gatewaytest.RouteStart, gatewaytest.RouteSubmit, gatewaytest.RouteFinalize,
	}, fake.Routes())

	_, err := gateway.Call(ctx, fake, gateway.Primitive("other"), "")
	assert.Error(t, err)
}

func TestInstrument_PassesThrough(t *testing.T) {
	boom := errors.New("boom")
	fake := gatewaytest.New().
		Script(gatewaytest.RouteStart, gatewaytest.RawResponse(`{"a":1}`)).
		Script(gatewaytest.RouteFinalize, gatewaytest.ErrorResponse(boom))
	p := gateway.Instrument(fake)

	out, err := p.Start(context.Background(), "xml")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)

	_, err = p.Finalize(context.Background(), "")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, fake.Calls(), 2)
}

func TestWithBreaker_FailsFastWhenOpen(t *testing.T) {
	boom := errors.New("library crashed")
	fake := gatewaytest.New().Script(gatewaytest.RouteSubmit, gatewaytest.ErrorResponse(boom))
	cb := resilience.NewCircuitBreaker("gateway-test", 2, time.Hour,
		resilience.WithFailureFilter(gateway.CountsAsBackendFailure))
	p := gateway.WithBreaker(fake, cb)

	for i := 0; i < 2; i++ {
		_, err := p.Process(context.Background(), "enviar_xml;xml;<a/>")
		require.ErrorIs(t, err, boom)
	}
	_, err := p.Process(context.Background(), "enviar_xml;xml;<a/>")
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, fake.Count(gatewaytest.RouteSubmit))
}

func TestCountsAsBackendFailure(t *testing.T) {
	assert.False(t, gateway.CountsAsBackendFailure(context.Canceled))
	assert.True(t, gateway.CountsAsBackendFailure(gateway.ErrUnavailable))
}

func TestClose_NonCloser(t *testing.T) {
	assert.NoError(t, gateway.Close(gatewaytest.New()))
}
