// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestContextIDs(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	ctx := ContextWithSessionID(nil, "s-1")
	ctx = ContextWithSubmissionID(ctx, "j-1")

	assert.Equal(t, "s-1", SessionIDFromContext(ctx))
	assert.Equal(t, "j-1", SubmissionIDFromContext(ctx))
	assert.Empty(t, SessionIDFromContext(context.Background()))
	//nolint:staticcheck
	assert.Empty(t, SubmissionIDFromContext(nil))
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithSessionID(ctx, "sess")
	ctx = ContextWithSubmissionID(ctx, "sub")

	l := WithContext(ctx, logger)
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sess", entry[FieldSessionID])
	assert.Equal(t, "sub", entry[FieldSubmissionID])
	assert.Equal(t, traceID.String(), entry[FieldTraceID])
	assert.Equal(t, spanID.String(), entry[FieldSpanID])
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	l := WithContext(context.Background(), logger)
	l.Info().Msg("plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, FieldSessionID)
}

func TestConfigure_ServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "svc-test", Version: "v0"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("unit")
	l.Debug().Str(FieldEvent, "test.event").Msg("configured")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "svc-test", entry["service"])
	assert.Equal(t, "v0", entry["version"])
	assert.Equal(t, "unit", entry[FieldComponent])
	assert.Equal(t, "test.event", entry[FieldEvent])
}
