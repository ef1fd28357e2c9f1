// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package gateway

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/metrics"
	"github.com/ManuGH/xmlembed/internal/telemetry"
)

const tracerName = "xmlembed/gateway"

// Instrument wraps p with metrics, a span per primitive and debug logging.
// Inputs are never logged or attached to spans since Configure carries secrets.
func Instrument(p Port) Port {
	return decorator{next: p, wrap: instrumentCall}
}

func instrumentCall(ctx context.Context, prim Primitive, input string, call func(context.Context, string) (string, error)) (string, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "gateway."+prim.String())
	defer span.End()
	span.SetAttributes(telemetry.GatewayAttributes(prim.String(), len(input))...)

	start := time.Now()
	out, err := call(ctx, input)
	elapsed := time.Since(start)

	metrics.RecordGatewayCall(prim.String(), err, elapsed)

	logger := log.WithComponentFromContext(ctx, "gateway")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(errorType(err))...)
		logger.Warn().Err(err).
			Str(log.FieldEvent, "gateway.call_failed").
			Str(log.FieldPrimitive, prim.String()).
			Dur("duration", elapsed).
			Msg("backend call failed")
		return out, err
	}
	span.SetAttributes(attribute.Int(telemetry.OutputLengthKey, len(out)))
	logger.Debug().
		Str(log.FieldEvent, "gateway.call").
		Str(log.FieldPrimitive, prim.String()).
		Int("output_length", len(out)).
		Dur("duration", elapsed).
		Msg("backend call")
	return out, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case !CountsAsBackendFailure(err):
		return "cancelled"
	default:
		return "backend"
	}
}
