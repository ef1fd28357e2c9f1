// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package session drives one protocol session against the backend.
//
// Every operation follows the same pipeline: resolve the transition from the
// lifecycle table, encode the command, call the gateway, record the raw
// response, decode the status code and only then apply the new state. An
// operation the table forbids is rejected before anything reaches the backend
// and leaves the state untouched. Failures after the table check move the
// session to FAILED.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/ManuGH/xmlembed/internal/domain/submission/lifecycle"
	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/ManuGH/xmlembed/internal/gateway"
	"github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/metrics"
	"github.com/ManuGH/xmlembed/internal/protocol"
	"github.com/ManuGH/xmlembed/internal/rawlog"
	"github.com/ManuGH/xmlembed/internal/telemetry"
)

const tracerName = "xmlembed/session"

// DefaultTerminalStatus is the poll status that marks the job finished.
const DefaultTerminalStatus = 0

// Transition describes an applied state change.
type Transition struct {
	SessionID  string
	Op         model.OpKind
	Forced     bool
	From       model.State
	To         model.State
	StatusCode int
	Err        error
	At         time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder sets the raw response recorder.
func WithRecorder(r rawlog.Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithTerminalStatus overrides the status code treated as job completion.
func WithTerminalStatus(code int) Option {
	return func(s *Session) { s.terminalStatus = code }
}

// WithID sets the session ID instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithNow replaces the wall clock used for transition timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithObserver registers a transition observer at construction.
func WithObserver(fn func(Transition)) Option {
	return func(s *Session) { s.observers = append(s.observers, fn) }
}

// Session is one protocol session. It is safe for concurrent use: a second
// operation waits until the in-flight one, gateway call included, returns.
type Session struct {
	id             string
	port           gateway.Port
	recorder       rawlog.Recorder
	terminalStatus int
	now            func() time.Time
	inflight       *semaphore.Weighted

	mu         sync.RWMutex
	state      model.State
	reason     error
	lastStatus int
	hasStatus  bool
	observers  []func(Transition)
}

// New returns a session in UNCONFIGURED bound to port.
func New(port gateway.Port, opts ...Option) *Session {
	s := &Session{
		port:           port,
		recorder:       rawlog.Nop{},
		terminalStatus: DefaultTerminalStatus,
		now:            time.Now,
		inflight:       semaphore.NewWeighted(1),
		state:          model.StateUnconfigured,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// TerminalStatus returns the status code treated as job completion.
func (s *Session) TerminalStatus() int { return s.terminalStatus }

// State returns the current state.
func (s *Session) State() model.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reason returns the error that moved the session to FAILED, or nil.
func (s *Session) Reason() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// LastStatus returns the last decoded status code.
func (s *Session) LastStatus() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStatus, s.hasStatus
}

// OnTransition registers fn to be called after every applied transition.
// Observers run synchronously on the operating goroutine.
func (s *Session) OnTransition(fn func(Transition)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Configure sends the credentials. UNCONFIGURED -> CONFIGURED.
func (s *Session) Configure(ctx context.Context, creds model.Credentials) (int, error) {
	return s.Do(ctx, model.ConfigureOp(creds))
}

// Start selects the product. CONFIGURED -> STARTED.
func (s *Session) Start(ctx context.Context, product string) (int, error) {
	return s.Do(ctx, model.StartOp(product))
}

// Submit hands a document to the backend. STARTED -> AWAITING_RESULT.
func (s *Session) Submit(ctx context.Context, kind model.SubmitKind, payload string) (int, error) {
	return s.Do(ctx, model.SubmitOp(kind, payload))
}

// PollStatus queries the job. AWAITING_RESULT stays put until the terminal
// status is reported, then moves to FINISHED.
func (s *Session) PollStatus(ctx context.Context) (int, error) {
	return s.Do(ctx, model.PollStatusOp())
}

// Finalize closes the session. FINISHED -> UNCONFIGURED.
func (s *Session) Finalize(ctx context.Context) (int, error) {
	return s.Do(ctx, model.FinalizeOp())
}

// ForceFinalize closes the session from any state, used for cancellation
// and cleanup.
func (s *Session) ForceFinalize(ctx context.Context) (int, error) {
	return s.Do(ctx, model.ForceFinalizeOp())
}

// Do runs op through the pipeline and returns the decoded status code.
func (s *Session) Do(ctx context.Context, op model.Operation) (int, error) {
	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer s.inflight.Release(1)

	ctx = log.ContextWithSessionID(ctx, s.id)
	from := s.State()

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "session."+op.Kind.String())
	defer span.End()
	span.SetAttributes(telemetry.OperationAttributes(s.id, op.Kind.String(), from.String())...)
	if op.Forced {
		span.SetAttributes(attribute.Bool("submission.forced", true))
	}

	logger := log.WithComponentFromContext(ctx, "session")

	tr, err := lifecycle.Resolve(from, op.Kind)
	if err != nil {
		metrics.RecordIllegalTransition(from.String(), op.Kind.String())
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().
			Str(log.FieldEvent, "session.illegal_transition").
			Str(log.FieldOperation, op.Kind.String()).
			Str("state", from.String()).
			Err(err).
			Msg("operation rejected")
		return 0, err
	}

	cmd, err := protocol.Encode(op)
	if err != nil {
		return 0, s.fail(logger, span, op, from, StageEncode, err)
	}

	raw, err := gateway.Call(ctx, s.port, primitiveFor(op.Kind), cmd.String())
	s.record(logger, op, raw, err)
	if err != nil {
		return 0, s.fail(logger, span, op, from, StageGateway, err)
	}

	code, err := protocol.StatusCodeOf(raw)
	if err != nil {
		return 0, s.fail(logger, span, op, from, StageDecode, err)
	}

	to := tr.Target(op.Kind == model.OpPollStatus && code == s.terminalStatus)
	span.SetAttributes(
		attribute.Int(telemetry.StatusCodeKey, code),
		attribute.String(telemetry.SessionToKey, to.String()),
	)
	if op.Kind == model.OpPollStatus {
		metrics.RecordPoll(code)
	}
	s.apply(logger, Transition{
		SessionID:  s.id,
		Op:         op.Kind,
		Forced:     op.Forced,
		From:       from,
		To:         to,
		StatusCode: code,
		At:         s.now(),
	})
	return code, nil
}

func primitiveFor(k model.OpKind) gateway.Primitive {
	switch k {
	case model.OpConfigure:
		return gateway.PrimitiveConfigure
	case model.OpStart:
		return gateway.PrimitiveStart
	case model.OpFinalize:
		return gateway.PrimitiveFinalize
	default:
		return gateway.PrimitiveProcess
	}
}

// record writes exactly one raw log line per gateway call. Failures are
// logged and never fail the operation.
func (s *Session) record(logger zerolog.Logger, op model.Operation, raw string, callErr error) {
	line := raw
	if callErr != nil {
		line = "error: " + callErr.Error()
	}
	if err := s.recorder.Record(op.LogName(), line); err != nil {
		metrics.RecordRawLogError()
		logger.Warn().Err(err).
			Str(log.FieldEvent, "session.rawlog_failed").
			Str(log.FieldOperation, op.Kind.String()).
			Msg("raw response log write failed")
	}
}

func (s *Session) fail(logger zerolog.Logger, span trace.Span, op model.Operation, from model.State, stage Stage, cause error) error {
	opErr := &OperationError{Op: op.Kind, Stage: stage, Err: cause}
	metrics.RecordOperationFailure(op.Kind.String(), string(stage))
	span.RecordError(opErr)
	span.SetStatus(codes.Error, opErr.Error())
	logger.Error().
		Str(log.FieldEvent, "session.operation_failed").
		Str(log.FieldOperation, op.Kind.String()).
		Str("stage", string(stage)).
		Err(cause).
		Msg("operation failed")

	s.apply(logger, Transition{
		SessionID: s.id,
		Op:        op.Kind,
		Forced:    op.Forced,
		From:      from,
		To:        model.StateFailed,
		Err:       opErr,
		At:        s.now(),
	})
	return opErr
}

func (s *Session) apply(logger zerolog.Logger, t Transition) {
	s.mu.Lock()
	s.state = t.To
	if t.To == model.StateFailed {
		s.reason = t.Err
	} else {
		s.reason = nil
		s.lastStatus, s.hasStatus = t.StatusCode, true
	}
	observers := append([]func(Transition){}, s.observers...)
	s.mu.Unlock()

	metrics.RecordTransition(t.From.String(), t.To.String())
	if t.To != model.StateFailed {
		logger.Info().
			Str(log.FieldEvent, "session.transition").
			Str(log.FieldOperation, t.Op.String()).
			Str(log.FieldOldState, t.From.String()).
			Str(log.FieldNewState, t.To.String()).
			Int(log.FieldStatusCode, t.StatusCode).
			Bool("forced", t.Forced).
			Msg("session state changed")
	}
	for _, fn := range observers {
		fn(t)
	}
}
