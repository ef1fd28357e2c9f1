// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package workflow runs complete submission cycles:
// configure, start, submit, poll until done, finalize.
//
// The backend library holds a single global session, so a Runner admits one
// run at a time. On failure or cancellation the runner force finalizes the
// session so the backend is left clean for the next run.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/ManuGH/xmlembed/internal/gateway"
	"github.com/ManuGH/xmlembed/internal/history"
	"github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/metrics"
	"github.com/ManuGH/xmlembed/internal/poller"
	"github.com/ManuGH/xmlembed/internal/rawlog"
	"github.com/ManuGH/xmlembed/internal/session"
	"github.com/ManuGH/xmlembed/internal/telemetry"
)

var (
	// ErrBusy is returned when another run holds the backend.
	ErrBusy = errors.New("backend busy with another submission")
	// ErrCancelled is returned when the run was cancelled.
	ErrCancelled = errors.New("submission cancelled")
	// ErrRejected is returned when configure or start report a non-success status.
	ErrRejected = errors.New("submission rejected by backend")
	// ErrNotActive is returned by Cancel for IDs that are not running.
	ErrNotActive = errors.New("submission not active")
)

// Request describes one document to submit.
type Request struct {
	ID      string
	Kind    model.SubmitKind
	Payload string
	Source  string
}

// Result summarises a run.
type Result struct {
	ID           string
	Kind         model.SubmitKind
	Source       string
	States       []model.State
	SubmitStatus int
	Polls        int
	LastStatus   int
	Outcome      string
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// History persists run records.
type History interface {
	Put(ctx context.Context, rec history.Record) error
	Update(ctx context.Context, id string, fn func(*history.Record) error) (history.Record, error)
}

// Config holds per-run parameters.
type Config struct {
	Credentials    model.Credentials
	Interval       time.Duration
	TerminalStatus int
	MaxWait        time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder sets the raw response recorder for every session.
func WithRecorder(rec rawlog.Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithHistory persists runs into h.
func WithHistory(h History) Option {
	return func(r *Runner) { r.history = h }
}

// WithClock sets the polling clock.
func WithClock(c poller.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithObserver receives polling events of every run.
func WithObserver(o poller.Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// Runner executes submissions against one backend.
type Runner struct {
	port     gateway.Port
	cfg      Config
	recorder rawlog.Recorder
	history  History
	clock    poller.Clock
	observer poller.Observer
	slot     *semaphore.Weighted
	now      func() time.Time

	mu     sync.Mutex
	active *Handle
}

// New returns a Runner.
func New(port gateway.Port, cfg Config, opts ...Option) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	r := &Runner{
		port:     port,
		cfg:      cfg,
		recorder: rawlog.Nop{},
		clock:    poller.RealClock,
		slot:     semaphore.NewWeighted(1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle tracks a run started with Submit.
type Handle struct {
	ID     string
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

// Done is closed when the run has ended.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the run result; valid once Done is closed.
func (h *Handle) Result() Result {
	<-h.done
	return h.result
}

// Cancel requests cancellation of the run.
func (h *Handle) Cancel() { h.cancel() }

// Run waits for the backend to be free, then runs req to completion.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if err := r.slot.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer r.slot.Release(1)
	res := r.run(ctx, r.prepare(req))
	return res, res.Err
}

// Submit starts req in the background if the backend is free. The run is
// detached from ctx except for its values; use the handle or Cancel to stop it.
// A pending history record exists before Submit returns.
func (r *Runner) Submit(ctx context.Context, req Request) (*Handle, error) {
	if !r.slot.TryAcquire(1) {
		return nil, ErrBusy
	}
	req = r.prepare(req)
	if req.Payload == "" {
		r.slot.Release(1)
		return nil, model.ErrEmptyPayload
	}
	if err := r.putPending(ctx, req); err != nil {
		r.slot.Release(1)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{ID: req.ID, cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.active = h
	r.mu.Unlock()

	go func() {
		defer r.slot.Release(1)
		defer cancel()
		h.result = r.run(runCtx, req)
		r.mu.Lock()
		if r.active == h {
			r.active = nil
		}
		r.mu.Unlock()
		close(h.done)
	}()
	return h, nil
}

// Active returns the ID of the background run, if any.
func (r *Runner) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return "", false
	}
	return r.active.ID, true
}

// Cancel cancels the background run with id.
func (r *Runner) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.ID != id {
		return ErrNotActive
	}
	r.active.cancel()
	return nil
}

func (r *Runner) prepare(req Request) Request {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return req
}

func (r *Runner) putPending(ctx context.Context, req Request) error {
	if r.history == nil {
		return nil
	}
	return r.history.Put(ctx, history.Record{
		ID:         req.ID,
		Kind:       req.Kind.Token(),
		Source:     req.Source,
		State:      model.StateUnconfigured.String(),
		Outcome:    history.OutcomePending,
		LastStatus: -1,
	})
}

func (r *Runner) run(ctx context.Context, req Request) (res Result) {
	ctx = log.ContextWithSubmissionID(ctx, req.ID)
	ctx, span := telemetry.Tracer("xmlembed/workflow").Start(ctx, "workflow.submit")
	defer span.End()
	span.SetAttributes(telemetry.SubmissionAttributes(req.ID, req.Kind.Token())...)

	logger := log.WithComponentFromContext(ctx, "workflow")
	cleanupCtx := context.WithoutCancel(ctx)

	metrics.IncSubmissionsInFlight()
	defer metrics.DecSubmissionsInFlight()

	res = Result{ID: req.ID, Kind: req.Kind, Source: req.Source, StartedAt: r.now(), LastStatus: -1}
	if err := r.ensureRecord(cleanupCtx, req); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "workflow.history_failed").Msg("history write failed")
	}

	var statesMu sync.Mutex
	sess := session.New(r.port,
		session.WithRecorder(r.recorder),
		session.WithTerminalStatus(r.cfg.TerminalStatus),
		session.WithObserver(func(t session.Transition) {
			statesMu.Lock()
			res.States = append(res.States, t.To)
			statesMu.Unlock()
			r.updateHistory(cleanupCtx, logger, req.ID, func(rec *history.Record) {
				rec.State = t.To.String()
				rec.Outcome = history.OutcomeRunning
				if t.Err == nil {
					rec.LastStatus = t.StatusCode
				}
			})
		}),
	)
	res.States = append(res.States, sess.State())

	logger.Info().
		Str(log.FieldEvent, "workflow.started").
		Str(log.FieldSessionID, sess.ID()).
		Str(log.FieldKind, req.Kind.Token()).
		Str(log.FieldSource, req.Source).
		Msg("submission started")

	defer func() {
		res.FinishedAt = r.now()
		if code, ok := sess.LastStatus(); ok {
			res.LastStatus = code
		}
		r.finish(cleanupCtx, logger, sess, &res)
		span.SetAttributes(attribute.String(telemetry.OutcomeKey, res.Outcome), attribute.Int(telemetry.PollCountKey, res.Polls))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}()

	fail := func(err error) Result {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		r.cleanup(cleanupCtx, logger, sess)
		res.Err = err
		return res
	}

	code, err := sess.Configure(ctx, r.cfg.Credentials)
	if err != nil {
		return fail(err)
	}
	if code != r.cfg.TerminalStatus {
		return fail(fmt.Errorf("%w: configure returned status %d", ErrRejected, code))
	}
	code, err = sess.Start(ctx, r.cfg.Credentials.Product)
	if err != nil {
		return fail(err)
	}
	if code != r.cfg.TerminalStatus {
		return fail(fmt.Errorf("%w: start returned status %d", ErrRejected, code))
	}
	res.SubmitStatus, err = sess.Submit(ctx, req.Kind, req.Payload)
	if err != nil {
		return fail(err)
	}

	opts := []poller.Option{poller.WithClock(r.clock)}
	if r.cfg.MaxWait > 0 {
		opts = append(opts, poller.WithMaxWait(r.cfg.MaxWait))
	}
	out := poller.Run(ctx, sess, r.cfg.Interval, r.observer, opts...)
	res.Polls = out.Polls

	switch out.Kind {
	case poller.OutcomeSuccess:
		return res
	case poller.OutcomeCancelled:
		res.Err = ErrCancelled
		if out.FinalizeErr != nil {
			res.Err = fmt.Errorf("%w (finalize failed: %v)", ErrCancelled, out.FinalizeErr)
		}
		return res
	default:
		if out.FinalizeErr != nil {
			res.Err = out.Err
			return res
		}
		return fail(out.Err)
	}
}

// cleanup force finalizes unless the session is already back at UNCONFIGURED.
func (r *Runner) cleanup(ctx context.Context, logger zerolog.Logger, sess *session.Session) {
	if !sess.State().IsActive() {
		return
	}
	if _, err := sess.ForceFinalize(ctx); err != nil {
		logger.Error().Err(err).
			Str(log.FieldEvent, "workflow.cleanup_failed").
			Str(log.FieldSessionID, sess.ID()).
			Msg("forced finalize failed")
	}
}

func (r *Runner) finish(ctx context.Context, logger zerolog.Logger, sess *session.Session, res *Result) {
	switch {
	case res.Err == nil:
		res.Outcome = history.OutcomeSuccess
	case errors.Is(res.Err, ErrCancelled):
		res.Outcome = history.OutcomeCancelled
	default:
		res.Outcome = history.OutcomeFailed
	}

	r.updateHistory(ctx, logger, res.ID, func(rec *history.Record) {
		rec.State = sess.State().String()
		rec.Outcome = res.Outcome
		rec.LastStatus = res.LastStatus
		rec.Polls = res.Polls
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
	})
	metrics.RecordSubmission(res.Kind.Token(), res.Outcome, res.FinishedAt.Sub(res.StartedAt))

	ev := logger.Info()
	if res.Err != nil && res.Outcome == history.OutcomeFailed {
		ev = logger.Error().Err(res.Err)
	}
	ev.Str(log.FieldEvent, "workflow.finished").
		Str(log.FieldSessionID, sess.ID()).
		Str(log.FieldOutcome, res.Outcome).
		Int(log.FieldPoll, res.Polls).
		Int(log.FieldStatusCode, res.LastStatus).
		Dur("duration", res.FinishedAt.Sub(res.StartedAt)).
		Msg("submission finished")
}

func (r *Runner) ensureRecord(ctx context.Context, req Request) error {
	if r.history == nil {
		return nil
	}
	_, err := r.history.Update(ctx, req.ID, func(rec *history.Record) error {
		rec.Outcome = history.OutcomeRunning
		return nil
	})
	if errors.Is(err, history.ErrNotFound) {
		if err := r.putPending(ctx, req); err != nil {
			return err
		}
		_, err = r.history.Update(ctx, req.ID, func(rec *history.Record) error {
			rec.Outcome = history.OutcomeRunning
			return nil
		})
	}
	return err
}

func (r *Runner) updateHistory(ctx context.Context, logger zerolog.Logger, id string, fn func(*history.Record)) {
	if r.history == nil {
		return
	}
	_, err := r.history.Update(ctx, id, func(rec *history.Record) error {
		fn(rec)
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "workflow.history_failed").Msg("history write failed")
	}
}
