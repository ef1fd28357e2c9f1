// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package poller waits for the out-of-band backend job to finish.
//
// Each poll runs on its own goroutine while the loop watches the context.
// A cancelled context never interrupts an in-flight poll: the call is
// allowed to return, no further poll is issued and the session is force
// finalized. Poll failures end the loop without finalizing; the caller
// decides on cleanup.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/metrics"
)

// ErrPollTimeout is reported when the overall wait exceeds WithMaxWait.
var ErrPollTimeout = errors.New("poll timeout")

// Target is the session surface the loop drives.
type Target interface {
	PollStatus(ctx context.Context) (int, error)
	State() model.State
	Finalize(ctx context.Context) (int, error)
	ForceFinalize(ctx context.Context) (int, error)
}

// Clock abstracts time for the suspension between polls.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// OutcomeKind classifies how the loop ended.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeCancelled
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of Run.
type Outcome struct {
	Kind       OutcomeKind
	Err        error // poll failure, ErrPollTimeout or the context error
	Polls      int
	LastStatus int
	// FinalizeErr is set when the closing Finalize itself failed.
	FinalizeErr error
}

// EventKind names observer notifications.
type EventKind string

const (
	EventStatus    EventKind = "status"
	EventSuccess   EventKind = "success"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
)

// Event is delivered to the observer.
type Event struct {
	Kind   EventKind
	Poll   int
	Status int
	Err    error
}

// Observer receives loop progress.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

type options struct {
	clock   Clock
	maxWait time.Duration
}

// Option configures Run.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMaxWait bounds the total time spent polling. Exceeding it ends the
// loop with OutcomeFailed and ErrPollTimeout; the session is not finalized.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) { o.maxWait = d }
}

type pollResult struct {
	status int
	err    error
}

// Run polls target every interval until it reaches FINISHED, fails or ctx
// is cancelled.
func Run(ctx context.Context, target Target, interval time.Duration, observer Observer, opts ...Option) Outcome {
	o := options{clock: RealClock}
	for _, opt := range opts {
		opt(&o)
	}
	if observer == nil {
		observer = nopObserver{}
	}

	logger := log.WithComponentFromContext(ctx, "poller")
	// finalization must complete even when ctx is already cancelled
	finCtx := context.WithoutCancel(ctx)
	start := o.clock.Now()
	out := Outcome{LastStatus: -1}

	cancelled := func() Outcome {
		_, ferr := target.ForceFinalize(finCtx)
		out.Kind = OutcomeCancelled
		out.Err = ctx.Err()
		out.FinalizeErr = ferr
		observer.Observe(Event{Kind: EventCancelled, Poll: out.Polls, Status: out.LastStatus, Err: ferr})
		logger.Info().
			Str(log.FieldEvent, "poll.cancelled").
			Int(log.FieldPoll, out.Polls).
			AnErr("finalize_error", ferr).
			Msg("polling cancelled")
		metrics.RecordPollOutcome(out.Kind.String())
		return out
	}

	failed := func(err error) Outcome {
		out.Kind = OutcomeFailed
		out.Err = err
		observer.Observe(Event{Kind: EventFailed, Poll: out.Polls, Status: out.LastStatus, Err: err})
		logger.Warn().Err(err).
			Str(log.FieldEvent, "poll.failed").
			Int(log.FieldPoll, out.Polls).
			Msg("polling failed")
		metrics.RecordPollOutcome(out.Kind.String())
		return out
	}

	for {
		if ctx.Err() != nil {
			return cancelled()
		}

		results := make(chan pollResult, 1)
		out.Polls++
		go func() {
			status, err := target.PollStatus(finCtx)
			results <- pollResult{status: status, err: err}
		}()

		var res pollResult
		select {
		case res = <-results:
		case <-ctx.Done():
			res = <-results
		}
		if ctx.Err() != nil {
			if res.err == nil {
				out.LastStatus = res.status
			}
			return cancelled()
		}
		if res.err != nil {
			return failed(res.err)
		}

		out.LastStatus = res.status
		observer.Observe(Event{Kind: EventStatus, Poll: out.Polls, Status: res.status})
		logger.Debug().
			Str(log.FieldEvent, "poll.status").
			Int(log.FieldPoll, out.Polls).
			Int(log.FieldStatusCode, res.status).
			Msg("status polled")

		if target.State() == model.StateFinished {
			if _, err := target.Finalize(finCtx); err != nil {
				out.FinalizeErr = err
				return failed(err)
			}
			out.Kind = OutcomeSuccess
			observer.Observe(Event{Kind: EventSuccess, Poll: out.Polls, Status: out.LastStatus})
			logger.Info().
				Str(log.FieldEvent, "poll.success").
				Int(log.FieldPoll, out.Polls).
				Int(log.FieldStatusCode, out.LastStatus).
				Msg("job finished")
			metrics.RecordPollOutcome(out.Kind.String())
			return out
		}

		if o.maxWait > 0 && o.clock.Now().Sub(start) >= o.maxWait {
			return failed(fmt.Errorf("%w after %d polls", ErrPollTimeout, out.Polls))
		}

		select {
		case <-o.clock.After(interval):
		case <-ctx.Done():
			return cancelled()
		}
	}
}
