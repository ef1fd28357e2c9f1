// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/ManuGH/xmlembed/internal/gateway/gatewaytest"
	"github.com/ManuGH/xmlembed/internal/session"
)

// stepClock advances virtual time by the requested interval on every wait.
// When hold is set, waits never fire and entered is signalled instead.
type stepClock struct {
	mu      sync.Mutex
	now     time.Time
	waits   []time.Duration
	hold    bool
	entered chan struct{}
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), entered: make(chan struct{}, 16)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	if c.hold {
		c.entered <- struct{}{}
		return nil
	}
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *stepClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Observe(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, e := range l.events {
		out[i] = e.Kind
	}
	return out
}

func awaitingSession(t *testing.T, fake *gatewaytest.Fake) *session.Session {
	t.Helper()
	s := session.New(fake)
	ctx := context.Background()
	_, err := s.Configure(ctx, model.Credentials{Product: "xml", SubProduct: "1", AccessKey: "a", SecretKey: "s", TerminalID: "1"})
	require.NoError(t, err)
	_, err = s.Start(ctx, "xml")
	require.NoError(t, err)
	_, err = s.Submit(ctx, model.SubmitInlineContent, "<nfe/>")
	require.NoError(t, err)
	require.Equal(t, model.StateAwaitingResult, s.State())
	return s
}

func TestRun_PollsUntilTerminalThenFinalizes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fake := gatewaytest.New().ScriptPolls(5, 5, 0)
	s := awaitingSession(t, fake)
	clock := newStepClock()
	events := &eventLog{}

	out := Run(context.Background(), s, time.Second, events, WithClock(clock))

	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.NoError(t, out.Err)
	assert.Equal(t, 3, out.Polls)
	assert.Equal(t, 0, out.LastStatus)
	assert.Equal(t, 3, fake.Count(gatewaytest.RoutePoll))
	assert.Equal(t, 1, fake.Count(gatewaytest.RouteFinalize))
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Waits())
	assert.Equal(t, []EventKind{EventStatus, EventStatus, EventStatus, EventSuccess}, events.kinds())
	assert.Equal(t, model.StateUnconfigured, s.State())
}

func TestRun_CancelDuringInFlightPoll(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fake := gatewaytest.New().ScriptPolls(5)
	s := awaitingSession(t, fake)
	gate := fake.Block(gatewaytest.RoutePoll)
	events := &eventLog{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() { done <- Run(ctx, s, time.Millisecond, events, WithClock(newStepClock())) }()

	<-gate.Entered()
	cancel()

	select {
	case <-done:
		t.Fatal("loop returned before the in-flight poll completed")
	case <-time.After(50 * time.Millisecond):
	}

	gate.Release()
	out := <-done

	assert.Equal(t, OutcomeCancelled, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.NoError(t, out.FinalizeErr)
	assert.Equal(t, 1, fake.Count(gatewaytest.RoutePoll), "no poll after cancellation")
	assert.Equal(t, 1, fake.Count(gatewaytest.RouteFinalize))
	assert.Equal(t, []EventKind{EventCancelled}, events.kinds())
	assert.Equal(t, model.StateUnconfigured, s.State())
}

func TestRun_CancelDuringSuspension(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fake := gatewaytest.New().ScriptPolls(5)
	s := awaitingSession(t, fake)
	clock := newStepClock()
	clock.hold = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() { done <- Run(ctx, s, time.Hour, nil, WithClock(clock)) }()

	<-clock.entered
	cancel()
	out := <-done

	assert.Equal(t, OutcomeCancelled, out.Kind)
	assert.Equal(t, 1, out.Polls)
	assert.Equal(t, 5, out.LastStatus)
	assert.Equal(t, 1, fake.Count(gatewaytest.RouteFinalize))
	assert.Equal(t, []gatewaytest.Route{
		gatewaytest.RouteConfigure, gatewaytest.RouteStart, gatewaytest.RouteSubmit,
		gatewaytest.RoutePoll, gatewaytest.RouteFinalize,
	}, fake.Routes())
}

func TestRun_PollFailureDoesNotFinalize(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	boom := errors.New("backend crashed")
	fake := gatewaytest.New().Script(gatewaytest.RoutePoll,
		gatewaytest.StatusResponse(1),
		gatewaytest.ErrorResponse(boom),
	)
	s := awaitingSession(t, fake)
	events := &eventLog{}

	out := Run(context.Background(), s, time.Second, events, WithClock(newStepClock()))

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, boom)
	assert.Equal(t, 2, out.Polls)
	assert.Equal(t, 0, fake.Count(gatewaytest.RouteFinalize))
	assert.Equal(t, model.StateFailed, s.State())
	assert.Equal(t, []EventKind{EventStatus, EventFailed}, events.kinds())
}

func TestRun_MaxWait(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fake := gatewaytest.New().ScriptPolls(1)
	s := awaitingSession(t, fake)

	out := Run(context.Background(), s, time.Second, nil, WithClock(newStepClock()), WithMaxWait(3*time.Second))

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, ErrPollTimeout)
	assert.Equal(t, 4, out.Polls)
	assert.Equal(t, 0, fake.Count(gatewaytest.RouteFinalize))
	assert.Equal(t, model.StateAwaitingResult, s.State())
}

func TestRun_AlreadyCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fake := gatewaytest.New()
	s := awaitingSession(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := Run(ctx, s, time.Second, ObserverFunc(func(Event) {}), WithClock(newStepClock()))
	assert.Equal(t, OutcomeCancelled, out.Kind)
	assert.Equal(t, 0, out.Polls)
	assert.Equal(t, 0, fake.Count(gatewaytest.RoutePoll))
	assert.Equal(t, 1, fake.Count(gatewaytest.RouteFinalize))
}

func TestOutcomeKind_String(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
