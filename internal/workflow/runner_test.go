// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/ManuGH/xmlembed/internal/gateway/gatewaytest"
	"github.com/ManuGH/xmlembed/internal/gateway/mock"
	"github.com/ManuGH/xmlembed/internal/history"
)

type instantClock struct{}

func (instantClock) Now() time.Time { return time.Now() }
func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

var testConfig = Config{
	Credentials: model.Credentials{Product: "xml", SubProduct: "1", AccessKey: "ak", SecretKey: "sk", TerminalID: "7"},
	Interval:    time.Second,
}

func newHistory(t *testing.T) *history.Store {
	t.Helper()
	h, err := history.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestRunner_Success(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	fake := gatewaytest.New().
		Script(gatewaytest.RouteSubmit, gatewaytest.StatusResponse(1)).
		ScriptPolls(5, 5, 0)
	h := newHistory(t)
	r := New(fake, testConfig, WithHistory(h), WithClock(instantClock{}))

	res, err := r.Run(context.Background(), Request{ID: "job-1", Kind: model.SubmitArchive, Payload: "nfe.zip", Source: "test"})
	require.NoError(t, err)

	assert.Equal(t, history.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, res.SubmitStatus)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, 0, res.LastStatus)
	assert.Equal(t, []model.State{
		model.StateUnconfigured, model.StateConfigured, model.StateStarted,
		model.StateAwaitingResult, model.StateAwaitingResult, model.StateAwaitingResult,
		model.StateFinished, model.StateUnconfigured,
	}, res.States)

	rec, err := h.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, history.OutcomeSuccess, rec.Outcome)
	assert.Equal(t, "zip", rec.Kind)
	assert.Equal(t, 3, rec.Polls)
	assert.Equal(t, "UNCONFIGURED", rec.State)
}

func TestRunner_WithMockBackend(t *testing.T) {
	backend := mock.New(3)
	r := New(backend, testConfig, WithClock(instantClock{}))
	res, err := r.Run(context.Background(), Request{Kind: model.SubmitInlineContent, Payload: "<nfe>x;y</nfe>"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Polls)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 1, backend.Jobs())
}

func TestRunner_PollFailureForceFinalizes(t *testing.T) {
	boom := errors.New("backend gone")
	fake := gatewaytest.New().Script(gatewaytest.RoutePoll, gatewaytest.ErrorResponse(boom))
	h := newHistory(t)
	r := New(fake, testConfig, WithHistory(h), WithClock(instantClock{}))

	res, err := r.Run(context.Background(), Request{ID: "job-2", Kind: model.SubmitFilePath, Payload: "/data/nfe.xml"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, history.OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, fake.Count(gatewaytest.RouteFinalize), "runner cleans up after failure")
	assert.Equal(t, model.StateUnconfigured, res.States[len(res.States)-1])

	rec, err := h.Get(context.Background(), "job-2")
	require.NoError(t, err)
	assert.Equal(t, history.OutcomeFailed, rec.Outcome)
	assert.Contains(t, rec.Error, "backend gone")
}

func TestRunner_ConfigureRejected(t *testing.T) {
	fake := gatewaytest.New().Script(gatewaytest.RouteConfigure, gatewaytest.StatusResponse(2))
	r := New(fake, testConfig, WithClock(instantClock{}))

	_, err := r.Run(context.Background(), Request{Kind: model.SubmitArchive, Payload: "a.zip"})
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 0, fake.Count(gatewaytest.RouteStart))
	assert.Equal(t, 1, fake.Count(gatewaytest.RouteFinalize))
}

func TestRunner_SubmitBusy(t *testing.T) {
	fake := gatewaytest.New()
	gate := fake.Block(gatewaytest.RoutePoll)
	r := New(fake, testConfig, WithClock(instantClock{}))

	h, err := r.Submit(context.Background(), Request{ID: "first", Kind: model.SubmitArchive, Payload: "a.zip"})
	require.NoError(t, err)
	<-gate.Entered()

	_, err = r.Submit(context.Background(), Request{Kind: model.SubmitArchive, Payload: "b.zip"})
	assert.ErrorIs(t, err, ErrBusy)

	id, ok := r.Active()
	assert.True(t, ok)
	assert.Equal(t, "first", id)

	gate.Release()
	res := h.Result()
	assert.NoError(t, res.Err)

	_, ok = r.Active()
	assert.False(t, ok)
}

func TestRunner_CancelBackgroundRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	fake := gatewaytest.New().ScriptPolls(1)
	gate := fake.Block(gatewaytest.RoutePoll)
	h := newHistory(t)
	r := New(fake, testConfig, WithHistory(h), WithClock(instantClock{}))

	handle, err := r.Submit(context.Background(), Request{ID: "job-3", Kind: model.SubmitCompressedArchive, Payload: "a.rar"})
	require.NoError(t, err)

	rec, err := h.Get(context.Background(), "job-3")
	require.NoError(t, err)
	assert.False(t, rec.Done())

	<-gate.Entered()
	assert.ErrorIs(t, r.Cancel("other"), ErrNotActive)
	require.NoError(t, r.Cancel("job-3"))
	gate.Release()

	res := handle.Result()
	require.ErrorIs(t, res.Err, ErrCancelled)
	assert.Equal(t, history.OutcomeCancelled, res.Outcome)
	assert.Equal(t, 1, fake.Count(gatewaytest.RoutePoll))
	assert.Equal(t, 1, fake.Count(gatewaytest.RouteFinalize))

	rec, err = h.Get(context.Background(), "job-3")
	require.NoError(t, err)
	assert.Equal(t, history.OutcomeCancelled, rec.Outcome)
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	fake := gatewaytest.New()
	r := New(fake, testConfig, WithClock(instantClock{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, Request{Kind: model.SubmitArchive, Payload: "a.zip"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fake.Count(gatewaytest.RouteConfigure))
}

func TestRunner_SubmitRejectsEmptyPayload(t *testing.T) {
	r := New(gatewaytest.New(), testConfig)
	_, err := r.Submit(context.Background(), Request{Kind: model.SubmitArchive})
	require.ErrorIs(t, err, model.ErrEmptyPayload)
	// slot released
	_, ok := r.Active()
	assert.False(t, ok)
	assert.True(t, r.slot.TryAcquire(1))
}
