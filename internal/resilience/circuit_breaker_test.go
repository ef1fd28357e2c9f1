// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errBackend = errors.New("backend down")

func failing() error { return errBackend }
func ok() error      { return nil }

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-trip", 3, 30*time.Second, WithClock(clock))

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Execute(failing), errBackend)
		assert.Equal(t, StateClosed, cb.State())
	}
	require.ErrorIs(t, cb.Execute(failing), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("test-reset", 2, time.Minute)
	_ = cb.Execute(failing)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, 0, cb.Failures())
	_ = cb.Execute(failing)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-probe", 1, 10*time.Second, WithClock(clock))

	_ = cb.Execute(failing)
	require.Equal(t, StateOpen, cb.State())

	clock.now = clock.now.Add(10 * time.Second)

	release := make(chan struct{})
	done := make(chan error, 1)
	entered := make(chan struct{})
	go func() {
		done <- cb.Execute(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen, "second probe must be rejected")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-reopen", 1, time.Second, WithClock(clock))
	_ = cb.Execute(failing)
	clock.now = clock.now.Add(2 * time.Second)

	require.ErrorIs(t, cb.Execute(failing), errBackend)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_FailureFilter(t *testing.T) {
	cb := NewCircuitBreaker("test-filter", 1, time.Minute, WithFailureFilter(func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}))
	err := cb.Execute(func() error { return context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_PanicRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test-panic", 1, time.Minute, WithPanicRecovery(true))
	assert.Panics(t, func() {
		_ = cb.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_Snapshot(t *testing.T) {
	clock := &mockClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("test-snapshot", 1, 15*time.Second, WithClock(clock))

	snap := cb.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.True(t, snap.RetryAt.IsZero())

	_ = cb.Execute(failing)
	snap = cb.Snapshot()
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, 1, snap.Failures)
	assert.Equal(t, clock.now.Add(15*time.Second), snap.RetryAt)
}
