// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	require.NoError(t, s.Put(ctx, Record{ID: "a", Kind: "zip", Source: "api", State: "UNCONFIGURED", Outcome: OutcomePending, LastStatus: -1}))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "zip", got.Kind)
	assert.Equal(t, base, got.CreatedAt)
	assert.False(t, got.Done())

	s.now = func() time.Time { return base.Add(time.Minute) }
	updated, err := s.Update(ctx, "a", func(r *Record) error {
		r.Outcome = OutcomeSuccess
		r.State = "UNCONFIGURED"
		r.LastStatus = 0
		r.Polls = 3
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.Done())

	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Polls)
	assert.Equal(t, base, got.CreatedAt)
	assert.Equal(t, base.Add(time.Minute), got.UpdatedAt)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Update(ctx, "missing", func(*Record) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateCallbackErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, Record{ID: "a", Kind: "xml", Outcome: OutcomeRunning}))
	stop := errors.New("stop")
	_, err := s.Update(ctx, "a", func(r *Record) error {
		r.Outcome = OutcomeFailed
		return stop
	})
	require.ErrorIs(t, err, stop)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRunning, got.Outcome)
}

func TestStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.Put(ctx, Record{ID: id, Kind: "xml", Outcome: OutcomePending, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	recs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "new", recs[0].ID)
	assert.Equal(t, "mid", recs[1].ID)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "h.db")
	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, Record{ID: "keep", Kind: "rar", Outcome: OutcomeSuccess}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(ctx, "keep")
	assert.NoError(t, err)
	assert.NoError(t, s.Ping(ctx))
}

func TestOpen_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	garbage := []byte("not a sqlite database, just bytes long enough to pass for a header")
	require.NoError(t, os.WriteFile(path, garbage, 0o600))

	_, err := Open(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, garbage, data)
}

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	s, err := OpenMemory(ctx)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Put(ctx, Record{ID: "m", Kind: "xml", Outcome: OutcomePending}))
	recs, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Empty(t, s.Path())
}
