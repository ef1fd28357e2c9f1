// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package rawlog keeps the per-operation raw response log.
//
// Each backend call appends one line "yyyy-MM-dd HH:mm:ss - {raw}" to
// {dir}/{op}_{yyyyMMdd_HHmm}.txt, so one file collects the calls of one
// operation type within one minute.
package rawlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	fileTimeLayout = "20060102_1504"
	lineTimeLayout = "2006-01-02 15:04:05"
)

// Recorder receives the raw response of every backend call.
type Recorder interface {
	Record(op, raw string) error
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(string, string) error { return nil }

// FileRecorder appends records to timestamped files in a directory.
type FileRecorder struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// Option configures a FileRecorder.
type Option func(*FileRecorder)

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(r *FileRecorder) { r.now = now }
}

// NewFileRecorder returns a recorder writing into dir. The directory is
// created on first write.
func NewFileRecorder(dir string, opts ...Option) *FileRecorder {
	r := &FileRecorder{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the target directory.
func (r *FileRecorder) Dir() string { return r.dir }

// FileName returns the file a record for op at t lands in.
func FileName(op string, t time.Time) string {
	return op + "_" + t.Format(fileTimeLayout) + ".txt"
}

// Line formats a single record.
func Line(t time.Time, raw string) string {
	return t.Format(lineTimeLayout) + " - " + raw + "\n"
}

// Record appends raw to the file for op.
func (r *FileRecorder) Record(op, raw string) error {
	if op == "" || strings.ContainsAny(op, `/\`) {
		return fmt.Errorf("rawlog: invalid operation name %q", op)
	}
	t := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("rawlog: create dir: %w", err)
	}
	path := filepath.Join(r.dir, FileName(op, t))
	// #nosec G304 -- path is built from the configured log dir and a fixed op name
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("rawlog: open %s: %w", path, err)
	}
	if _, err := f.WriteString(Line(t, raw)); err != nil {
		_ = f.Close()
		return fmt.Errorf("rawlog: write %s: %w", path, err)
	}
	return f.Close()
}

// Func adapts a function to Recorder.
type Func func(op, raw string) error

func (f Func) Record(op, raw string) error { return f(op, raw) }
