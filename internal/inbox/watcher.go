// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package inbox submits documents dropped into a directory.
//
// Files are processed one at a time. After a run the file moves to done/ or
// failed/ and an atomically written receipt is placed beside it. Cancelled runs
// leave the file in place so the next watch picks it up again.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/ManuGH/xmlembed/internal/fsutil"
	"github.com/ManuGH/xmlembed/internal/history"
	"github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/metrics"
	"github.com/ManuGH/xmlembed/internal/workflow"
)

// ErrUnsupported is returned for files whose extension maps to no submit kind.
var ErrUnsupported = errors.New("unsupported inbox file")

// Submitter runs one submission to completion.
type Submitter interface {
	Run(ctx context.Context, req workflow.Request) (workflow.Result, error)
}

// Config configures a Watcher.
type Config struct {
	Dir       string
	Rate      float64 // submissions per second; <= 0 means unlimited
	Burst     int
	InlineXML bool
	// Settle is how long a file must stay unchanged before it is submitted.
	Settle time.Duration
}

// Watcher feeds inbox files to a Submitter.
type Watcher struct {
	cfg     Config
	sub     Submitter
	limiter *rate.Limiter
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	queued map[string]struct{}
	queue  []string
	wake   chan struct{}
}

// New returns a Watcher over cfg.Dir.
func New(cfg Config, sub Submitter) *Watcher {
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	return &Watcher{
		cfg:     cfg,
		sub:     sub,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  log.WithComponent("inbox").With().Str(log.FieldPath, cfg.Dir).Logger(),
		now:     time.Now,
		queued:  make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

func (w *Watcher) ensureDirs() error {
	for _, dir := range []string{w.cfg.Dir, filepath.Join(w.cfg.Dir, DoneDir), filepath.Join(w.cfg.Dir, FailedDir)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("inbox: create %s: %w", dir, err)
		}
	}
	return nil
}

// ScanOnce processes every file currently in the inbox and returns.
// The returned receipts exclude cancelled runs.
func (w *Watcher) ScanOnce(ctx context.Context) ([]Receipt, error) {
	if err := w.ensureDirs(); err != nil {
		return nil, err
	}
	files, err := ListFiles(w.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: scan: %w", err)
	}
	w.logger.Info().Str(log.FieldEvent, "inbox.scan").Int("files", len(files)).Msg("inbox scanned")

	receipts := make([]Receipt, 0, len(files))
	for _, path := range files {
		if err := w.limiter.Wait(ctx); err != nil {
			return receipts, err
		}
		rc, err := w.Process(ctx, path)
		if ctx.Err() != nil {
			return receipts, ctx.Err()
		}
		if err != nil && rc.Outcome == "" {
			continue
		}
		receipts = append(receipts, rc)
	}
	return receipts, nil
}

// Run watches the inbox until ctx is cancelled. Files present at start are
// submitted first, then files created later, in arrival order.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.ensureDirs(); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := w.addTree(fw, w.cfg.Dir); err != nil {
		return err
	}
	files, err := ListFiles(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("inbox: scan: %w", err)
	}
	for _, f := range files {
		w.enqueue(f)
	}
	w.logger.Info().
		Str(log.FieldEvent, "inbox.watching").
		Int("initial_files", len(files)).
		Msg("watching inbox")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.watch(gctx, fw) })
	g.Go(func() error { return w.drain(gctx) })
	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// addTree watches dir and every subdirectory that may hold input.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skipDir(w.cfg.Dir, path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch directory %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) watch(ctx context.Context, fw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher channel closed")
			}
			w.handleEvent(fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			w.logger.Warn().Err(err).Str(log.FieldEvent, "inbox.watch_error").Msg("fsnotify watcher error")
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && !skipDir(w.cfg.Dir, event.Name) {
			if err := w.addTree(fw, event.Name); err != nil {
				w.logger.Warn().Err(err).Str(log.FieldEvent, "inbox.watch_error").Msg("failed to watch new directory")
			}
			nested, _ := ListFiles(event.Name)
			for _, f := range nested {
				w.enqueue(f)
			}
		}
		return
	}
	if info.Mode().IsRegular() && candidate(event.Name) && !skipDir(w.cfg.Dir, filepath.Dir(event.Name)) {
		w.enqueue(event.Name)
	}
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	if _, dup := w.queued[path]; dup {
		w.mu.Unlock()
		return
	}
	w.queued[path] = struct{}{}
	w.queue = append(w.queue, path)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) next() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return "", false
	}
	path := w.queue[0]
	w.queue = w.queue[1:]
	return path, true
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.queued, path)
	w.mu.Unlock()
}

func (w *Watcher) drain(ctx context.Context) error {
	for {
		path, ok := w.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.wake:
				continue
			}
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := w.Process(ctx, path)
		w.forget(path)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			w.logger.Debug().Err(err).Str(log.FieldPath, path).Msg("inbox file not completed")
		}
	}
}

// Process submits one file, then files it under done/ or failed/ with a receipt.
// A returned Receipt with an empty Outcome means the file was left in place.
func (w *Watcher) Process(ctx context.Context, path string) (Receipt, error) {
	logger := w.logger.With().Str(log.FieldSource, path).Logger()

	kind, ok := KindFor(path, w.cfg.InlineXML)
	if !ok {
		metrics.RecordInboxFile("skipped")
		return Receipt{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	if err := fsutil.IsRegularFile(path); err != nil {
		metrics.RecordInboxFile("skipped")
		return Receipt{}, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if err := waitStable(ctx, path, w.cfg.Settle); err != nil {
		return Receipt{}, err
	}
	payload, err := w.payload(path, kind)
	if err != nil {
		return Receipt{}, err
	}

	rel, relErr := filepath.Rel(w.cfg.Dir, path)
	if relErr != nil {
		rel = filepath.Base(path)
	}
	res, runErr := w.sub.Run(ctx, workflow.Request{Kind: kind, Payload: payload, Source: "inbox:" + filepath.ToSlash(rel)})
	if errors.Is(runErr, workflow.ErrCancelled) || (runErr != nil && ctx.Err() != nil) {
		metrics.RecordInboxFile("cancelled")
		logger.Info().Str(log.FieldEvent, "inbox.cancelled").Msg("submission cancelled; file left in inbox")
		return Receipt{}, runErr
	}

	rc := Receipt{
		SubmissionID: res.ID,
		File:         filepath.ToSlash(rel),
		Kind:         kind.Token(),
		Outcome:      res.Outcome,
		SubmitStatus: res.SubmitStatus,
		LastStatus:   res.LastStatus,
		Polls:        res.Polls,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
	}
	for _, s := range res.States {
		rc.States = append(rc.States, s.String())
	}
	destDir := filepath.Join(w.cfg.Dir, DoneDir)
	result := "done"
	if runErr != nil {
		rc.Error = runErr.Error()
		if rc.Outcome == "" {
			rc.Outcome = history.OutcomeFailed
		}
		destDir = filepath.Join(w.cfg.Dir, FailedDir)
		result = "failed"
	}

	moved, err := moveInto(w.cfg.Dir, path, destDir, w.now())
	if err != nil {
		metrics.RecordInboxFile("move_failed")
		logger.Error().Err(err).Str(log.FieldEvent, "inbox.move_failed").Msg("failed to move processed file")
		return rc, fmt.Errorf("inbox: move %s: %w", path, err)
	}
	if _, err := WriteReceipt(moved, rc); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "inbox.receipt_failed").Msg("failed to write receipt")
		return rc, err
	}
	metrics.RecordInboxFile(result)

	evt := logger.Info()
	if runErr != nil {
		evt = logger.Warn().Err(runErr)
	}
	evt.Str(log.FieldEvent, "inbox.processed").
		Str(log.FieldSubmissionID, rc.SubmissionID).
		Str(log.FieldOutcome, rc.Outcome).
		Str("moved_to", moved).
		Msg("inbox file processed")
	return rc, runErr
}

// payload returns the submit payload: the absolute path, or the file content
// for inline submissions.
func (w *Watcher) payload(path string, kind model.SubmitKind) (string, error) {
	if kind == model.SubmitInlineContent {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the inbox scan
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return filepath.Abs(path)
}

// waitStable returns once path has kept the same size and mtime for settle.
func waitStable(ctx context.Context, path string, settle time.Duration) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if settle <= 0 {
		return nil
	}
	for {
		timer := time.NewTimer(settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		next, err := os.Stat(path)
		if err != nil {
			return err
		}
		if next.Size() == info.Size() && next.ModTime().Equal(info.ModTime()) {
			return nil
		}
		info = next
	}
}
