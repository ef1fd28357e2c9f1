// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/xmlembed/internal/config"
	"github.com/ManuGH/xmlembed/internal/gateway"
	"github.com/ManuGH/xmlembed/internal/gateway/mock"
	"github.com/ManuGH/xmlembed/internal/gateway/native"
	"github.com/ManuGH/xmlembed/internal/health"
	"github.com/ManuGH/xmlembed/internal/history"
	xlog "github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/metrics"
	"github.com/ManuGH/xmlembed/internal/rawlog"
	"github.com/ManuGH/xmlembed/internal/resilience"
	"github.com/ManuGH/xmlembed/internal/telemetry"
	"github.com/ManuGH/xmlembed/internal/workflow"
)

// app holds the wired runtime shared by every command that talks to the backend.
type app struct {
	cfg       config.AppConfig
	port      gateway.Port
	breaker   *resilience.CircuitBreaker
	store     *history.Store
	runner    *workflow.Runner
	health    *health.Manager
	telemetry *telemetry.Provider
	logger    zerolog.Logger
}

// openPort selects the backend implementation.
func openPort(cfg config.AppConfig) (gateway.Port, error) {
	if cfg.Backend.Mode == config.BackendMock {
		return mock.New(cfg.Backend.MockPendingPolls), nil
	}
	charset := cfg.Backend.Charset
	if charset == "" {
		charset = native.DefaultCharset(runtime.GOOS)
	}
	enc, err := native.LookupCharset(charset)
	if err != nil {
		return nil, err
	}
	if cfg.Backend.LibraryPath != "" {
		return native.Open(cfg.Backend.LibraryPath, native.WithCharset(enc))
	}
	return native.OpenDir(cfg.Backend.LibraryDir, native.WithCharset(enc))
}

// newApp wires telemetry, gateway, breaker, raw log, history and runner.
// persistHistory=false keeps history in memory for the life of the process.
func newApp(ctx context.Context, cfg config.AppConfig, persistHistory bool) (_ *app, err error) {
	if err := config.RequireCredentials(cfg); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: xlog.WithComponent("app")}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "xmlembed",
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Protocol,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	raw, err := openPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	a.breaker = resilience.NewCircuitBreaker("gateway", cfg.Breaker.Threshold, cfg.Breaker.ResetTimeout,
		resilience.WithFailureFilter(gateway.CountsAsBackendFailure),
		resilience.WithPanicRecovery(true))
	metrics.SetCircuitBreakerState("gateway", string(a.breaker.State()))
	a.port = gateway.WithBreaker(gateway.Instrument(raw), a.breaker)

	var recorder rawlog.Recorder = rawlog.Nop{}
	if cfg.RawLog.Enabled {
		recorder = rawlog.NewFileRecorder(cfg.RawLog.Dir)
	}

	if persistHistory && cfg.History.Path != "" {
		a.store, err = history.Open(ctx, cfg.History.Path)
	} else {
		a.store, err = history.OpenMemory(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	a.runner = workflow.New(a.port, workflow.Config{
		Credentials:    cfg.Credentials,
		Interval:       cfg.Poll.Interval,
		TerminalStatus: cfg.Poll.TerminalStatus,
		MaxWait:        cfg.Poll.MaxWait,
	},
		workflow.WithRecorder(recorder),
		workflow.WithHistory(a.store),
	)

	a.health = health.NewManager(cfg.Version)
	a.health.RegisterChecker(health.NewBreakerChecker(a.breaker))
	a.health.RegisterChecker(health.NewPingChecker("history", a.store))
	a.health.RegisterChecker(health.NewLastRunChecker(a.lastRun))

	a.logger.Info().
		Str(xlog.FieldEvent, "app.ready").
		Str("backend", cfg.Backend.Mode).
		Str("product", cfg.Credentials.Product).
		Bool("raw_log", cfg.RawLog.Enabled).
		Bool("tracing", a.telemetry.Enabled()).
		Str("history", a.store.Path()).
		Msg("runtime wired")
	return a, nil
}

// lastRun reports the most recent finished run from history.
func (a *app) lastRun() (time.Time, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	recs, err := a.store.List(ctx, 20)
	if err != nil {
		return time.Time{}, ""
	}
	for _, rec := range recs {
		if !rec.Done() {
			continue
		}
		if rec.Outcome == history.OutcomeFailed {
			reason := rec.Error
			if reason == "" {
				reason = "submission failed"
			}
			return rec.UpdatedAt, reason
		}
		return rec.UpdatedAt, ""
	}
	return time.Time{}, ""
}

// Close releases the backend, history and telemetry in reverse wiring order.
func (a *app) Close(ctx context.Context) {
	var errs []error
	if a.port != nil {
		if err := gateway.Close(a.port); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn().Err(err).Str(xlog.FieldEvent, "app.close_failed").Msg("shutdown incomplete")
	}
}
