// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ManuGH/xmlembed/internal/resilience"
)

// CheckerFunc adapts a named function to the Checker interface.
type CheckerFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// NewCheckerFunc creates a checker from fn.
func NewCheckerFunc(name string, fn func(ctx context.Context) CheckResult) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (c *CheckerFunc) Name() string                          { return c.name }
func (c *CheckerFunc) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// Pinger is satisfied by the history store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports unhealthy when Ping fails.
type PingChecker struct {
	name    string
	target  Pinger
	timeout time.Duration
}

// NewPingChecker creates a checker around target. A nil target reports healthy.
func NewPingChecker(name string, target Pinger) *PingChecker {
	return &PingChecker{name: name, target: target, timeout: 2 * time.Second}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.target == nil {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.target.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "ok"}
}

// BreakerChecker maps circuit breaker state onto health status.
// An open breaker degrades the process rather than failing readiness:
// the backend recovers on its own once the reset timeout elapses.
type BreakerChecker struct {
	cb *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker for cb.
func NewBreakerChecker(cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{cb: cb}
}

func (c *BreakerChecker) Name() string { return "gateway_breaker" }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	snap := c.cb.Snapshot()
	res := CheckResult{Status: StatusDegraded, Message: string(snap.State)}
	switch snap.State {
	case resilience.StateClosed:
		res.Status = StatusHealthy
	case resilience.StateOpen:
		res.Error = fmt.Sprintf("%d consecutive backend failures, next probe at %s",
			snap.Failures, snap.RetryAt.UTC().Format(time.RFC3339))
	}
	return res
}

// FileChecker checks if a file exists and is readable
type FileChecker struct {
	name string
	path string
}

// NewFileChecker creates a checker for file existence
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{
		name: name,
		path: path,
	}
}

func (c *FileChecker) Name() string {
	return c.name
}

func (c *FileChecker) Check(_ context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusUnhealthy,
				Error:   "file not found",
				Message: c.path,
			}
		}
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}

	if info.IsDir() {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  "expected file, got directory",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "file exists and readable",
	}
}

// LastRunChecker reports on the most recent finished submission.
type LastRunChecker struct {
	getLastRun func() (time.Time, string)
	maxAge     time.Duration
	now        func() time.Time
}

// NewLastRunChecker creates a checker for last submission status.
// getLastRun returns the finish time and the failure reason, if any.
func NewLastRunChecker(getLastRun func() (time.Time, string)) *LastRunChecker {
	return &LastRunChecker{
		getLastRun: getLastRun,
		maxAge:     24 * time.Hour,
		now:        time.Now,
	}
}

func (c *LastRunChecker) Name() string {
	return "last_submission"
}

// Check never reports unhealthy: a failed submission is a business outcome.
func (c *LastRunChecker) Check(context.Context) CheckResult {
	lastRun, lastError := c.getLastRun()
	if lastRun.IsZero() {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "no submission yet",
		}
	}
	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last submission failed",
		}
	}
	if c.now().Sub(lastRun) > c.maxAge {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "last successful submission over 24h ago",
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "last submission successful",
	}
}
