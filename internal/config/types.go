// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"time"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
)

// Backend modes.
const (
	BackendNative = "native"
	BackendMock   = "mock"
)

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"` // json | console

	// Credentials are populated from the environment only.
	Credentials model.Credentials `yaml:"-"`

	Product   ProductConfig   `yaml:"product"`
	Backend   BackendConfig   `yaml:"backend"`
	Poll      PollConfig      `yaml:"poll"`
	RawLog    RawLogConfig    `yaml:"rawLog"`
	History   HistoryConfig   `yaml:"history"`
	Server    ServerConfig    `yaml:"server"`
	Inbox     InboxConfig     `yaml:"inbox"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProductConfig selects the backend product line.
type ProductConfig struct {
	Name       string `yaml:"name"`
	SubProduct string `yaml:"subProduct"`
}

// BackendConfig selects and locates the backend implementation.
type BackendConfig struct {
	Mode        string `yaml:"mode"`
	LibraryDir  string `yaml:"libraryDir"`
	LibraryPath string `yaml:"libraryPath"` // overrides LibraryDir resolution
	Charset     string `yaml:"charset"`     // empty selects the platform default
	// MockPendingPolls is the number of non-terminal polls the mock reports.
	MockPendingPolls int `yaml:"mockPendingPolls"`
}

// PollConfig tunes the status polling loop.
type PollConfig struct {
	Interval       time.Duration `yaml:"interval"`
	TerminalStatus int           `yaml:"terminalStatus"`
	MaxWait        time.Duration `yaml:"maxWait"` // 0 disables the overall deadline
}

// RawLogConfig controls the per-operation raw response log.
type RawLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// HistoryConfig locates the submission history database.
type HistoryConfig struct {
	Path string `yaml:"path"` // empty disables history
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	RateLimit       int           `yaml:"rateLimit"` // requests per minute per client, 0 disables
	MaxConns        int           `yaml:"maxConns"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// Token guards /api/v1. Populated from the environment only.
	Token string `yaml:"-"`
}

// InboxConfig configures the directory watcher.
type InboxConfig struct {
	Dir       string  `yaml:"dir"`
	Rate      float64 `yaml:"rate"` // submissions per second
	Burst     int     `yaml:"burst"`
	InlineXML bool    `yaml:"inlineXML"`
	// Settle is how long a file must stay unchanged before submission.
	Settle time.Duration `yaml:"settle"`
}

// BreakerConfig configures the gateway circuit breaker.
type BreakerConfig struct {
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"resetTimeout"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Protocol   string  `yaml:"protocol"` // grpc | http
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}
