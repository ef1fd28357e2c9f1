// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Default values.
const (
	DefaultProduct        = "xml"
	DefaultSubProduct     = "1"
	DefaultPollInterval   = time.Second
	DefaultTerminalStatus = 0
	DefaultRawLogDir      = "log"
	DefaultListen         = ":8088"
	DefaultEnvFile        = ".env"
)

// Defaults returns a configuration populated with default values.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:  "info",
		LogFormat: "json",
		Product: ProductConfig{
			Name:       DefaultProduct,
			SubProduct: DefaultSubProduct,
		},
		Backend: BackendConfig{
			Mode:             BackendNative,
			LibraryDir:       ".",
			MockPendingPolls: 2,
		},
		Poll: PollConfig{
			Interval:       DefaultPollInterval,
			TerminalStatus: DefaultTerminalStatus,
		},
		RawLog: RawLogConfig{
			Enabled: true,
			Dir:     DefaultRawLogDir,
		},
		History: HistoryConfig{
			Path: "xmlembed.db",
		},
		Server: ServerConfig{
			Listen:          DefaultListen,
			RateLimit:       60,
			MaxConns:        64,
			ShutdownTimeout: 10 * time.Second,
		},
		Inbox: InboxConfig{
			Dir:    "inbox",
			Rate:   1,
			Burst:  1,
			Settle: 500 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			Threshold:    3,
			ResetTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Protocol:   "grpc",
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
	}
}
