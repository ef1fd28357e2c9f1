// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"strings"

	"github.com/ManuGH/xmlembed/internal/gateway/native"
	"github.com/ManuGH/xmlembed/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	if cfg.LogLevel != "" {
		v.OneOf("logLevel", strings.ToLower(cfg.LogLevel), validate.LogLevels())
	}
	v.OneOf("logFormat", cfg.LogFormat, []string{"json", "console"})

	v.NotEmpty("product.name", cfg.Product.Name)
	v.Custom("credentials", cfg.Credentials, func(any) error {
		return cfg.Credentials.Validate()
	})

	v.OneOf("backend.mode", cfg.Backend.Mode, []string{BackendNative, BackendMock})
	if cfg.Backend.Charset != "" {
		v.Custom("backend.charset", cfg.Backend.Charset, func(any) error {
			_, err := native.LookupCharset(cfg.Backend.Charset)
			return err
		})
	}
	v.NonNegative("backend.mockPendingPolls", cfg.Backend.MockPendingPolls)

	v.PositiveDuration("poll.interval", cfg.Poll.Interval)
	v.NonNegativeDuration("poll.maxWait", cfg.Poll.MaxWait)

	if cfg.RawLog.Enabled {
		v.NotEmpty("rawLog.dir", cfg.RawLog.Dir)
	}

	v.ListenAddr("server.listen", cfg.Server.Listen)
	v.NonNegative("server.rateLimit", cfg.Server.RateLimit)
	v.Positive("server.maxConns", cfg.Server.MaxConns)

	v.NonNegativeFloat("inbox.rate", cfg.Inbox.Rate)
	v.Positive("inbox.burst", cfg.Inbox.Burst)
	v.NonNegativeDuration("inbox.settle", cfg.Inbox.Settle)

	v.Positive("breaker.threshold", cfg.Breaker.Threshold)
	v.PositiveDuration("breaker.resetTimeout", cfg.Breaker.ResetTimeout)
	v.NonNegativeDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.protocol", cfg.Telemetry.Protocol, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.sampleRate", cfg.Telemetry.SampleRate, 0, 1)
	}

	return v.Err()
}

// RequireCredentials fails with ErrMissingCredentials naming every unset
// credential environment key. The mock backend does not need credentials.
func RequireCredentials(cfg AppConfig) error {
	if cfg.Backend.Mode == BackendMock {
		return nil
	}
	var missing []string
	if cfg.Credentials.AccessKey == "" {
		missing = append(missing, EnvAccessKey)
	}
	if cfg.Credentials.SecretKey == "" {
		missing = append(missing, EnvSecretKey)
	}
	if cfg.Credentials.TerminalID == "" {
		missing = append(missing, EnvTerminalID)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}
