// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/xmlembed/internal/log"
)

// Environment keys.
const (
	EnvAccessKey  = "ACCESS_KEY"
	EnvSecretKey  = "SECRET_KEY"
	EnvTerminalID = "ID_PDV"
	EnvAPIToken   = "XMLEMBED_API_TOKEN"

	envPrefix = "XMLEMBED_"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	envFile         string
	version         string
	lookup          LookupFunc
	logger          zerolog.Logger
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// LoaderOption customises a Loader.
type LoaderOption func(*Loader)

// WithEnvFile sets the dotenv file consulted after the process environment.
// An empty path disables dotenv loading.
func WithEnvFile(path string) LoaderOption {
	return func(l *Loader) { l.envFile = path }
}

// WithLookup replaces the process environment lookup, mainly for tests.
func WithLookup(fn LookupFunc) LoaderOption {
	return func(l *Loader) { l.lookup = fn }
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string, opts ...LoaderOption) *Loader {
	l := &Loader{
		configPath:      configPath,
		envFile:         DefaultEnvFile,
		version:         version,
		lookup:          OSLookup,
		logger:          log.WithComponent("config"),
		ConsumedEnvKeys: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads configuration with precedence: ENV > .env > File > Defaults.
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	lookup, err := l.layeredLookup()
	if err != nil {
		return cfg, fmt.Errorf("load env file: %w", err)
	}
	l.mergeEnv(&cfg, lookup)

	cfg.Version = l.version
	cfg.Credentials.Product = cfg.Product.Name
	cfg.Credentials.SubProduct = cfg.Product.SubProduct

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// layeredLookup resolves keys from the process environment first and the
// dotenv file second. The process environment is never mutated.
func (l *Loader) layeredLookup() (LookupFunc, error) {
	if l.envFile == "" {
		return l.lookup, nil
	}
	values, err := godotenv.Read(l.envFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l.lookup, nil
		}
		return nil, err
	}
	l.logger.Debug().Str("event", "config.dotenv_loaded").Str("path", l.envFile).Int("keys", len(values)).Msg("loaded env file")
	base := l.lookup
	return func(key string) (string, bool) {
		if v, ok := base(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

func (l *Loader) mergeEnv(cfg *AppConfig, lookup LookupFunc) {
	str := func(key, def string) string {
		l.ConsumedEnvKeys[key] = struct{}{}
		return parseString(l.logger, lookup, key, def)
	}
	num := func(key string, def int) int {
		l.ConsumedEnvKeys[key] = struct{}{}
		return parseInt(l.logger, lookup, key, def)
	}
	flt := func(key string, def float64) float64 {
		l.ConsumedEnvKeys[key] = struct{}{}
		return parseFloat(l.logger, lookup, key, def)
	}
	dur := func(key string, def time.Duration) time.Duration {
		l.ConsumedEnvKeys[key] = struct{}{}
		return parseDuration(l.logger, lookup, key, def)
	}
	flag := func(key string, def bool) bool {
		l.ConsumedEnvKeys[key] = struct{}{}
		return parseBool(l.logger, lookup, key, def)
	}

	cfg.LogLevel = str(envPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = str(envPrefix+"LOG_FORMAT", cfg.LogFormat)

	cfg.Credentials.AccessKey = str(EnvAccessKey, "")
	cfg.Credentials.SecretKey = str(EnvSecretKey, "")
	cfg.Credentials.TerminalID = str(EnvTerminalID, "")

	cfg.Product.Name = str(envPrefix+"PRODUCT", cfg.Product.Name)
	cfg.Product.SubProduct = str(envPrefix+"SUB_PRODUCT", cfg.Product.SubProduct)

	cfg.Backend.Mode = strings.ToLower(str(envPrefix+"BACKEND_MODE", cfg.Backend.Mode))
	cfg.Backend.LibraryDir = str(envPrefix+"LIBRARY_DIR", cfg.Backend.LibraryDir)
	cfg.Backend.LibraryPath = str(envPrefix+"LIBRARY_PATH", cfg.Backend.LibraryPath)
	cfg.Backend.Charset = strings.ToLower(str(envPrefix+"CHARSET", cfg.Backend.Charset))
	cfg.Backend.MockPendingPolls = num(envPrefix+"MOCK_PENDING_POLLS", cfg.Backend.MockPendingPolls)

	cfg.Poll.Interval = dur(envPrefix+"POLL_INTERVAL", cfg.Poll.Interval)
	cfg.Poll.TerminalStatus = num(envPrefix+"TERMINAL_STATUS", cfg.Poll.TerminalStatus)
	cfg.Poll.MaxWait = dur(envPrefix+"POLL_MAX_WAIT", cfg.Poll.MaxWait)

	cfg.RawLog.Enabled = flag(envPrefix+"RAWLOG_ENABLED", cfg.RawLog.Enabled)
	cfg.RawLog.Dir = str(envPrefix+"RAWLOG_DIR", cfg.RawLog.Dir)

	cfg.History.Path = str(envPrefix+"HISTORY_PATH", cfg.History.Path)

	cfg.Server.Listen = str(envPrefix+"LISTEN", cfg.Server.Listen)
	cfg.Server.RateLimit = num(envPrefix+"RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.MaxConns = num(envPrefix+"MAX_CONNS", cfg.Server.MaxConns)
	cfg.Server.ShutdownTimeout = dur(envPrefix+"SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.Token = str(EnvAPIToken, "")

	cfg.Inbox.Dir = str(envPrefix+"INBOX_DIR", cfg.Inbox.Dir)
	cfg.Inbox.Rate = flt(envPrefix+"INBOX_RATE", cfg.Inbox.Rate)
	cfg.Inbox.Burst = num(envPrefix+"INBOX_BURST", cfg.Inbox.Burst)
	cfg.Inbox.InlineXML = flag(envPrefix+"INBOX_INLINE_XML", cfg.Inbox.InlineXML)
	cfg.Inbox.Settle = dur(envPrefix+"INBOX_SETTLE", cfg.Inbox.Settle)

	cfg.Breaker.Threshold = num(envPrefix+"BREAKER_THRESHOLD", cfg.Breaker.Threshold)
	cfg.Breaker.ResetTimeout = dur(envPrefix+"BREAKER_RESET", cfg.Breaker.ResetTimeout)

	cfg.Telemetry.Enabled = flag(envPrefix+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Protocol = strings.ToLower(str(envPrefix+"OTLP_PROTOCOL", cfg.Telemetry.Protocol))
	cfg.Telemetry.Endpoint = str(envPrefix+"OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SampleRate = flt(envPrefix+"TRACE_SAMPLE_RATE", cfg.Telemetry.SampleRate)
}

// loadFile decodes the YAML file onto cfg with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if err == io.EOF {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}

	l.logger.Debug().Str("event", "config.file_loaded").Str("path", path).Msg("loaded config file")
	return nil
}

// LoadFile loads a YAML config file on top of defaults without env overrides.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	err := NewLoader(path, "").loadFile(path, &cfg)
	return cfg, err
}
