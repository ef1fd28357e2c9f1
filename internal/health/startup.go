// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/xmlembed/internal/config"
	"github.com/ManuGH/xmlembed/internal/fsutil"
	"github.com/ManuGH/xmlembed/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before a long-running command starts.
// Directories the process writes to are created when missing.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Str("event", "startup.check").Msg("running pre-flight startup checks")

	if cfg.RawLog.Enabled {
		if err := checkWritableDir(logger, cfg.RawLog.Dir); err != nil {
			return fmt.Errorf("raw log directory check failed: %w", err)
		}
	}
	if cfg.History.Path != "" {
		if err := checkWritableDir(logger, filepath.Dir(cfg.History.Path)); err != nil {
			return fmt.Errorf("history directory check failed: %w", err)
		}
	}
	if cfg.Backend.Mode == config.BackendNative && cfg.Backend.LibraryPath != "" {
		if err := checkFileReadable(cfg.Backend.LibraryPath); err != nil {
			return fmt.Errorf("native library check failed: %w", err)
		}
		logger.Info().Str("path", cfg.Backend.LibraryPath).Msg("native library is readable")
	}
	if cfg.Backend.Mode == config.BackendMock {
		logger.Warn().Str("event", "startup.mock_backend").Msg("mock backend selected; no submission reaches the real service")
	}

	logger.Info().Str("event", "startup.ok").Msg("all startup checks passed")
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	if path == "" {
		path = "."
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("directory is writable")
	return nil
}

func checkFileReadable(path string) error {
	if err := fsutil.IsRegularFile(path); err != nil {
		return err
	}
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return err
	}
	return f.Close()
}
