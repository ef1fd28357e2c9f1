// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command xmlembed submits fiscal documents through the embedded backend library.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/xmlembed/internal/config"
	xlog "github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/version"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// options holds the global flags and the configuration they resolve to.
type options struct {
	configPath string
	envFile    string
	logLevel   string
	mock       bool

	cfg config.AppConfig
	out io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	root := &cobra.Command{
		Use:           "xmlembed",
		Short:         "Submit documents through the lib-embed backend",
		Long:          "xmlembed drives the lib-embed submission protocol: configure, start, submit, poll and finalize.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to YAML configuration file")
	pf.StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file layered under the process environment")
	pf.StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	pf.BoolVar(&opts.mock, "mock", false, "use the simulated backend instead of the native library")

	root.AddCommand(
		newSubmitCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// load resolves configuration and reconfigures logging from it.
func (o *options) load() error {
	loader := config.NewLoader(o.configPath, version.Version, config.WithEnvFile(o.envFile))
	cfg, err := loader.Load()
	if err != nil {
		return &exitError{code: 2, err: fmt.Errorf("configuration: %w", err)}
	}
	if o.mock {
		cfg.Backend.Mode = config.BackendMock
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	o.cfg = cfg

	xlog.Configure(xlog.Config{
		Level:   cfg.LogLevel,
		Version: cfg.Version,
		Console: cfg.LogFormat == "console",
	})
	logger := xlog.WithComponent("cli")
	logger.Debug().
		Str(xlog.FieldEvent, "config.loaded").
		Str(xlog.FieldPath, o.configPath).
		Str("backend", cfg.Backend.Mode).
		Msg("configuration loaded")
	return nil
}

func main() {
	xlog.Configure(xlog.Config{Level: "info", Version: version.Version})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer) int {
	root := newRootCmd(out)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 1
	}
	return 0
}
