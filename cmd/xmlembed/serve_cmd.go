// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/xmlembed/internal/api"
	"github.com/ManuGH/xmlembed/internal/config"
	"github.com/ManuGH/xmlembed/internal/health"
	"github.com/ManuGH/xmlembed/internal/inbox"
	xlog "github.com/ManuGH/xmlembed/internal/log"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		listen    string
		withInbox bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control surface",
		Long: `Serve the submission API, health probes and Prometheus metrics.

With --watch the inbox watcher runs in the same process and shares the backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if err := health.PerformStartupChecks(cmd.Context(), cfg); err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			tracing := ""
			if cfg.Telemetry.Enabled {
				tracing = "xmlembed-api"
			}
			srv := api.New(api.Config{
				RateLimit:       cfg.Server.RateLimit,
				TracingService:  tracing,
				MaxConns:        cfg.Server.MaxConns,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				Token:           cfg.Server.Token,
			}, a.runner, a.store, a.health)
			if cfg.Server.Token == "" {
				a.logger.Warn().
					Str(xlog.FieldEvent, "api.auth_disabled").
					Str("listen", cfg.Server.Listen).
					Msgf("%s is unset; the submission API accepts unauthenticated requests", config.EnvAPIToken)
			}

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Server.Listen) })
			if withInbox {
				w := inbox.New(inboxConfig(cfg), a.runner)
				g.Go(func() error { return w.Run(gctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides server.listen)")
	cmd.Flags().BoolVar(&withInbox, "watch", false, "also watch the inbox directory")
	return cmd
}

func inboxConfig(cfg config.AppConfig) inbox.Config {
	return inbox.Config{
		Dir:       cfg.Inbox.Dir,
		Rate:      cfg.Inbox.Rate,
		Burst:     cfg.Inbox.Burst,
		InlineXML: cfg.Inbox.InlineXML,
		Settle:    cfg.Inbox.Settle,
	}
}
