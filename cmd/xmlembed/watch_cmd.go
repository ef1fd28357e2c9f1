// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/xmlembed/internal/health"
	"github.com/ManuGH/xmlembed/internal/history"
	"github.com/ManuGH/xmlembed/internal/inbox"
)

func newWatchCmd(opts *options) *cobra.Command {
	var (
		dir  string
		once bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Submit files dropped into the inbox directory",
		Long: `Watch the inbox for .zip, .rar and .xml files and submit each one.

Processed files move to done/ or failed/ with a JSON receipt beside them.
With --once the current contents are processed and the command exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if dir != "" {
				cfg.Inbox.Dir = dir
			}
			if err := health.PerformStartupChecks(cmd.Context(), cfg); err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			w := inbox.New(inboxConfig(cfg), a.runner)
			if !once {
				return w.Run(cmd.Context())
			}
			receipts, err := w.ScanOnce(cmd.Context())
			failed := 0
			for _, rc := range receipts {
				if rc.Outcome == history.OutcomeFailed {
					failed++
				}
				fmt.Fprintf(opts.out, "%-10s %s (%s)\n", rc.Outcome, rc.File, rc.SubmissionID)
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return &exitError{code: 1, err: fmt.Errorf("%d of %d files failed", failed, len(receipts))}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "inbox directory (overrides inbox.dir)")
	cmd.Flags().BoolVar(&once, "once", false, "process the current inbox contents and exit")
	return cmd
}
