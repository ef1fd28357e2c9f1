// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/xmlembed/internal/history"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List recorded submissions or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.History.Path == "" {
				return &exitError{code: 2, err: errors.New("history is disabled (history.path is empty)")}
			}
			store, err := history.Open(cmd.Context(), opts.cfg.History.Path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return &exitError{code: 1, err: err}
				}
				return writeRecords(opts.out, []history.Record{rec}, true)
			}
			recs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeRecords(opts.out, recs, asJSON)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func writeRecords(w io.Writer, recs []history.Record, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(recs) == 1 {
			return enc.Encode(recs[0])
		}
		return enc.Encode(recs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tOUTCOME\tSTATE\tSTATUS\tPOLLS\tUPDATED\tSOURCE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Kind, r.Outcome, r.State, r.LastStatus, r.Polls, r.UpdatedAt.Local().Format(time.DateTime), r.Source)
	}
	return tw.Flush()
}
