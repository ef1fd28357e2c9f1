// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/ManuGH/xmlembed/internal/workflow"
)

type submitSummary struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Outcome      string   `json:"outcome"`
	States       []string `json:"states"`
	SubmitStatus int      `json:"submit_status"`
	Polls        int      `json:"polls"`
	LastStatus   int      `json:"last_status"`
	Error        string   `json:"error,omitempty"`
	DurationMS   int64    `json:"duration_ms"`
}

func summarize(res workflow.Result) submitSummary {
	s := submitSummary{
		ID:           res.ID,
		Kind:         res.Kind.Token(),
		Outcome:      res.Outcome,
		SubmitStatus: res.SubmitStatus,
		Polls:        res.Polls,
		LastStatus:   res.LastStatus,
		DurationMS:   res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	}
	for _, st := range res.States {
		s.States = append(s.States, st.String())
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	return s
}

func newSubmitCmd(opts *options) *cobra.Command {
	var (
		kind    string
		file    string
		asJSON  bool
		persist bool
	)
	cmd := &cobra.Command{
		Use:   "submit [payload]",
		Short: "Run one full submission cycle",
		Long: `Run configure, start, submit, poll and finalize for one document.

The payload is a file path for zip, rar and path kinds, or XML content for the
xml kind. Use --file to read XML content from a file, or "-" to read stdin.`,
		Example: `  xmlembed submit --kind zip C:\nfe\lote.zip
  xmlembed submit --kind xml --file nota.xml
  cat nota.xml | xmlembed submit --kind xml -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := model.ParseSubmitKind(kind)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			payload, err := readPayload(cmd.InOrStdin(), args, file)
			if err != nil {
				return &exitError{code: 2, err: err}
			}

			a, err := newApp(cmd.Context(), opts.cfg, persist)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			res, runErr := a.runner.Run(cmd.Context(), workflow.Request{Kind: k, Payload: payload, Source: "cli"})
			if res.ID != "" {
				if err := printSummary(opts.out, summarize(res), asJSON); err != nil {
					return err
				}
			}
			switch {
			case runErr == nil:
				return nil
			case errors.Is(runErr, workflow.ErrCancelled):
				return &exitError{code: 130, err: runErr}
			default:
				return &exitError{code: 1, err: runErr}
			}
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "submit kind: zip, rar, path or xml")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the payload from this file (xml kind)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&persist, "history", true, "record the run in the history database")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func readPayload(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", errors.New("pass either a payload argument or --file, not both")
	case file != "":
		data, err := os.ReadFile(file) // #nosec G304 -- operator supplied path
		if err != nil {
			return "", err
		}
		return string(data), nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", errors.New("missing payload")
	}
}

func printSummary(w io.Writer, s submitSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	_, err := fmt.Fprintf(w, "submission %s\n  kind:          %s\n  outcome:       %s\n  states:        %s\n  submit status: %d\n  polls:         %d\n  last status:   %d\n",
		s.ID, s.Kind, s.Outcome, strings.Join(s.States, " -> "), s.SubmitStatus, s.Polls, s.LastStatus)
	if err == nil && s.Error != "" {
		_, err = fmt.Fprintf(w, "  error:         %s\n", s.Error)
	}
	return err
}
