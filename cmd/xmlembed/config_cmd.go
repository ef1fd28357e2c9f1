// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/xmlembed/internal/config"
)

const redacted = "***"

// credentialStatus reports which credentials are present without revealing them.
type credentialStatus struct {
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	TerminalID string `yaml:"terminalId"`
	APIToken   string `yaml:"apiToken"`
}

func mask(v string) string {
	if v == "" {
		return "(unset)"
	}
	return redacted
}

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as YAML with credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			doc := struct {
				Config      config.AppConfig `yaml:",inline"`
				Credentials credentialStatus `yaml:"credentials"`
			}{
				Config: cfg,
				Credentials: credentialStatus{
					AccessKey:  mask(cfg.Credentials.AccessKey),
					SecretKey:  mask(cfg.Credentials.SecretKey),
					TerminalID: mask(cfg.Credentials.TerminalID),
					APIToken:   mask(cfg.Server.Token),
				},
			}
			enc := yaml.NewEncoder(opts.out)
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.RequireCredentials(opts.cfg); err != nil {
				return &exitError{code: 1, err: err}
			}
			src := opts.configPath
			if src == "" {
				src = "defaults and environment"
			}
			fmt.Fprintf(opts.out, "configuration from %s is valid\n", src)
			return nil
		},
	}

	cmd.AddCommand(dump, validate)
	return cmd
}
