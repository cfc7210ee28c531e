// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - The config command.
//
// Subcommands:
//   show (default)      Display the effective configuration
//   path                Show the configuration file path
//   init                Write a config file with the defaults
//   get <key>           Print one value
//   set <key> <value>   Change one value in the config file
//   keys                List every key
//
// Examples:
//   docchat config show --format yaml
//   docchat config set server.model qwen2.5:14b
//   docchat config set chat.document_policy embed

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/storage"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify the configuration",
		Args:  cobra.NoArgs,
	}
	show := newConfigShowCommand(a)
	cmd.RunE = show.RunE
	cmd.Flags().AddFlagSet(show.Flags())

	cmd.AddCommand(
		show,
		newConfigPathCommand(a),
		newConfigInitCommand(a),
		newConfigGetCommand(a),
		newConfigSetCommand(a),
		newConfigKeysCommand(),
	)
	return cmd
}

// path returns the config file the command works on.
func (a *app) path() (string, error) {
	if a.configPath != "" {
		return config.Path(a.configPath), nil
	}
	return config.DefaultPath()
}

func newConfigShowCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after the config file, DOCCHAT_*
environment variables and defaults have been applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "", "toml":
				fmt.Fprint(out, a.cfg.String())
			case "yaml", "yml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(a.cfg); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(a.cfg)
			default:
				return &UsageError{Reason: fmt.Sprintf("unknown format %q", format), Example: "docchat config show --format yaml"}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "toml", "output format: toml, yaml or json")
	return cmd
}

func newConfigPathCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Show the configuration file path",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.path()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigInitCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with the defaults",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.path()
			if err != nil {
				return err
			}
			if storage.Exists(path) && !force {
				return &UsageError{Reason: path + " already exists", Example: "docchat config init --force"}
			}
			if err := config.Default().Save(path); err != nil {
				return configError(err)
			}
			st := NewStyles(cmd.OutOrStdout(), GetColorProfile())
			fmt.Fprintln(cmd.OutOrStdout(), st.Success.Render("wrote "+path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return &NotFoundError{Resource: "config key", ID: args[0]}
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newConfigSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one value in the config file",
		Long: `Change one value and save the config file. List values such as
voice.args take a space separated list.`,
		Example: `  docchat config set server.model llama3.2
  docchat config set retrieval.results 8`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.path()
			if err != nil {
				return err
			}

			// start from the file alone so environment overrides are not saved
			cfg, err := config.LoadFile(path)
			if err != nil {
				return configError(err)
			}

			key, value := args[0], args[1]
			if _, err := cfg.Get(key); err != nil {
				return &NotFoundError{Resource: "config key", ID: key}
			}
			if err := cfg.Set(key, value); err != nil {
				return &UsageError{Reason: err.Error()}
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return configError(err)
			}
			if err := cfg.Save(path); err != nil {
				return configError(err)
			}

			st := NewStyles(cmd.OutOrStdout(), GetColorProfile())
			fmt.Fprintln(cmd.OutOrStdout(), st.Row(key, value))
			return nil
		},
	}
}

func newConfigKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "keys",
		Short:       "List every configuration key",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			for _, k := range config.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}
}
