// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/logging"
)

// Version information, set at build time via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// skipSetup marks commands that run without loading the config.
const skipSetup = "skip-setup"

// app holds the global flags and what PersistentPreRunE builds from them.
type app struct {
	configPath string
	model      string
	verbose    bool
	noSocket   bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the docchat command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "docchat",
		Short: "Chat with a local model about your documents",
		Long: `docchat is a terminal chat client for an Ollama server.

References in your messages (files, URLs, !commands) are imported,
embedded for retrieval, summarized or ignored depending on the document
policy. Another process can feed the running session through its socket
with "docchat send" and "docchat ask".

Run without arguments to start the interactive chat. Type /help inside
the chat for its commands.`,
		Version:           fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: a.runChat,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default ~/.docchat/config.toml)")
	flags.StringVarP(&a.model, "model", "m", "", "model to chat with (overrides server.model)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	root.Flags().BoolVar(&a.noSocket, "no-socket", false, "do not listen on the control socket")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error()}
	})

	root.AddCommand(
		newSendCommand(a),
		newAskCommand(a),
		newStatusCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		st := NewStyles(os.Stderr, GetColorProfile())
		fmt.Fprintf(os.Stderr, "%s %v\n", st.Error.Render("error:"), err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// setup loads the config and builds the logger for the command being run.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if _, ok := cmd.Annotations[skipSetup]; ok {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return configError(err)
	}
	if a.model != "" {
		cfg.Server.Model = a.model
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		File:    config.Path(cfg.Logging.File),
		Verbose: a.verbose,
	})
	if err != nil {
		return configError(fmt.Errorf("failed to initialize logger: %w", err))
	}

	a.cfg = cfg
	a.logger = logger.With(zap.String("command", cmd.Name()))
	return nil
}
