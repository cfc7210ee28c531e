// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/ipc"
)

const sendTimeout = 10 * time.Second

// messageText joins args, reading stdin when the only argument is "-".
func messageText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), ipc.MaxMessageSize+1))
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		args = []string{string(data)}
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", &UsageError{Reason: "nothing to send", Example: `docchat send "summarize ./notes.md"`}
	}
	return text, nil
}

func (a *app) socketClient() *ipc.Client {
	return ipc.NewClient(config.Path(a.cfg.Socket.Path))
}

func newSendCommand(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "send <text>... | -",
		Short: "Send input to the running session",
		Long: `Send text to the running chat session as if it had been typed.
Commands such as /embed work too. The command returns once the session
has accepted the message; use "docchat ask" to wait for the reply.

A message that arrives while an earlier one is still waiting replaces it.`,
		Example: `  docchat send "what changed in ./CHANGELOG.md?"
  git diff | docchat send --raw -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := messageText(cmd, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
			defer cancel()

			a.logger.Debug("sending", zap.Int("bytes", len(text)), zap.Bool("raw", raw))
			return a.socketClient().Send(ctx, text, !raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "send the text verbatim, without commands or references")
	return cmd
}

func newAskCommand(a *app) *cobra.Command {
	var (
		raw     bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask <text>... | -",
		Short: "Send input to the running session and print the reply",
		Long: `Send text to the running chat session and wait for the assistant's
final reply, which is printed on stdout. The reply is also shown in the
session itself.`,
		Example: `  docchat ask "list the TODOs in ./main.go"
  docchat ask --timeout 2m "summarize https://go.dev/doc/effective_go"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := messageText(cmd, args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			reply, err := a.socketClient().Request(ctx, text, !raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "send the text verbatim, without commands or references")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits for the reply)")
	return cmd
}
