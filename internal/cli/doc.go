// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the docchat command line, built on cobra.
//
// # Commands
//
//   - docchat: interactive chat session (the default)
//   - send: deliver input to the running session through its socket
//   - ask: deliver input and print the assistant's reply
//   - status: server, model, socket and retrieval store status
//   - config: show, path, init, get, set and keys
//
// # Global Flags
//
//	--config, -c   config file (default ~/.docchat/config.toml)
//	--model, -m    model to chat with
//	--verbose, -v  debug logging
//
// The root command also takes --no-socket to run without the control
// socket.
//
// # Exit Codes
//
// Execute maps errors to exit codes with GetExitCode: usage errors exit 2,
// configuration errors 3, an unreachable server or session 5, a missing
// model or key 7 and timeouts 8.
package cli
