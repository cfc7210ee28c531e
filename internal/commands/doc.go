// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command surface of a chat session.
//
// This package defines the commands, parses command lines, validates their
// arguments and completes them for the line editor. What a command does is
// supplied by the session, which binds a Handler to each name.
//
// # Key Types
//
//   - Command: name, aliases, argument definitions and handler
//   - Registry: the registered commands, looked up by name or alias
//   - Parser: splits a command line into a command and its arguments
//   - Completer: tab completion for liner
//
// # Usage
//
//	reg := commands.NewRegistry(commands.Builtins()...)
//	reg.Bind("/clear", func(ctx context.Context, inv commands.Invocation) error {
//		list.Clear()
//		return nil
//	})
//	err := reg.Dispatch(ctx, "/clear")
package commands
