// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs the interactive chat.
//
// A Session owns one conversation and the loop that feeds it. Each
// iteration takes one input: a line typed at the terminal, a Ctrl-C at the
// prompt, end of input, or a message delivered through the socket mailbox.
// Lines starting with "/" are commands; everything else is a chat turn
// whose references are resolved under the current document policy before
// the model is asked.
//
// # Key Types
//
//   - Session: the loop and its collaborators
//   - Deps: everything New needs
//   - LineReader: the prompt, satisfied by TerminalReader (liner)
//   - Links: URLs seen in the conversation, addressable as @n
//
// # Usage
//
//	s, err := session.New(session.Deps{Config: cfg, Client: client, ...})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	return s.Run(ctx)
//
// The terminal is read on its own goroutine and only when the loop asks
// for a line, so at most one prompt is ever showing. A socket message that
// arrives while the prompt waits is handled right away and the prompt is
// shown again afterwards.
package session
