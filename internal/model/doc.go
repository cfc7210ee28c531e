// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation state: messages and the ordered,
// lock-protected message list of a chat session.
//
// # Key Types
//
//   - Role: message role enumeration (system, user, assistant, tool)
//   - Message: single message with content, image refs, thinking and tool calls
//   - MessageList: ordered history with system prompt management, exchange
//     based trimming and JSON persistence
//
// # Usage
//
//	list := model.NewMessageList().SetSystemPrompt("You are terse.")
//	list.Append(model.NewMessage(model.RoleUser, "Hello"))
//	if err := list.Save("chat.json", false); errors.Is(err, model.ErrFileExists) {
//	    // ask before overwriting
//	}
package model
