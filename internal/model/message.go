// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"github.com/jeranaias/docchat/internal/ollama"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleTool:
		return "Tool"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// ToolCall is a tool invocation requested by an assistant message.
type ToolCall = ollama.ToolCall

// Message is one entry of the conversation. Images holds references (paths
// or URLs), not encoded image data.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Images    []string   `json:"images,omitempty"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

// NewMessage creates a message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// NewToolMessage creates a tool result message.
func NewToolMessage(toolName, result string) Message {
	return Message{Role: RoleTool, Content: result, ToolName: toolName}
}

// HasToolCalls returns true if the message requests tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Wire converts the message to its inference-server form. Encoded image
// data is supplied by the caller since Message only carries references.
func (m Message) Wire(images []string) ollama.Message {
	return ollama.Message{
		Role:      string(m.Role),
		Content:   m.Content,
		Thinking:  m.Thinking,
		Images:    images,
		ToolCalls: m.ToolCalls,
		ToolName:  m.ToolName,
	}
}

func (m Message) clone() Message {
	c := m
	if m.Images != nil {
		c.Images = append([]string(nil), m.Images...)
	}
	if m.ToolCalls != nil {
		c.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	return c
}
