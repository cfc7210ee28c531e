// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jeranaias/docchat/internal/util"
)

// Sentinel errors returned by MessageList operations.
var (
	ErrInvalidRole    = errors.New("invalid message role")
	ErrNothingToDrop  = errors.New("nothing to drop")
	ErrFileExists     = errors.New("file exists")
	ErrFileMissing    = errors.New("file missing")
	ErrNotStreaming   = errors.New("last message is not an assistant message")
	ErrMultipleSystem = errors.New("more than one system message")
)

// MessageList is the ordered conversation history of a session.
//
// At most one message has RoleSystem. It is usually first but is located by
// search, so loaded files that store it elsewhere keep working.
//
// MessageList is safe for concurrent use.
type MessageList struct {
	mu       sync.Mutex
	messages []Message
}

// NewMessageList creates an empty list.
func NewMessageList() *MessageList {
	return &MessageList{}
}

// =============================================================================
// MUTATION
// =============================================================================

// Append adds a message at the end. Only the role is validated; a second
// system message is rejected.
func (l *MessageList) Append(msg Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.Role == RoleSystem && l.systemIndex() >= 0 {
		return ErrMultipleSystem
	}
	l.messages = append(l.messages, msg.clone())
	return nil
}

// SetSystemPrompt discards the whole history and re-seeds it with a single
// system message.
func (l *MessageList) SetSystemPrompt(text string) *MessageList {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = []Message{{Role: RoleSystem, Content: text}}
	return l
}

// Clear removes every message except the system message.
func (l *MessageList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.messages[:0]
	for _, m := range l.messages {
		if m.Role == RoleSystem {
			kept = append(kept, m)
		}
	}
	l.messages = kept
}

// Drop removes the last n exchanges and returns how many were removed.
//
// An exchange is a user message plus everything after it up to the next
// user message. A single unanswered user message at the end is removed
// together with the exchange before it. Other unanswered user messages are
// removed two at a time, each pair counting as one exchange. The system
// message is never removed. n below 1 means 1. With fewer than two
// non-system messages nothing is removed and ErrNothingToDrop is returned.
func (l *MessageList) Drop(n int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.nonSystemCount() < 2 {
		return 0, ErrNothingToDrop
	}
	n = max(n, 1)

	pairs := 0
	end := len(l.messages)
	attach := true
	for pairs < n {
		start := l.lastUser(end)
		if start < 0 {
			break
		}
		if l.answered(start, end) {
			end = start
			pairs++
			attach = false
			continue
		}

		prev := l.lastUser(start)
		if attach && prev >= 0 && l.answered(prev, start) {
			end = start
			attach = false
			continue
		}
		attach = false
		if prev >= 0 && !l.answered(prev, start) {
			start = prev
		}
		end = start
		pairs++
	}
	if pairs == 0 {
		return 0, ErrNothingToDrop
	}

	kept := make([]Message, 0, end+1)
	kept = append(kept, l.messages[:end]...)
	for _, m := range l.messages[end:] {
		if m.Role == RoleSystem {
			kept = append(kept, m)
		}
	}
	l.messages = kept
	return pairs, nil
}

// lastUser returns the index of the last user message before end, or -1.
func (l *MessageList) lastUser(end int) int {
	for i := end - 1; i >= 0; i-- {
		if l.messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// answered reports whether messages[start:end] hold an assistant reply.
func (l *MessageList) answered(start, end int) bool {
	for _, m := range l.messages[start:end] {
		if m.Role == RoleAssistant {
			return true
		}
	}
	return false
}

// StartAssistant appends an empty assistant message for a streamed reply.
func (l *MessageList) StartAssistant() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, Message{Role: RoleAssistant})
}

// AppendToLast concatenates content and thinking fragments onto the last
// message, which must be an assistant message.
func (l *MessageList) AppendToLast(content, thinking string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	last := l.last()
	if last == nil || last.Role != RoleAssistant {
		return ErrNotStreaming
	}
	last.Content += content
	last.Thinking += thinking
	return nil
}

// SetLastToolCalls records tool calls requested by the streaming assistant
// message.
func (l *MessageList) SetLastToolCalls(calls []ToolCall) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	last := l.last()
	if last == nil || last.Role != RoleAssistant {
		return ErrNotStreaming
	}
	last.ToolCalls = append(last.ToolCalls, calls...)
	return nil
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Len returns the number of messages including the system message.
func (l *MessageList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// SystemPrompt returns the system message text, if one is present.
func (l *MessageList) SystemPrompt() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := l.systemIndex(); i >= 0 {
		return l.messages[i].Content, true
	}
	return "", false
}

// Last returns a copy of the last message.
func (l *MessageList) Last() (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last := l.last(); last != nil {
		return last.clone(), true
	}
	return Message{}, false
}

// List returns copies of the last n messages, or all of them when n <= 0.
func (l *MessageList) List(n int) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := 0
	if n > 0 && n < len(l.messages) {
		start = len(l.messages) - n
	}
	return cloneAll(l.messages[start:])
}

// Snapshot returns the messages to transmit. When decorate is non-nil the
// system text is passed through it in the copy only; if there is no system
// message a decorated one is placed first. Stored messages never change.
func (l *MessageList) Snapshot(decorate func(system string) string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := cloneAll(l.messages)
	if decorate == nil {
		return out
	}
	if i := l.systemIndex(); i >= 0 {
		out[i].Content = decorate(out[i].Content)
		return out
	}
	return append([]Message{{Role: RoleSystem, Content: decorate("")}}, out...)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Save writes the list as a JSON array. An existing file is only replaced
// when overwrite is set; otherwise ErrFileExists is returned.
func (l *MessageList) Save(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
	}

	l.mu.Lock()
	data, err := json.MarshalIndent(l.messagesOrEmpty(), "", "  ")
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Load replaces the list with the contents of a JSON file. The file is
// fully decoded and validated first; on any error the list is unchanged.
func (l *MessageList) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileMissing, path)
	}
	if err != nil {
		return fmt.Errorf("failed to read conversation: %w", err)
	}

	var loaded []Message
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse conversation %s: %w", path, err)
	}
	if err := validate(loaded); err != nil {
		return fmt.Errorf("invalid conversation %s: %w", path, err)
	}

	l.mu.Lock()
	l.messages = loaded
	l.mu.Unlock()
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func validate(messages []Message) error {
	systems := 0
	for i, m := range messages {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: %w: %q", i, ErrInvalidRole, m.Role)
		}
		if m.Role == RoleSystem {
			systems++
		}
	}
	if systems > 1 {
		return ErrMultipleSystem
	}
	return nil
}

func (l *MessageList) systemIndex() int {
	for i, m := range l.messages {
		if m.Role == RoleSystem {
			return i
		}
	}
	return -1
}

func (l *MessageList) nonSystemCount() int {
	n := 0
	for _, m := range l.messages {
		if m.Role != RoleSystem {
			n++
		}
	}
	return n
}

func (l *MessageList) last() *Message {
	if len(l.messages) == 0 {
		return nil
	}
	return &l.messages[len(l.messages)-1]
}

func (l *MessageList) messagesOrEmpty() []Message {
	if l.messages == nil {
		return []Message{}
	}
	return l.messages
}

func cloneAll(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m.clone()
	}
	return out
}
