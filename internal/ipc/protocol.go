// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxMessageSize bounds one request line.
const MaxMessageSize = 1 << 20

// Type is the delivery type of a request.
type Type string

const (
	// TypeInput is fire-and-forget: the connection is closed once the
	// turn has run.
	TypeInput Type = "input"

	// TypeInputResponse expects the final assistant reply.
	TypeInputResponse Type = "input_response"
)

// Reply errors.
const (
	ReasonSuperseded = "superseded"
	ReasonDropped    = "dropped"
)

// Errors returned by the client.
var (
	ErrSuperseded = errors.New("message superseded by a newer one")
	ErrRejected   = errors.New("message rejected")
	ErrNoSession  = errors.New("no session listening")
)

// Request is one message sent to the session.
type Request struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
	Type    Type   `json:"type"`

	// Parse is nil when the sender left it out, which means true.
	Parse *bool `json:"parse,omitempty"`
}

// ShouldParse reports whether references and slash commands in the content
// are honored. When false the content is sent verbatim as a chat turn.
func (r Request) ShouldParse() bool {
	return r.Parse == nil || *r.Parse
}

// ExpectsReply reports whether the sender waits for the assistant reply.
func (r Request) ExpectsReply() bool {
	return r.Type == TypeInputResponse
}

// Validate checks the request.
func (r Request) Validate() error {
	switch r.Type {
	case TypeInput, TypeInputResponse:
	case "":
		return fmt.Errorf("missing type")
	default:
		return fmt.Errorf("unknown type %q", r.Type)
	}
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("empty content")
	}
	return nil
}

// Reply is the single line written back to the sender.
type Reply struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Err converts an error reply into a Go error.
func (r Reply) Err() error {
	switch r.Error {
	case "":
		return nil
	case ReasonSuperseded:
		return ErrSuperseded
	default:
		return fmt.Errorf("%w: %s", ErrRejected, r.Error)
	}
}

func decodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

func encodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
