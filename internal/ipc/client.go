// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Client sends messages to a running session.
type Client struct {
	path        string
	dialTimeout time.Duration
}

// NewClient creates a client for the socket at path.
func NewClient(path string) *Client {
	return &Client{path: path, dialTimeout: 5 * time.Second}
}

// Send delivers content without waiting for the reply.
func (c *Client) Send(ctx context.Context, content string, parse bool) error {
	conn, err := c.write(ctx, TypeInput, content, parse)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Request delivers content and waits for the assistant reply. The wait is
// bounded only by ctx.
func (c *Client) Request(ctx context.Context, content string, parse bool) (string, error) {
	conn, err := c.write(ctx, TypeInputResponse, content, parse)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*MaxMessageSize)
	if !scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read reply: %w", err)
		}
		return "", fmt.Errorf("session closed the connection without a reply")
	}

	var reply Reply
	if err := json.Unmarshal(scanner.Bytes(), &reply); err != nil {
		return "", fmt.Errorf("invalid reply: %w", err)
	}
	if err := reply.Err(); err != nil {
		return "", err
	}
	return reply.Content, nil
}

// Alive reports whether a session is listening at the client's path. It
// connects and hangs up without sending a request.
func (c *Client) Alive(ctx context.Context) bool {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) write(ctx context.Context, typ Type, content string, parse bool) (net.Conn, error) {
	req := Request{ID: uuid.NewString(), Content: content, Type: typ, Parse: &parse}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	line, err := encodeLine(req)
	if err != nil {
		return nil, err
	}
	if len(line) > MaxMessageSize {
		return nil, fmt.Errorf("message too large (%d bytes, max %d)", len(line), MaxMessageSize)
	}

	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w at %s", ErrNoSession, c.path)
		}
		return nil, err
	}
	if _, err := conn.Write(line); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send: %w", err)
	}
	return conn, nil
}
