// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ipc

import (
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// replyTimeout bounds writes back to a sender.
const replyTimeout = 5 * time.Second

// =============================================================================
// MESSAGE
// =============================================================================

// Message is a received request together with the connection it came on.
// Exactly one of Reply, Fail or Close takes effect; later calls are no-ops.
type Message struct {
	Request

	conn net.Conn
	once sync.Once
}

// NewMessage wraps a request. conn may be nil for messages that did not
// arrive over a socket.
func NewMessage(req Request, conn net.Conn) *Message {
	return &Message{Request: req, conn: conn}
}

// Reply sends content to the sender when it expects a reply, then closes
// the connection.
func (m *Message) Reply(content string) error {
	if !m.ExpectsReply() {
		return m.Close()
	}
	return m.finish(Reply{ID: m.ID, Content: content})
}

// Fail sends an error reply and closes the connection.
func (m *Message) Fail(reason string) error {
	return m.finish(Reply{ID: m.ID, Error: reason})
}

// Close closes the connection without replying.
func (m *Message) Close() error {
	var err error
	m.once.Do(func() {
		if m.conn != nil {
			err = m.conn.Close()
		}
	})
	return err
}

func (m *Message) finish(reply Reply) error {
	var err error
	m.once.Do(func() {
		if m.conn == nil {
			return
		}
		defer m.conn.Close()

		var line []byte
		if line, err = encodeLine(reply); err != nil {
			return
		}
		_ = m.conn.SetWriteDeadline(time.Now().Add(replyTimeout))
		_, err = m.conn.Write(line)
	})
	return err
}

// =============================================================================
// MAILBOX
// =============================================================================

// Mailbox is the single-slot handoff between the listener and the session
// loop. Signal has a buffer of one, so a wakeup is never lost and never
// queued twice.
type Mailbox struct {
	mu     sync.Mutex
	slot   *Message
	signal chan struct{}
	logger *zap.Logger
}

// NewMailbox creates an empty mailbox.
func NewMailbox(logger *zap.Logger) *Mailbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailbox{
		signal: make(chan struct{}, 1),
		logger: logger,
	}
}

// Put stores msg, replacing any pending message. The replaced message is
// answered with a superseded error and returned.
func (b *Mailbox) Put(msg *Message) *Message {
	b.mu.Lock()
	old := b.slot
	b.slot = msg
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}

	if old != nil {
		b.logger.Warn("socket message superseded before it was handled",
			zap.String("id", old.ID),
			zap.String("by", msg.ID))
		if err := old.Fail(ReasonSuperseded); err != nil {
			b.logger.Debug("failed to notify superseded sender", zap.Error(err))
		}
	}
	return old
}

// Signal is readable after a Put. A receive does not guarantee a message
// is still pending; use Take.
func (b *Mailbox) Signal() <-chan struct{} {
	return b.signal
}

// Take removes and returns the pending message, or nil.
func (b *Mailbox) Take() *Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := b.slot
	b.slot = nil
	return msg
}

// Pending reports whether a message is waiting.
func (b *Mailbox) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slot != nil
}

// Done finishes a taken message: it is closed if nothing answered it and it
// is removed from the slot if it is somehow still there. Messages that
// arrived after it are left alone.
func (b *Mailbox) Done(msg *Message) {
	if msg == nil {
		return
	}
	b.mu.Lock()
	if b.slot == msg {
		b.slot = nil
	}
	b.mu.Unlock()

	if err := msg.Close(); err != nil {
		b.logger.Debug("failed to close socket message", zap.Error(err))
	}
}

// Drain answers a pending message with a dropped error, for shutdown.
func (b *Mailbox) Drain() {
	if msg := b.Take(); msg != nil {
		_ = msg.Fail(ReasonDropped)
	}
}
