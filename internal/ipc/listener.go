// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// readTimeout bounds how long a connection may take to send its request.
const readTimeout = 10 * time.Second

// ErrInUse is returned when another live session owns the socket path.
var ErrInUse = errors.New("socket already in use")

// Listener accepts requests on a unix socket and hands them to a Mailbox.
type Listener struct {
	path   string
	ln     net.Listener
	box    *Mailbox
	logger *zap.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	reading map[net.Conn]struct{} // connections still waiting for a request line
}

// Listen creates the socket at path. A stale socket file left by a crashed
// session is removed; a live one yields ErrInUse.
func Listen(path string, box *Mailbox, logger *zap.Logger) (*Listener, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		conn, dialErr := net.DialTimeout("unix", path, time.Second)
		if dialErr == nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %s", ErrInUse, path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
		logger.Debug("removed stale socket", zap.String("path", path))
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to restrict socket permissions: %w", err)
	}

	return &Listener{path: path, ln: ln, box: box, logger: logger, reading: make(map[net.Conn]struct{})}, nil
}

// Path returns the socket path.
func (l *Listener) Path() string {
	return l.path
}

// Serve accepts connections until ctx is done or Close is called. It
// returns nil on a normal shutdown.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	l.logger.Info("socket listening", zap.String("path", l.path))
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.isClosed() {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handle(conn)
		}()
	}
}

// Close stops accepting, cuts short any connection that has not sent its
// request yet and removes the socket. Requests already in the mailbox keep
// their connections.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	for conn := range l.reading {
		_ = conn.SetReadDeadline(time.Now())
	}
	l.mu.Unlock()

	err := l.ln.Close()
	l.wg.Wait()
	if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// startReading registers conn so Close can interrupt its read.
func (l *Listener) startReading(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reading[conn] = struct{}{}
	deadline := time.Now().Add(readTimeout)
	if l.closed {
		deadline = time.Now()
	}
	_ = conn.SetReadDeadline(deadline)
}

func (l *Listener) doneReading(conn net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.reading, conn)
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// handle reads one request line and parks it in the mailbox. The connection
// stays open until the session answers.
func (l *Listener) handle(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic handling socket connection",
				zap.Any("error", r),
				zap.ByteString("stack", debug.Stack()))
			conn.Close()
		}
	}()

	if err := checkPeer(conn); err != nil {
		l.logger.Warn("rejected socket peer", zap.Error(err))
		l.reject(conn, "", err.Error())
		return
	}

	l.startReading(conn)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), MaxMessageSize)
	ok := scanner.Scan()
	l.doneReading(conn)
	if !ok {
		err := scanner.Err()
		if err == nil {
			err = errors.New("connection closed before a request was sent")
		}
		l.logger.Debug("failed to read socket request", zap.Error(err))
		l.reject(conn, "", "no request")
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	req, err := decodeRequest(scanner.Bytes())
	if err != nil {
		l.logger.Warn("bad socket request", zap.Error(err))
		l.reject(conn, req.ID, err.Error())
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	l.logger.Info("socket message received",
		zap.String("id", req.ID),
		zap.String("type", string(req.Type)),
		zap.Bool("parse", req.ShouldParse()),
		zap.Int("bytes", len(req.Content)))
	l.box.Put(NewMessage(req, conn))
}

func (l *Listener) reject(conn net.Conn, id, reason string) {
	if err := NewMessage(Request{ID: id, Type: TypeInputResponse}, conn).Fail(reason); err != nil {
		l.logger.Debug("failed to send rejection", zap.Error(err))
	}
}
