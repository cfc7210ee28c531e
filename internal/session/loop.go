// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/commands"
	"github.com/jeranaias/docchat/internal/ipc"
	"github.com/jeranaias/docchat/internal/util"
)

// =============================================================================
// LOOP
// =============================================================================

// Run reads and handles input until the user quits, the terminal closes or
// ctx is cancelled. Errors of individual turns are printed, never returned.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if s.listener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.listener.Serve(ctx); err != nil {
				s.logger.Error("socket listener stopped", zap.Error(err))
			}
		}()
	}
	if s.interrupts != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.forwardInterrupts(ctx)
		}()
	}

	s.term = startTerminal(s.reader)

	for {
		in, err := s.next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if s.iterate(ctx, in) {
			return nil
		}
	}
}

// next waits for the next input: a pending socket message, a typed line,
// or a mailbox signal.
func (s *Session) next(ctx context.Context) (Input, error) {
	for {
		if msg := s.box.Take(); msg != nil {
			return Input{Kind: InputSocket, Text: msg.Content, Socket: msg}, nil
		}

		s.term.request(s.prompt())

		select {
		case <-ctx.Done():
			return Input{}, ctx.Err()
		case r := <-s.term.results:
			return s.term.received(r), nil
		case <-s.box.Signal():
			// the message is taken at the top of the loop
		}
	}
}

// iterate handles one input and reports whether the session should end.
// A socket message is always finished before the next iteration starts.
func (s *Session) iterate(ctx context.Context, in Input) (quit bool) {
	if in.Socket != nil {
		defer s.box.Done(in.Socket)
	}

	switch in.Kind {
	case InputEOF:
		s.println()
		return true

	case InputInterrupted:
		s.println(s.styles.dim.Render("^C"))
		return false

	case InputSocket:
		return s.handleSocket(ctx, in.Socket)

	default:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return false
		}
		s.reader.AppendHistory(text)
		quit, _, _ = s.handle(ctx, text, true)
		return quit
	}
}

// handleSocket runs a socket message and answers it when the sender waits
// for a reply.
func (s *Session) handleSocket(ctx context.Context, msg *ipc.Message) bool {
	s.fromSocket = true
	defer func() { s.fromSocket = false }()

	if s.term.outstanding {
		// a prompt is showing; start on a fresh line
		s.println()
	}
	s.println(s.styles.dim.Render("[socket] " + util.FirstLine(msg.Content)))

	quit, reply, err := s.handle(ctx, strings.TrimSpace(msg.Content), msg.ShouldParse())
	if msg.ExpectsReply() {
		if err != nil {
			_ = msg.Fail(err.Error())
		} else if rerr := msg.Reply(reply); rerr != nil {
			s.logger.Warn("failed to answer socket message", zap.String("id", msg.ID), zap.Error(rerr))
		}
	}
	return quit
}

// handle runs text as a command or a chat turn. parse=false sends text
// verbatim. It returns the assistant's final reply for chat turns.
func (s *Session) handle(ctx context.Context, text string, parse bool) (quit bool, reply string, err error) {
	if parse && commands.IsCommand(text) {
		err = s.registry.Dispatch(ctx, text)
		if errors.Is(err, commands.ErrQuit) {
			return true, "", nil
		}
		if err != nil {
			s.errorf("%v", err)
		}
		return false, "", err
	}

	reply, err = s.chat(ctx, text, parse)
	if err != nil {
		s.errorf("%v", err)
	}
	return false, reply, err
}

// forwardInterrupts notes SIGINT on the reply being streamed. The stream
// is not cancelled.
func (s *Session) forwardInterrupts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-s.interrupts:
			if !ok {
				return
			}
			if h := s.active.Load(); h != nil {
				h.Interrupt()
			} else {
				s.logger.Debug("interrupt outside of a reply")
			}
		}
	}
}
