// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice speaks reply text through an external text-to-speech
// command such as espeak, say or piper.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/config"
)

// ErrNoCommand is returned when voice output is enabled without a command.
var ErrNoCommand = errors.New("no voice command configured")

// ErrClosed is returned by Speak and Flush after Close.
var ErrClosed = errors.New("voice output closed")

// queueSize bounds the sentences waiting to be spoken.
const queueSize = 32

// Speaker feeds complete sentences to the voice command, one process per
// sentence, in order. Commands run on a background goroutine so streaming
// is never blocked by audio playback.
type Speaker struct {
	logger *zap.Logger
	say    func(ctx context.Context, text string) error

	mu      sync.Mutex
	pending strings.Builder
	err     error
	closed  bool

	queue  chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a speaker for the configured command.
func New(cfg config.VoiceConfig, logger *zap.Logger) (*Speaker, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, ErrNoCommand
	}
	if _, err := exec.LookPath(cfg.Command); err != nil {
		return nil, fmt.Errorf("voice command %q: %w", cfg.Command, err)
	}
	args := append([]string(nil), cfg.Args...)
	return newSpeaker(func(ctx context.Context, text string) error {
		return run(ctx, cfg.Command, args, text)
	}, logger), nil
}

func newSpeaker(say func(ctx context.Context, text string) error, logger *zap.Logger) *Speaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Speaker{
		logger: logger,
		say:    say,
		queue:  make(chan string, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Speak buffers text and queues every complete sentence. It returns the
// first error the command has reported, after which the speaker stays
// failed.
func (s *Speaker) Speak(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(); err != nil {
		return err
	}
	s.pending.WriteString(text)

	buf := s.pending.String()
	cut := lastBoundary(buf)
	if cut <= 0 {
		return nil
	}
	s.pending.Reset()
	s.pending.WriteString(buf[cut:])
	return s.enqueueLocked(buf[:cut])
}

// Flush queues whatever text is still buffered.
func (s *Speaker) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(); err != nil {
		return err
	}
	rest := s.pending.String()
	s.pending.Reset()
	return s.enqueueLocked(rest)
}

// Close stops playback and waits for the worker to exit.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Speaker) checkLocked() error {
	if s.closed {
		return ErrClosed
	}
	return s.err
}

func (s *Speaker) enqueueLocked(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	select {
	case s.queue <- text:
	default:
		s.logger.Debug("voice queue full, dropping sentence")
	}
	return nil
}

func (s *Speaker) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case text := <-s.queue:
			if err := s.say(s.ctx, text); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.logger.Warn("voice command failed", zap.Error(err))
				s.mu.Lock()
				if s.err == nil {
					s.err = err
				}
				s.mu.Unlock()
			}
		}
	}
}

// lastBoundary returns the index just past the last sentence end in s, or 0.
func lastBoundary(s string) int {
	for i := len(s) - 1; i > 0; i-- {
		switch s[i] {
		case '\n':
			return i + 1
		case ' ', '\t':
			switch s[i-1] {
			case '.', '!', '?', ':', ';':
				return i + 1
			}
		}
	}
	return 0
}

func run(ctx context.Context, name string, args []string, text string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
