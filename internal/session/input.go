// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/docchat/internal/ipc"
)

// =============================================================================
// INPUT
// =============================================================================

// InputKind tags what the loop received.
type InputKind int

const (
	// InputLine is a line typed at the prompt
	InputLine InputKind = iota

	// InputInterrupted is Ctrl-C at the prompt
	InputInterrupted

	// InputSocket is a message taken from the mailbox
	InputSocket

	// InputEOF is Ctrl-D or a closed terminal
	InputEOF
)

// String returns the string representation of the kind.
func (k InputKind) String() string {
	switch k {
	case InputLine:
		return "line"
	case InputInterrupted:
		return "interrupted"
	case InputSocket:
		return "socket"
	case InputEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Input is one thing for the loop to act on.
type Input struct {
	Kind InputKind
	Text string

	// Socket is set for InputSocket
	Socket *ipc.Message
}

// =============================================================================
// LINE READER
// =============================================================================

// LineReader reads edited lines from the user. Prompt returns
// liner.ErrPromptAborted on Ctrl-C and io.EOF on Ctrl-D.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// completerSetter is implemented by readers that support Tab completion.
type completerSetter interface {
	SetCompleter(fn func(line string) []string)
}

// TerminalReader is the liner-backed LineReader used on a real terminal.
type TerminalReader struct {
	state       *liner.State
	historyFile string
}

// NewTerminalReader puts the terminal into line-editing mode and loads the
// history file when there is one.
func NewTerminalReader(historyFile string) *TerminalReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetTabCompletionStyle(liner.TabPrints)

	r := &TerminalReader{state: state, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = state.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

// Prompt implements LineReader.
func (r *TerminalReader) Prompt(prompt string) (string, error) {
	return r.state.Prompt(prompt)
}

// AppendHistory implements LineReader.
func (r *TerminalReader) AppendHistory(line string) {
	r.state.AppendHistory(line)
}

// SetCompleter installs fn as the Tab completer.
func (r *TerminalReader) SetCompleter(fn func(line string) []string) {
	r.state.SetCompleter(fn)
}

// Close writes the history file with owner-only permissions and restores
// the terminal.
func (r *TerminalReader) Close() error {
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = r.state.WriteHistory(f)
				f.Close()
			}
		}
	}
	return r.state.Close()
}

// =============================================================================
// TERMINAL GOROUTINE
// =============================================================================

type readResult struct {
	line string
	err  error
}

// terminal runs Prompt on its own goroutine so the loop can select on typed
// lines and socket messages together. A prompt is only shown when the loop
// asks for one, and at most one is outstanding.
type terminal struct {
	reader   LineReader
	requests chan string
	results  chan readResult
	done     chan struct{}

	// outstanding is owned by the loop goroutine
	outstanding bool
}

func startTerminal(reader LineReader) *terminal {
	t := &terminal{
		reader:   reader,
		requests: make(chan string, 1),
		results:  make(chan readResult),
		done:     make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *terminal) run() {
	for {
		select {
		case prompt := <-t.requests:
			line, err := t.reader.Prompt(prompt)
			select {
			case t.results <- readResult{line: line, err: err}:
			case <-t.done:
				return
			}
		case <-t.done:
			return
		}
	}
}

// request shows prompt unless a prompt is already waiting for the user.
func (t *terminal) request(prompt string) {
	if t.outstanding {
		return
	}
	t.outstanding = true
	t.requests <- prompt
}

// received marks the outstanding prompt answered and classifies the result.
func (t *terminal) received(r readResult) Input {
	t.outstanding = false
	switch {
	case r.err == nil:
		return Input{Kind: InputLine, Text: r.line}
	case errors.Is(r.err, liner.ErrPromptAborted):
		return Input{Kind: InputInterrupted}
	default:
		return Input{Kind: InputEOF}
	}
}

// ask prompts synchronously. It fails when a prompt is already showing,
// which happens while a socket message is being handled.
func (t *terminal) ask(prompt string) (string, error) {
	if t.outstanding {
		return "", errPromptBusy
	}
	t.request(prompt)
	select {
	case r := <-t.results:
		in := t.received(r)
		if in.Kind != InputLine {
			return "", io.EOF
		}
		return strings.TrimSpace(in.Text), nil
	case <-t.done:
		return "", io.EOF
	}
}

func (t *terminal) stop() {
	close(t.done)
}

var errPromptBusy = errors.New("terminal prompt is busy")
