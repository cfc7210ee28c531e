// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"io"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/ollama"
	"github.com/jeranaias/docchat/internal/switches"
)

// =============================================================================
// TYPES
// =============================================================================

// State is the position of a Handler in the reply lifecycle.
type State int

const (
	AwaitingFirstToken State = iota
	Streaming
	Done
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case AwaitingFirstToken:
		return "awaiting"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Speaker receives answer text as it streams. Flush is called once the
// reply is complete.
type Speaker interface {
	Speak(text string) error
	Flush() error
}

// Chatter is the part of the inference client a Handler drives.
type Chatter interface {
	ChatStream(ctx context.Context, request ollama.ChatRequest, callback ollama.StreamCallback) error
}

// Options configures rendering.
type Options struct {
	// Markdown re-renders the reply with glamour after every fragment
	Markdown bool

	// Thinking is one of switches.ThinkingHide, ThinkingShow, ThinkingInline
	Thinking string

	// RedrawLines bounds the redrawn region; 0 means 24
	RedrawLines int

	// Width is the wrap width; 0 means 80
	Width int

	// Style is a glamour style name; "" picks "dark"
	Style string

	// Profile is the color profile of the output
	Profile termenv.Profile

	// Stats prints the statistics line when the reply completes
	Stats bool

	// Header is printed above the reply
	Header string

	Speaker Speaker
}

// Result is the outcome of one streamed reply.
type Result struct {
	Content   string
	Thinking  string
	ToolCalls []ollama.ToolCall
	Stats     *ollama.StreamStats

	// Completed is true when the server sent its final event
	Completed bool
}

// =============================================================================
// HANDLER
// =============================================================================

// Handler consumes the chunks of one streamed reply. It is not safe for
// concurrent use except for Interrupt.
type Handler struct {
	list   *model.MessageList
	out    *termenv.Output
	opts   Options
	logger *zap.Logger
	md     *glamour.TermRenderer

	state     State
	splitter  thinkSplitter
	segments  []piece
	content   strings.Builder
	thinking  strings.Builder
	toolCalls []ollama.ToolCall
	stats     *ollama.StreamStats
	speaker   Speaker

	// redraw bookkeeping, in terminal lines
	committed int
	drawn     int

	// append-only bookkeeping
	lastThinking bool
	wroteAny     bool

	interrupted atomic.Int32
}

// New creates a handler that records the reply in list and renders to w.
func New(w io.Writer, list *model.MessageList, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RedrawLines <= 0 {
		opts.RedrawLines = 24
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Thinking == "" {
		opts.Thinking = switches.ThinkingShow
	}

	h := &Handler{
		list:    list,
		out:     termenv.NewOutput(w, termenv.WithProfile(opts.Profile)),
		opts:    opts,
		logger:  logger,
		stats:   ollama.NewStreamStats(),
		speaker: opts.Speaker,
	}

	if opts.Markdown {
		style := opts.Style
		if style == "" {
			style = "dark"
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithColorProfile(opts.Profile),
			glamour.WithWordWrap(opts.Width),
		)
		if err != nil {
			logger.Warn("markdown renderer unavailable, printing plain text", zap.Error(err))
			h.opts.Markdown = false
		} else {
			h.md = md
		}
	}
	return h
}

// State returns the current state.
func (h *Handler) State() State {
	return h.state
}

// Interrupt notes a Ctrl-C received while streaming. The stream keeps
// running; the count is reported by Interrupted.
func (h *Handler) Interrupt() {
	h.interrupted.Add(1)
}

// Interrupted returns how many interrupts arrived during the reply.
func (h *Handler) Interrupted() int {
	return int(h.interrupted.Load())
}

// Run sends request through c and handles the streamed reply. The partial
// reply stays in the list when the stream fails.
func (h *Handler) Run(ctx context.Context, c Chatter, request ollama.ChatRequest) (Result, error) {
	err := c.ChatStream(ctx, request, h.Handle)
	return h.Finish(), err
}

// Handle processes one chunk. It has the signature of ollama.StreamCallback.
func (h *Handler) Handle(chunk ollama.StreamChunk) {
	if h.state == Done {
		return
	}
	if chunk.Role != "" && chunk.Role != string(model.RoleAssistant) {
		h.logger.Debug("ignoring non-assistant stream event", zap.String("role", chunk.Role))
		return
	}

	if h.state == AwaitingFirstToken {
		h.list.StartAssistant()
		h.stats.RecordFirstToken()
		h.state = Streaming
		if h.opts.Header != "" {
			h.out.WriteString(h.opts.Header + "\n")
		}
	}

	var pieces []piece
	if chunk.Thinking != "" {
		pieces = append(pieces, piece{text: chunk.Thinking, thinking: true})
	}
	if chunk.Content != "" {
		pieces = append(pieces, h.splitter.split(chunk.Content)...)
	}
	if chunk.Done {
		pieces = append(pieces, h.splitter.flush()...)
	}

	for _, p := range pieces {
		h.record(p)
	}

	if len(chunk.ToolCalls) > 0 {
		h.toolCalls = append(h.toolCalls, chunk.ToolCalls...)
		if err := h.list.SetLastToolCalls(chunk.ToolCalls); err != nil {
			h.logger.Warn("failed to record tool calls", zap.Error(err))
		}
	}

	if len(pieces) > 0 && h.opts.Markdown {
		h.redraw()
	}

	if chunk.Done {
		h.stats.Finalize(chunk)
		h.state = Done
	}
}

// record stores a piece in the list, the view model and the speaker.
func (h *Handler) record(p piece) {
	if p.thinking {
		h.thinking.WriteString(p.text)
		if err := h.list.AppendToLast("", p.text); err != nil {
			h.logger.Warn("failed to append thinking", zap.Error(err))
		}
	} else {
		h.content.WriteString(p.text)
		if err := h.list.AppendToLast(p.text, ""); err != nil {
			h.logger.Warn("failed to append content", zap.Error(err))
		}
		h.speak(p.text)
	}

	if n := len(h.segments); n > 0 && h.segments[n-1].thinking == p.thinking {
		h.segments[n-1].text += p.text
	} else {
		h.segments = append(h.segments, p)
	}

	if !h.opts.Markdown {
		h.appendPlain(p)
	}
}

func (h *Handler) speak(text string) {
	if h.speaker == nil {
		return
	}
	if err := h.speaker.Speak(text); err != nil {
		h.logger.Warn("voice output failed, disabled for this reply", zap.Error(err))
		h.speaker = nil
	}
}

// Finish completes rendering and returns the result. It is safe to call
// after a failed stream.
func (h *Handler) Finish() Result {
	if h.state == Streaming {
		for _, p := range h.splitter.flush() {
			h.record(p)
		}
	}

	if h.opts.Markdown {
		if h.drawn > 0 || len(h.segments) > 0 {
			h.redraw()
		}
	} else if h.wroteAny {
		h.out.WriteString("\n")
	}

	if h.speaker != nil {
		if err := h.speaker.Flush(); err != nil {
			h.logger.Warn("voice output failed", zap.Error(err))
		}
	}

	completed := h.state == Done
	if completed && h.opts.Stats {
		line := wordwrap.String(h.stats.Format(), h.opts.Width)
		h.out.WriteString(h.out.String(line).Faint().String() + "\n")
	}

	return Result{
		Content:   h.content.String(),
		Thinking:  h.thinking.String(),
		ToolCalls: h.toolCalls,
		Stats:     h.stats,
		Completed: completed,
	}
}

// =============================================================================
// RENDERING
// =============================================================================

// appendPlain prints a piece as it arrives.
func (h *Handler) appendPlain(p piece) {
	if p.thinking {
		if h.opts.Thinking == switches.ThinkingHide {
			return
		}
		h.out.WriteString(h.out.String(p.text).Faint().String())
		h.lastThinking = true
		h.wroteAny = true
		return
	}

	if h.lastThinking && h.opts.Thinking == switches.ThinkingShow {
		h.out.WriteString("\n\n")
	}
	h.lastThinking = false
	h.out.WriteString(p.text)
	h.wroteAny = true
}

// redraw clears the region drawn last time and prints the current rendering.
// Lines beyond the last RedrawLines are committed and never touched again.
func (h *Handler) redraw() {
	lines := strings.Split(strings.TrimRight(h.render(), "\n"), "\n")
	if h.committed > len(lines) {
		h.committed = len(lines)
	}

	if h.drawn > 0 {
		h.out.ClearLines(h.drawn)
	}

	tail := lines[h.committed:]
	if len(tail) > 0 {
		h.out.WriteString(strings.Join(tail, "\n") + "\n")
	}

	h.drawn = len(tail)
	if h.drawn > h.opts.RedrawLines {
		h.committed += h.drawn - h.opts.RedrawLines
		h.drawn = h.opts.RedrawLines
	}
}

// render returns the full current rendering of the reply.
func (h *Handler) render() string {
	var thinking, answer strings.Builder
	var inline strings.Builder

	for _, seg := range h.segments {
		if !seg.thinking {
			answer.WriteString(seg.text)
			inline.WriteString(seg.text)
			continue
		}
		thinking.WriteString(seg.text)
		inline.WriteString("\n\n" + quote(seg.text) + "\n\n")
	}

	switch h.opts.Thinking {
	case switches.ThinkingInline:
		return h.markdown(inline.String())
	case switches.ThinkingShow:
		body := h.markdown(answer.String())
		if t := strings.TrimSpace(thinking.String()); t != "" {
			dim := h.out.String(wordwrap.String(t, h.opts.Width)).Faint().String()
			return dim + "\n\n" + body
		}
		return body
	default:
		return h.markdown(answer.String())
	}
}

func (h *Handler) markdown(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	out, err := h.md.Render(s)
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}

func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}
