// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for an Ollama-compatible inference server.
package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// maxLineSize bounds a single NDJSON event. Tool call arguments can be large.
const maxLineSize = 4 << 20

// StreamReader handles line-by-line JSON parsing of streaming responses.
type StreamReader struct {
	scanner *bufio.Scanner
	model   string
	idle    *idleTimer
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamReader{scanner: scanner}
}

// Process reads the stream and calls the callback for each chunk.
// Blocks until the final chunk, end of stream, or cancellation.
// Malformed lines are skipped.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.idle != nil {
			s.idle.Reset()
		}

		chunk, err := s.parse(s.scanner.Bytes())
		if err != nil {
			return err
		}
		if chunk == nil {
			continue
		}
		callback(*chunk)
		if chunk.Done {
			return nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return &ClientError{Type: ErrTypeConnection, Message: "stream ended before completion"}
}

// parse decodes one NDJSON line. A nil chunk with nil error means the line
// carried nothing usable.
func (s *StreamReader) parse(line []byte) (*StreamChunk, error) {
	if len(line) == 0 {
		return nil, nil
	}

	var response ChatResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, nil
	}
	if response.Error != "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: response.Error}
	}
	if response.Model != "" {
		s.model = response.Model
	}

	chunk := response.AsChunk()
	chunk.Model = s.model
	chunk.Done = response.Done
	return &chunk, nil
}

// GetModel returns the model name from the stream.
func (s *StreamReader) GetModel() string {
	return s.model
}

// idleTimer cancels a stream that has gone quiet.
type idleTimer struct {
	d     time.Duration
	timer *time.Timer
}

func newIdleTimer(d time.Duration, onIdle func()) *idleTimer {
	return &idleTimer{d: d, timer: time.AfterFunc(d, onIdle)}
}

func (t *idleTimer) Reset() { t.timer.Reset(t.d) }

func (t *idleTimer) Stop() { t.timer.Stop() }

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds the counters the server reports with the final chunk,
// plus client-side timing.
type StreamStats struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	TotalDuration      time.Duration
	LoadDuration       time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration

	PromptTokens     int
	CompletionTokens int

	TTFT            time.Duration
	PromptPerSecond float64
	TokensPerSecond float64
}

// NewStreamStats creates a new StreamStats with start time set.
func NewStreamStats() *StreamStats {
	return &StreamStats{StartTime: time.Now()}
}

// RecordFirstToken marks the time of first token arrival.
func (s *StreamStats) RecordFirstToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
}

// Finalize computes final statistics from the last chunk.
func (s *StreamStats) Finalize(chunk StreamChunk) {
	s.EndTime = time.Now()
	s.TotalDuration = chunk.TotalDuration
	s.LoadDuration = chunk.LoadDuration
	s.PromptEvalDuration = chunk.PromptEvalDuration
	s.EvalDuration = chunk.EvalDuration
	s.PromptTokens = chunk.PromptTokens
	s.CompletionTokens = chunk.CompletionTokens

	s.PromptPerSecond = rate(s.PromptTokens, s.PromptEvalDuration)
	s.TokensPerSecond = rate(s.CompletionTokens, s.EvalDuration)
}

func rate(count int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(count) / d.Seconds()
}

// Format returns the single status line shown after a response.
func (s *StreamStats) Format() string {
	return "prompt " + formatStatsInt(s.PromptTokens) + " tok @ " +
		formatStatsFloat(s.PromptPerSecond) + " tok/s | " +
		"generated " + formatStatsInt(s.CompletionTokens) + " tok @ " +
		formatStatsFloat(s.TokensPerSecond) + " tok/s | " +
		"load " + formatStatsDuration(s.LoadDuration.Seconds()) + " | " +
		"total " + formatStatsDuration(s.TotalDuration.Seconds())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func formatStatsInt(n int) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	if negative {
		return "-" + string(digits)
	}
	return string(digits)
}

// formatStatsFloat formats a float with one decimal place.
func formatStatsFloat(f float64) string {
	whole := int(f)
	frac := int((f-float64(whole))*10 + 0.5)
	if frac >= 10 {
		whole++
		frac = 0
	}
	if frac < 0 {
		frac = -frac
	}
	return formatStatsInt(whole) + "." + formatStatsInt(frac)
}

func formatStatsDuration(seconds float64) string {
	if seconds < 1 {
		return formatStatsInt(int(seconds*1000)) + "ms"
	}
	return formatStatsFloat(seconds) + "s"
}
