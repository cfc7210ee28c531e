// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/docchat/internal/ollama"
)

// maxRecords bounds the per-reply history kept for Recent.
const maxRecords = 1000

// Usage is the token usage of one reply.
type Usage struct {
	Time             time.Time
	Model            string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
	TTFT             time.Duration
	TokensPerSecond  float64
}

// Totals sums the usage of one model.
type Totals struct {
	Model            string
	Replies          int
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration

	// EvalDuration is the generation time the server reported
	EvalDuration time.Duration
}

// TokensPerSecond is the average generation speed.
func (t Totals) TokensPerSecond() float64 {
	if t.EvalDuration <= 0 {
		return 0
	}
	return float64(t.CompletionTokens) / t.EvalDuration.Seconds()
}

// Tracker records usage. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	start   time.Time
	recent  []Usage
	byModel map[string]*Totals
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		start:   time.Now(),
		byModel: make(map[string]*Totals),
	}
}

// Record adds the stats of one completed reply. Nil stats are ignored.
func (t *Tracker) Record(model string, stats *ollama.StreamStats) {
	if stats == nil {
		return
	}
	u := Usage{
		Time:             time.Now(),
		Model:            model,
		PromptTokens:     stats.PromptTokens,
		CompletionTokens: stats.CompletionTokens,
		Duration:         stats.TotalDuration,
		TTFT:             stats.TTFT,
		TokensPerSecond:  stats.TokensPerSecond,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.recent = append(t.recent, u)
	if len(t.recent) > maxRecords {
		t.recent = t.recent[len(t.recent)-maxRecords:]
	}

	tot, ok := t.byModel[model]
	if !ok {
		tot = &Totals{Model: model}
		t.byModel[model] = tot
	}
	tot.Replies++
	tot.PromptTokens += u.PromptTokens
	tot.CompletionTokens += u.CompletionTokens
	tot.Duration += u.Duration
	tot.EvalDuration += stats.EvalDuration
}

// Totals returns the per-model sums ordered by model name.
func (t *Tracker) Totals() []Totals {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Totals, 0, len(t.byModel))
	for _, tot := range t.byModel {
		out = append(out, *tot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Recent returns up to n of the latest replies, oldest first; n <= 0
// returns all that are kept.
func (t *Tracker) Recent(n int) []Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := 0
	if n > 0 && n < len(t.recent) {
		start = len(t.recent) - n
	}
	return append([]Usage(nil), t.recent[start:]...)
}

// Since returns when tracking started.
func (t *Tracker) Since() time.Time {
	return t.start
}
