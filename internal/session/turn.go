// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/docs"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/ollama"
	"github.com/jeranaias/docchat/internal/retrieval"
	"github.com/jeranaias/docchat/internal/stream"
	"github.com/jeranaias/docchat/internal/switches"
	"github.com/jeranaias/docchat/internal/tools"
)

const defaultMaxToolRounds = 5

// =============================================================================
// CHAT TURN
// =============================================================================

// chat appends text as a user message and runs the model until it answers
// without tool calls. With parse set, references in text are resolved and
// retrieval context is looked up first.
func (s *Session) chat(ctx context.Context, text string, parse bool) (string, error) {
	content := text
	images := s.pendingImages
	var records []retrieval.Record

	if parse {
		res := s.resolver.ProcessInput(ctx, text)
		s.report(res)
		content = res.Content
		images = append(images, res.Images...)
		records = res.Context
		s.links.Add(res.Links...)
	}
	if len(s.pendingText) > 0 {
		content = content + "\n\n" + strings.Join(s.pendingText, "\n\n")
	}
	s.pendingImages = nil
	s.pendingText = nil

	msg := model.NewMessage(model.RoleUser, content)
	msg.Images = images
	if err := s.list.Append(msg); err != nil {
		return "", err
	}
	return s.converse(ctx, records)
}

// report prints what resolving the input's references did.
func (s *Session) report(res docs.Result) {
	for _, out := range res.Outcomes {
		switch out.Action {
		case docs.ActionEmbedded:
			s.infof("embedded %s (%d chunks)", out.Source, out.Chunks)
		case docs.ActionImported, docs.ActionSummarized, docs.ActionImage:
			s.infof("%s %s", out.Action, out.Source)
		}
	}
	for _, w := range res.Warnings {
		s.warnf("%s", w)
	}
	for _, err := range res.Errors {
		s.errorf("%v", err)
	}
	if n := len(res.Context); n > 0 {
		s.infof("retrieved %d passages", n)
	}
}

// converse streams replies and runs requested tools, up to the configured
// number of tool rounds. It returns the content of the last reply.
func (s *Session) converse(ctx context.Context, records []retrieval.Record) (string, error) {
	maxRounds := s.cfg.Chat.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}

	for round := 0; ; round++ {
		offerTools := s.set.IsOn(switches.Tools) && s.executor.Registry().Len() > 0 && round < maxRounds
		res, err := s.reply(ctx, records, offerTools)
		if err != nil {
			return res.Content, err
		}
		s.links.Add(docs.FindURLs(res.Content)...)

		if len(res.ToolCalls) == 0 {
			return res.Content, nil
		}
		if !offerTools {
			s.warnf("the model asked for tools after %d rounds; stopping", round)
			return res.Content, nil
		}
		for _, call := range tools.FromOllama(res.ToolCalls) {
			s.runTool(ctx, call)
		}
	}
}

// runTool executes one call and records its result for the model.
func (s *Session) runTool(ctx context.Context, call tools.Call) {
	s.println(s.styles.dim.Render("-> " + call.Name))
	result := s.executor.Execute(ctx, call)
	if !result.Success {
		s.warnf("%s: %s", call.Name, result.Error)
	}
	if err := s.list.Append(model.NewToolMessage(call.Name, result.Text())); err != nil {
		s.logger.Warn("failed to record tool result", zap.Error(err))
	}
}

// reply sends the conversation and renders one assistant reply.
func (s *Session) reply(ctx context.Context, records []retrieval.Record, offerTools bool) (stream.Result, error) {
	req := ollama.ChatRequest{
		Model:    s.Model(),
		Messages: s.wireMessages(ctx, records),
		Stream:   s.set.IsOn(switches.Stream),
		Think:    thinkValue(s.set.Value(switches.ThinkMode)),
		Options:  s.options(),
	}
	if offerTools {
		req.Tools = s.executor.Registry().OllamaTools()
	}

	h := stream.New(s.out, s.list, s.streamOptions(), s.logger)
	s.active.Store(h)
	defer s.active.Store(nil)

	var chatter stream.Chatter = s.client
	if !req.Stream {
		chatter = oneShot{s.client}
	}

	s.println()
	res, err := h.Run(ctx, chatter, req)
	if res.Completed && res.Stats != nil {
		s.usage.Record(req.Model, res.Stats)
	}
	if n := h.Interrupted(); n > 0 {
		s.logger.Info("interrupts ignored while streaming", zap.Int("count", n))
	}
	if err != nil {
		return res, fmt.Errorf("chat with %s: %w", req.Model, err)
	}
	return res, nil
}

// wireMessages converts the conversation snapshot to the wire form. Image
// references are encoded and retrieval context goes in a system message
// right before the last user message.
func (s *Session) wireMessages(ctx context.Context, records []retrieval.Record) []ollama.Message {
	snapshot := s.list.Snapshot(s.decorator())
	out := make([]ollama.Message, 0, len(snapshot)+1)

	lastUser := -1
	for i, m := range snapshot {
		if m.Role == model.RoleUser {
			lastUser = i
		}
	}

	for i, m := range snapshot {
		if i == lastUser {
			if ctxText := docs.FormatContext(records); ctxText != "" {
				out = append(out, ollama.NewSystemMessage(ctxText))
			}
		}
		out = append(out, m.Wire(s.encodeImages(ctx, m.Images)))
	}
	return out
}

// encodeImages returns base64 data for refs, caching by reference.
func (s *Session) encodeImages(ctx context.Context, refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	var missing []string
	for _, ref := range refs {
		if _, ok := s.images[ref]; !ok {
			missing = append(missing, ref)
		}
	}
	if len(missing) > 0 {
		// EncodeImages skips failures, so pair results by fetching one at a time
		for _, ref := range missing {
			data, errs := s.resolver.EncodeImages(ctx, []string{ref})
			for _, err := range errs {
				s.warnf("image %v", err)
			}
			if len(data) == 1 {
				s.images[ref] = data[0]
			}
		}
	}

	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if data, ok := s.images[ref]; ok {
			out = append(out, data)
		}
	}
	return out
}

func (s *Session) options() *ollama.Options {
	server := s.cfg.Server
	if server.Temperature == 0 && server.NumCtx == 0 && server.Seed == 0 {
		return nil
	}
	return &ollama.Options{
		Temperature: server.Temperature,
		NumCtx:      server.NumCtx,
		Seed:        server.Seed,
	}
}

func (s *Session) streamOptions() stream.Options {
	redraw := s.cfg.Chat.RedrawLines
	if redraw <= 0 {
		redraw = max(s.height-2, 1)
	}
	opts := stream.Options{
		Markdown:    s.set.IsOn(switches.Markdown),
		Thinking:    s.set.Value(switches.Thinking),
		RedrawLines: redraw,
		Width:       s.width,
		Style:       glamourStyle(s.profile),
		Profile:     s.profile,
		Stats:       true,
		Header:      s.roleHeader(model.RoleAssistant, ""),
	}
	if s.speaker != nil && s.set.IsOn(switches.Voice) {
		opts.Speaker = s.speaker
	}
	return opts
}

// thinkValue maps the think_mode selection to the request's think field.
func thinkValue(mode string) any {
	switch mode {
	case "", "off":
		return false
	case "on":
		return true
	default:
		return mode
	}
}

// oneShot adapts the non-streaming chat call to stream.Chatter.
type oneShot struct {
	client *ollama.Client
}

func (o oneShot) ChatStream(ctx context.Context, req ollama.ChatRequest, cb ollama.StreamCallback) error {
	resp, err := o.client.Chat(ctx, req)
	if err != nil {
		return err
	}
	cb(resp.AsChunk())
	return nil
}
