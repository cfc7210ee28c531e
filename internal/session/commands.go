// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jeranaias/docchat/internal/commands"
	"github.com/jeranaias/docchat/internal/docs"
	"github.com/jeranaias/docchat/internal/export"
	"github.com/jeranaias/docchat/internal/fetch"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/storage"
	"github.com/jeranaias/docchat/internal/switches"
	"github.com/jeranaias/docchat/internal/tools"
	"github.com/jeranaias/docchat/internal/util"
)

const completionTimeout = 2 * time.Second

var (
	errNoStore    = errors.New("retrieval is not available")
	errNoWatcher  = errors.New("file watching is not available")
	errNoSessions = errors.New("session storage is not available")
)

// bindCommands attaches the session's handlers to the builtin commands.
func (s *Session) bindCommands() error {
	handlers := map[string]commands.Handler{
		"/help":        s.cmdHelp,
		"/quit":        func(context.Context, commands.Invocation) error { return commands.ErrQuit },
		"/system":      s.cmdSystem,
		"/clear":       s.cmdClear,
		"/drop":        s.cmdDrop,
		"/list":        s.cmdList,
		"/save":        s.cmdSave,
		"/load":        s.cmdLoad,
		"/export":      s.cmdExport,
		"/sessions":    s.cmdSessions,
		"/delete":      s.cmdDelete,
		"/links":       s.cmdLinks,
		"/tokens":      s.cmdTokens,
		"/usage":       s.cmdUsage,
		"/set":         s.cmdSet,
		"/toggle":      s.cmdToggle,
		"/switches":    s.cmdSwitches,
		"/policy":      s.selectorCommand(switches.DocumentPolicy),
		"/think":       s.selectorCommand(switches.ThinkMode),
		"/model":       s.cmdModel,
		"/models":      s.cmdModels,
		"/import":      s.cmdImport,
		"/embed":       s.cmdEmbed,
		"/summarize":   s.cmdSummarize,
		"/find":        s.cmdFind,
		"/collection":  s.cmdCollection,
		"/collections": s.cmdCollections,
		"/sources":     s.cmdSources,
		"/forget":      s.cmdForget,
		"/watch":       s.cmdWatch,
		"/unwatch":     s.cmdUnwatch,
		"/search":      s.cmdSearch,
		"/tools":       s.cmdTools,
		"/tool":        s.cmdTool,
	}
	for name, h := range handlers {
		if err := s.registry.Bind(name, h); err != nil {
			return err
		}
	}
	return nil
}

// newCompleter wires argument completion to the session's state.
func (s *Session) newCompleter() *commands.Completer {
	c := commands.NewCompleter(s.registry)
	c.Models = func() []string {
		ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
		defer cancel()
		models, err := s.client.ListModels(ctx)
		if err != nil {
			return nil
		}
		names := make([]string, len(models))
		for i, m := range models {
			names[i] = m.Name
		}
		return names
	}
	c.Sessions = func() []string {
		if s.sessions == nil {
			return nil
		}
		metas, err := s.sessions.List()
		if err != nil {
			return nil
		}
		names := make([]string, len(metas))
		for i, m := range metas {
			names[i] = m.Name
		}
		return names
	}
	c.Switches = func() []string {
		all := s.set.All()
		names := make([]string, len(all))
		for i, sw := range all {
			names[i] = sw.Name()
		}
		return names
	}
	c.SwitchValues = func(name string) []string {
		sel, err := s.set.Selector(name)
		if err != nil {
			return nil
		}
		return sel.Values()
	}
	c.Tools = func() []string {
		all := s.executor.Registry().All()
		names := make([]string, len(all))
		for i, t := range all {
			names[i] = t.Name
		}
		return names
	}
	c.Collections = func() []string {
		store := s.Store()
		if store == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
		defer cancel()
		infos, err := store.Collections(ctx)
		if err != nil {
			return nil
		}
		names := make([]string, len(infos))
		for i, info := range infos {
			names[i] = info.Name
		}
		return names
	}
	return c
}

// confirm asks a yes/no question on the terminal. Socket messages cannot
// be confirmed and are declined.
func (s *Session) confirm(question string) bool {
	if s.fromSocket || s.term == nil {
		return false
	}
	answer, err := s.term.ask(question + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// intArg parses optional argument i, returning def when it is absent.
func intArg(inv commands.Invocation, i, def int) int {
	if n, err := strconv.Atoi(inv.Arg(i)); err == nil {
		return n
	}
	return def
}

// =============================================================================
// CONVERSATION
// =============================================================================

func (s *Session) cmdHelp(_ context.Context, inv commands.Invocation) error {
	if name := inv.Arg(0); name != "" {
		text, err := s.registry.HelpFor(name)
		if err != nil {
			return err
		}
		s.println(text)
		return nil
	}
	s.println(s.registry.Help())
	return nil
}

func (s *Session) cmdSystem(_ context.Context, inv commands.Invocation) error {
	s.list.SetSystemPrompt(inv.Raw)
	s.okf("system prompt set")
	return nil
}

func (s *Session) cmdClear(context.Context, commands.Invocation) error {
	s.list.Clear()
	s.pendingImages = nil
	s.pendingText = nil
	s.okf("conversation cleared")
	return nil
}

func (s *Session) cmdDrop(_ context.Context, inv commands.Invocation) error {
	n, err := s.list.Drop(intArg(inv, 0, 1))
	if err != nil {
		return err
	}
	s.okf("dropped %d exchanges", n)
	return nil
}

func (s *Session) cmdList(_ context.Context, inv commands.Invocation) error {
	msgs := s.list.List(intArg(inv, 0, 0))
	if len(msgs) == 0 {
		s.infof("no messages")
		return nil
	}
	s.renderMessages(msgs)
	return nil
}

func (s *Session) cmdSave(_ context.Context, inv commands.Invocation) error {
	if s.sessions == nil {
		return errNoSessions
	}
	path := s.sessions.Resolve(inv.Arg(0))
	if storage.Exists(path) && !s.confirm(fmt.Sprintf("%s exists. Overwrite?", path)) {
		return fmt.Errorf("%w: %s", model.ErrFileExists, path)
	}
	if err := s.list.Save(path, true); err != nil {
		return err
	}
	s.okf("saved %d messages to %s", s.list.Len(), path)
	return nil
}

func (s *Session) cmdExport(_ context.Context, inv commands.Invocation) error {
	path := util.ExpandHome(inv.Arg(0))
	conv := export.Conversation{Model: s.Model(), Messages: s.list.List(0)}
	if _, err := export.ForPath(path, nil); err != nil {
		return err
	}
	if storage.Exists(path) && !s.confirm(fmt.Sprintf("%s exists. Overwrite?", path)) {
		return fmt.Errorf("%w: %s", model.ErrFileExists, path)
	}
	opts := export.DefaultOptions()
	opts.IncludeThinking = s.set.Value(switches.Thinking) != switches.ThinkingHide
	if err := export.WriteFile(path, conv, opts); err != nil {
		return err
	}
	s.okf("exported %d messages to %s", len(conv.Messages), path)
	return nil
}

func (s *Session) cmdLoad(_ context.Context, inv commands.Invocation) error {
	if s.sessions == nil {
		return errNoSessions
	}
	path := s.sessions.Resolve(inv.Arg(0))
	if !storage.Exists(path) {
		return fmt.Errorf("%w: %s", model.ErrFileMissing, path)
	}
	if hasExchanges(s.list) && !s.confirm("Replace the current conversation?") {
		s.infof("load cancelled")
		return nil
	}
	if err := s.list.Load(path); err != nil {
		return err
	}
	s.pendingImages = nil
	s.pendingText = nil
	s.okf("loaded %d messages from %s", s.list.Len(), path)
	return nil
}

// hasExchanges reports whether list holds anything besides a system prompt.
func hasExchanges(list *model.MessageList) bool {
	for _, m := range list.List(0) {
		if m.Role != model.RoleSystem {
			return true
		}
	}
	return false
}

func (s *Session) cmdSessions(context.Context, commands.Invocation) error {
	if s.sessions == nil {
		return errNoSessions
	}
	metas, err := s.sessions.List()
	if err != nil {
		return err
	}
	s.println(storage.FormatSessionList(metas))
	return nil
}

func (s *Session) cmdDelete(_ context.Context, inv commands.Invocation) error {
	if s.sessions == nil {
		return errNoSessions
	}
	name := inv.Arg(0)
	if !s.confirm(fmt.Sprintf("Delete %s?", s.sessions.Resolve(name))) {
		s.infof("delete cancelled")
		return nil
	}
	if err := s.sessions.Delete(name); err != nil {
		return err
	}
	s.okf("deleted %s", name)
	return nil
}

func (s *Session) cmdLinks(_ context.Context, inv commands.Invocation) error {
	if s.links.Len() == 0 {
		s.infof("no links yet")
		return nil
	}
	fmt.Fprint(s.out, s.links.Format(intArg(inv, 0, 0)))
	return nil
}

func (s *Session) cmdTokens(context.Context, commands.Invocation) error {
	used := s.tokenizer.Count(s.list.Snapshot(s.decorator()))
	if limit := s.cfg.Server.NumCtx; limit > 0 {
		s.infof("%s", numbers.Sprintf("about %d of %d context tokens (%.0f%%)", used, limit, 100*float64(used)/float64(limit)))
		return nil
	}
	s.infof("%s", numbers.Sprintf("about %d tokens", used))
	return nil
}

func (s *Session) cmdUsage(context.Context, commands.Invocation) error {
	totals := s.usage.Totals()
	if len(totals) == 0 {
		s.infof("no replies yet")
		return nil
	}
	s.println(s.styles.dim.Render("since " + s.usage.Since().Format("15:04")))
	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	var prompt, completion int
	for _, t := range totals {
		prompt += t.PromptTokens
		completion += t.CompletionTokens
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Model,
			numbers.Sprintf("%d replies", t.Replies),
			numbers.Sprintf("%d in, %d out, %.1f tok/s", t.PromptTokens, t.CompletionTokens, t.TokensPerSecond()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(totals) > 1 {
		s.infof("%s", numbers.Sprintf("total %d in, %d out", prompt, completion))
	}
	if last := s.usage.Recent(1); len(last) == 1 {
		u := last[0]
		s.infof("%s", numbers.Sprintf("last reply: %d in, %d out, first token after %s",
			u.PromptTokens, u.CompletionTokens, u.TTFT.Round(time.Millisecond)))
	}
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *Session) cmdSet(_ context.Context, inv commands.Invocation) error {
	sel, err := s.set.Selector(inv.Arg(0))
	if err != nil {
		if _, gerr := s.set.Get(inv.Arg(0)); gerr == nil {
			return fmt.Errorf("%w; use /toggle %s", err, inv.Arg(0))
		}
		return err
	}
	if err := sel.Set(inv.Arg(1)); err != nil {
		return err
	}
	s.okf("%s", sel.Describe())
	return nil
}

func (s *Session) cmdToggle(_ context.Context, inv commands.Invocation) error {
	sw, err := s.set.Get(inv.Arg(0))
	if err != nil {
		return err
	}
	if err := sw.Toggle(); err != nil {
		return err
	}
	s.okf("%s", sw.Describe())
	if sw.Name() == switches.Voice && sw.IsOn() && s.speaker == nil {
		s.warnf("no voice command is configured; replies will not be spoken")
	}
	return nil
}

func (s *Session) cmdSwitches(context.Context, commands.Invocation) error {
	for _, sw := range s.set.All() {
		s.println("  " + sw.Describe())
	}
	return nil
}

// selectorCommand sets one selector from the first argument.
func (s *Session) selectorCommand(name string) commands.Handler {
	return func(_ context.Context, inv commands.Invocation) error {
		sel, err := s.set.Selector(name)
		if err != nil {
			return err
		}
		if err := sel.Set(inv.Arg(0)); err != nil {
			return err
		}
		s.okf("%s", sel.Describe())
		return nil
	}
}

// =============================================================================
// MODELS
// =============================================================================

func (s *Session) cmdModel(ctx context.Context, inv commands.Invocation) error {
	name := inv.Arg(0)
	if name == "" {
		s.infof("model: %s", s.Model())
		return nil
	}
	if !s.client.ModelExists(ctx, name) {
		return fmt.Errorf("model %s is not installed; run: ollama pull %s", name, name)
	}
	s.client.SetModel(name)
	s.okf("model: %s", name)
	return nil
}

func (s *Session) cmdModels(ctx context.Context, _ commands.Invocation) error {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		s.infof("no models installed")
		return nil
	}
	current := s.Model()
	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	for _, m := range models {
		mark := " "
		if m.Name == current {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n", mark, m.Name, m.FormatSize(), m.Details.ParameterSize, m.ModifiedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (s *Session) cmdImport(ctx context.Context, inv commands.Invocation) error {
	source, err := s.links.Expand(inv.Arg(0))
	if err != nil {
		return err
	}
	out, err := s.resolver.ResolveWith(ctx, switches.PolicyImporting, source, nil)
	if err != nil {
		return err
	}
	if out.Warning != "" {
		s.warnf("%s", out.Warning)
	}
	switch out.Action {
	case docs.ActionImage:
		s.pendingImages = append(s.pendingImages, source)
		s.okf("image %s will be sent with your next message", source)
	case docs.ActionImported:
		s.pendingText = append(s.pendingText, out.Text)
		s.okf("%s will be sent with your next message", source)
	}
	return nil
}

func (s *Session) cmdEmbed(ctx context.Context, inv commands.Invocation) error {
	if s.Store() == nil {
		return errNoStore
	}
	source, err := s.links.Expand(inv.Arg(0))
	if err != nil {
		return err
	}
	out, err := s.resolver.Embed(ctx, source, docs.Extract(inv.Raw).Tags)
	if err != nil {
		return err
	}
	s.okf("embedded %s (%d chunks) into %s", source, out.Chunks, s.Store().Collection())
	return nil
}

func (s *Session) cmdSummarize(ctx context.Context, inv commands.Invocation) error {
	source, err := s.links.Expand(inv.Arg(0))
	if err != nil {
		return err
	}
	name, text, err := s.resolver.ReadText(ctx, source)
	if err != nil {
		return err
	}
	prompt, err := docs.FormatSummary(name, text, intArg(inv, 1, s.cfg.Chat.SummaryWords))
	if err != nil {
		return err
	}
	_, err = s.chat(ctx, prompt, false)
	return err
}

func (s *Session) cmdFind(ctx context.Context, inv commands.Invocation) error {
	store := s.Store()
	if store == nil {
		return errNoStore
	}
	ex := docs.Extract(inv.Raw)
	query := stripTags(inv.Raw)
	if query == "" {
		return errors.New("find needs a query besides tags")
	}
	records, err := store.FindWhere(ctx, query, ex.Tags, s.cfg.Retrieval.Results)
	if err != nil {
		return err
	}
	s.println(tools.FormatRecords(records))
	return nil
}

// stripTags removes #tag words from text.
func stripTags(text string) string {
	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if !strings.HasPrefix(w, "#") {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func (s *Session) cmdCollection(_ context.Context, inv commands.Invocation) error {
	store := s.Store()
	if store == nil {
		return errNoStore
	}
	if name := inv.Arg(0); name != "" {
		if err := store.SetCollection(name); err != nil {
			return err
		}
	}
	s.infof("collection: %s", store.Collection())
	return nil
}

func (s *Session) cmdCollections(ctx context.Context, _ commands.Invocation) error {
	store := s.Store()
	if store == nil {
		return errNoStore
	}
	infos, err := store.Collections(ctx)
	if err != nil {
		return err
	}
	current := store.Collection()
	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	for _, info := range infos {
		mark := " "
		if info.Name == current {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n", mark, info.Name, info.Model,
			numbers.Sprintf("%d sources, %d chunks", info.Sources, info.Chunks))
	}
	return tw.Flush()
}

func (s *Session) cmdSources(ctx context.Context, _ commands.Invocation) error {
	store := s.Store()
	if store == nil {
		return errNoStore
	}
	infos, err := store.Sources(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		s.infof("collection %s is empty", store.Collection())
		return nil
	}
	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	for _, info := range infos {
		tags := ""
		for _, t := range info.Tags {
			tags += " #" + t
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", util.TruncateWidth(info.Source, 60),
			numbers.Sprintf("%d chunks", info.Chunks), info.AddedAt.Format("2006-01-02 15:04"), strings.TrimSpace(tags))
	}
	return tw.Flush()
}

func (s *Session) cmdForget(ctx context.Context, inv commands.Invocation) error {
	store := s.Store()
	if store == nil {
		return errNoStore
	}
	source, err := s.links.Expand(inv.Arg(0))
	if err != nil {
		return err
	}
	n, err := store.Delete(ctx, fetch.Normalize(source))
	if err != nil {
		return err
	}
	if n == 0 {
		s.infof("%s is not in %s", source, store.Collection())
		return nil
	}
	s.okf("removed %d chunks of %s", n, source)
	return nil
}

func (s *Session) cmdWatch(ctx context.Context, inv commands.Invocation) error {
	if s.watcher == nil {
		return errNoWatcher
	}
	if inv.Arg(0) == "" {
		watched := s.watcher.Watched()
		if len(watched) == 0 {
			s.infof("no watched files")
		}
		for _, path := range watched {
			s.println("  " + path)
		}
		return nil
	}
	if s.Store() == nil {
		return errNoStore
	}

	path, err := filepath.Abs(util.ExpandHome(inv.Arg(0)))
	if err != nil {
		return err
	}
	tags := docs.Extract(inv.Raw).Tags
	if err := s.watcher.Add(path, tags); err != nil {
		return err
	}
	if _, err := s.resolver.Embed(ctx, path, tags); err != nil {
		return err
	}
	s.okf("watching %s", path)
	return nil
}

func (s *Session) cmdUnwatch(_ context.Context, inv commands.Invocation) error {
	if s.watcher == nil {
		return errNoWatcher
	}
	path, err := filepath.Abs(util.ExpandHome(inv.Arg(0)))
	if err != nil {
		return err
	}
	if !s.watcher.Remove(path) {
		return fmt.Errorf("%s is not watched", path)
	}
	s.okf("stopped watching %s", path)
	return nil
}

// =============================================================================
// TOOLS
// =============================================================================

func (s *Session) cmdSearch(ctx context.Context, inv commands.Invocation) error {
	result := s.executor.Execute(ctx, tools.Call{
		Name:   "web_search",
		Params: map[string]interface{}{"query": inv.Raw},
	})
	if !result.Success {
		return errors.New(result.Error)
	}
	s.println(result.Output)
	s.links.Add(docs.FindURLs(result.Output)...)
	return nil
}

func (s *Session) cmdTools(context.Context, commands.Invocation) error {
	all := s.executor.Registry().All()
	if len(all) == 0 {
		s.infof("no tools available")
		return nil
	}
	if !s.set.IsOn(switches.Tools) {
		s.infof("tools are off; the model will not be offered these")
	}
	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	for _, t := range all {
		fmt.Fprintf(tw, "  %s\t%s\n", t.Name, t.ShortDescription())
	}
	return tw.Flush()
}

func (s *Session) cmdTool(ctx context.Context, inv commands.Invocation) error {
	call, err := tools.ParseCall(inv.Arg(0), inv.Rest(1))
	if err != nil {
		return err
	}
	result := s.executor.Execute(ctx, call)
	if !result.Success {
		return errors.New(result.Error)
	}
	s.println(result.Text())
	s.links.Add(docs.FindURLs(result.Output)...)
	return nil
}
