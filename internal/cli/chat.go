// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/docs"
	"github.com/jeranaias/docchat/internal/fetch"
	"github.com/jeranaias/docchat/internal/ipc"
	"github.com/jeranaias/docchat/internal/location"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/ollama"
	"github.com/jeranaias/docchat/internal/retrieval"
	"github.com/jeranaias/docchat/internal/session"
	"github.com/jeranaias/docchat/internal/storage"
	"github.com/jeranaias/docchat/internal/switches"
	"github.com/jeranaias/docchat/internal/tools"
	"github.com/jeranaias/docchat/internal/voice"
)

// watchDebounce is how long a watched file must be quiet before re-embedding.
const watchDebounce = 500 * time.Millisecond

// newClient builds the inference client from the server section.
func newClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:           cfg.Server.URL,
		Timeout:           cfg.Server.Timeout.Duration,
		StreamIdleTimeout: cfg.Server.StreamIdleTimeout.Duration,
		DefaultModel:      cfg.Server.Model,
		KeepAlive:         cfg.Server.KeepAlive,
	})
}

// runChat wires the interactive session and runs it until the user quits.
func (a *app) runChat(cmd *cobra.Command, _ []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	cfg, logger := a.cfg, a.logger
	out := cmd.OutOrStdout()
	profile := GetColorProfile()
	st := NewStyles(out, profile)
	warn := func(format string, args ...any) {
		fmt.Fprintln(out, st.Warning.Render(fmt.Sprintf(format, args...)))
	}

	// closers run in reverse when the session could not take them over
	var closers []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	client := newClient(cfg)
	if err := client.CheckRunning(ctx); err != nil {
		return fmt.Errorf("inference server at %s: %w", cfg.Server.URL, err)
	}
	if err := ensureModel(ctx, client, cfg.Server.Model, cfg.Server.PullMissing, out, st); err != nil {
		return err
	}

	set, err := switches.NewSessionSet(cfg.Switches())
	if err != nil {
		return configError(err)
	}
	fetcher := fetch.New(cfg.Fetch, logger)

	var store retrieval.Store
	sqlite, err := retrieval.Open(cfg.Retrieval, retrieval.NewOllamaEmbedder(client, cfg.Server.EmbedModel), logger)
	if err != nil {
		logger.Warn("retrieval store unavailable", zap.Error(err))
		warn("retrieval is not available: %v", err)
	} else {
		store = sqlite
		defer sqlite.Close()
	}

	resolver, err := docs.NewResolver(cfg, set, fetcher, store, logger)
	if err != nil {
		return configError(err)
	}

	watcher, err := retrieval.NewWatcher(watchDebounce, resolver.Reembed, logger)
	if err != nil {
		logger.Warn("file watching unavailable", zap.Error(err))
		watcher = nil
	} else {
		closers = append(closers, watcher)
	}

	executor := tools.NewExecutor(tools.NewRegistry(tools.Builtins(tools.Deps{
		Config:  cfg,
		Fetcher: fetcher,
		Stores:  resolver,
	})...), logger)

	sessions, err := storage.NewSessionDir(cfg.Chat.SessionsDir)
	if err != nil {
		return err
	}

	box := ipc.NewMailbox(logger)
	listener, err := a.listen(cfg, box, logger)
	if err != nil {
		warn("%v", err)
	} else if listener != nil {
		closers = append(closers, listener)
	}

	deps := session.Deps{
		Config:    cfg,
		Client:    client,
		Switches:  set,
		List:      model.NewMessageList(),
		Resolver:  resolver,
		Executor:  executor,
		Sessions:  sessions,
		Mailbox:   box,
		Listener:  listener,
		Watcher:   watcher,
		Tokenizer: model.NewTokenizer(""),
		Out:       out,
		Profile:   profile,
		Logger:    logger,
	}
	deps.Width, deps.Height = GetTerminalSize()

	speaker, err := voice.New(cfg.Voice, logger)
	switch {
	case err == nil:
		deps.Speaker = speaker
		closers = append(closers, speaker)
	case !errors.Is(err, voice.ErrNoCommand):
		warn("voice output is not available: %v", err)
	}

	if cfg.Location.Name != "" || cfg.Location.Timezone != "" {
		loc, err := location.New(cfg.Location)
		if err != nil {
			return configError(err)
		}
		deps.Location = loc
	}

	reader := session.NewTerminalReader(config.Path(cfg.Chat.HistoryFile))
	closers = append(closers, reader)
	deps.Reader = reader

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	deps.Interrupts = interrupts

	s, err := session.New(deps)
	if err != nil {
		return err
	}
	closers = nil
	defer s.Close()

	fmt.Fprintln(out, st.Title.Render("docchat")+st.Dim.Render(fmt.Sprintf(" %s, /help for commands", s.Model())))
	if listener != nil {
		logger.Info("listening", zap.String("socket", listener.Path()))
	}
	return s.Run(ctx)
}

// listen opens the control socket unless it is disabled. A nil listener
// with a nil error means the socket is off.
func (a *app) listen(cfg *config.Config, box *ipc.Mailbox, logger *zap.Logger) (*ipc.Listener, error) {
	if a.noSocket || !cfg.Socket.Enabled {
		return nil, nil
	}
	path := config.Path(cfg.Socket.Path)
	listener, err := ipc.Listen(path, box, logger)
	if errors.Is(err, ipc.ErrInUse) {
		return nil, fmt.Errorf("another session is listening on %s; continuing without a socket", path)
	}
	if err != nil {
		return nil, fmt.Errorf("socket unavailable: %w", err)
	}
	return listener, nil
}
