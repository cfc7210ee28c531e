// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/commands"
	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/docs"
	"github.com/jeranaias/docchat/internal/ipc"
	"github.com/jeranaias/docchat/internal/location"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/ollama"
	"github.com/jeranaias/docchat/internal/retrieval"
	"github.com/jeranaias/docchat/internal/storage"
	"github.com/jeranaias/docchat/internal/stream"
	"github.com/jeranaias/docchat/internal/switches"
	"github.com/jeranaias/docchat/internal/telemetry"
	"github.com/jeranaias/docchat/internal/tools"
)

// Deps are the collaborators a Session is built from. Optional members may
// be nil; the features that need them report themselves unavailable.
type Deps struct {
	Config   *config.Config
	Client   *ollama.Client
	Switches *switches.Set
	List     *model.MessageList
	Resolver *docs.Resolver
	Executor *tools.Executor
	Sessions *storage.SessionDir
	Reader   LineReader

	// optional
	Mailbox   *ipc.Mailbox
	Listener  *ipc.Listener
	Watcher   *retrieval.Watcher
	Speaker   stream.Speaker
	Location  *location.Decorator
	Tokenizer *model.Tokenizer

	// Interrupts delivers SIGINT; nil means no interrupt handling
	Interrupts <-chan os.Signal

	Out     io.Writer
	Profile termenv.Profile
	Width   int
	Height  int
	Logger  *zap.Logger
}

// Session is the interactive chat: one conversation, its switches and the
// loop that feeds it from the terminal and the socket.
type Session struct {
	cfg       *config.Config
	client    *ollama.Client
	set       *switches.Set
	list      *model.MessageList
	resolver  *docs.Resolver
	executor  *tools.Executor
	sessions  *storage.SessionDir
	box       *ipc.Mailbox
	listener  *ipc.Listener
	watcher   *retrieval.Watcher
	speaker   stream.Speaker
	location  *location.Decorator
	tokenizer *model.Tokenizer
	usage     *telemetry.Tracker
	logger    *zap.Logger

	registry  *commands.Registry
	completer *commands.Completer
	links     *Links
	term      *terminal
	reader    LineReader

	out     io.Writer
	profile termenv.Profile
	styles  styles
	md      *glamour.TermRenderer
	width   int
	height  int

	interrupts <-chan os.Signal

	// active is the handler of the reply being streamed, for interrupts
	active atomic.Pointer[stream.Handler]

	// pendingImages are image references attached to the next user message
	pendingImages []string

	// pendingText is imported text added to the next user message
	pendingText []string

	// images caches base64 data by reference
	images map[string]string

	// fromSocket is true while a socket message is being handled
	fromSocket bool

	closeOnce sync.Once
}

// New creates a session. It does not start reading input; call Run.
func New(d Deps) (*Session, error) {
	if d.Config == nil || d.Client == nil || d.Switches == nil || d.List == nil ||
		d.Resolver == nil || d.Executor == nil || d.Reader == nil {
		return nil, errors.New("session: missing dependency")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Width <= 0 {
		d.Width = 80
	}
	if d.Height <= 0 {
		d.Height = 24
	}
	if d.Mailbox == nil {
		d.Mailbox = ipc.NewMailbox(d.Logger)
	}
	if d.Tokenizer == nil {
		d.Tokenizer = model.NewTokenizer("")
	}

	renderer := lipgloss.NewRenderer(d.Out)
	renderer.SetColorProfile(d.Profile)

	s := &Session{
		cfg:        d.Config,
		client:     d.Client,
		set:        d.Switches,
		list:       d.List,
		resolver:   d.Resolver,
		executor:   d.Executor,
		sessions:   d.Sessions,
		box:        d.Mailbox,
		listener:   d.Listener,
		watcher:    d.Watcher,
		speaker:    d.Speaker,
		location:   d.Location,
		tokenizer:  d.Tokenizer,
		usage:      telemetry.NewTracker(),
		logger:     d.Logger,
		links:      NewLinks(),
		reader:     d.Reader,
		out:        d.Out,
		profile:    d.Profile,
		styles:     newStyles(renderer),
		width:      d.Width,
		height:     d.Height,
		interrupts: d.Interrupts,
		images:     make(map[string]string),
	}

	s.registry = commands.NewRegistry(commands.Builtins()...)
	if err := s.bindCommands(); err != nil {
		return nil, err
	}
	s.completer = s.newCompleter()
	if cs, ok := d.Reader.(completerSetter); ok {
		cs.SetCompleter(s.completer.Complete)
	}

	if d.Config.Chat.SystemPrompt != "" {
		if _, ok := s.list.SystemPrompt(); !ok && s.list.Len() == 0 {
			s.list.SetSystemPrompt(d.Config.Chat.SystemPrompt)
		}
	}
	return s, nil
}

// Registry returns the command registry.
func (s *Session) Registry() *commands.Registry {
	return s.registry
}

// List returns the conversation.
func (s *Session) List() *model.MessageList {
	return s.list
}

// Links returns the links seen so far.
func (s *Session) Links() *Links {
	return s.links
}

// Usage returns the token usage reported so far.
func (s *Session) Usage() *telemetry.Tracker {
	return s.usage
}

// Mailbox returns the socket mailbox.
func (s *Session) Mailbox() *ipc.Mailbox {
	return s.box
}

// Store implements tools.StoreProvider.
func (s *Session) Store() retrieval.Store {
	return s.resolver.Store()
}

// Model returns the active model name.
func (s *Session) Model() string {
	return s.client.GetDefaultModel()
}

func (s *Session) prompt() string {
	return s.styles.prompt.Render(">>> ")
}

// decorator returns the system prompt decorator when location is on.
func (s *Session) decorator() func(string) string {
	if s.location == nil || !s.set.IsOn(switches.Location) {
		return nil
	}
	return s.location.Decorate
}

// Close releases the terminal, the listener and the watcher. Pending socket
// messages are failed.
func (s *Session) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if s.term != nil {
			s.term.stop()
		}
		if s.listener != nil {
			errs = append(errs, s.listener.Close())
		}
		s.box.Drain()
		if s.watcher != nil {
			errs = append(errs, s.watcher.Close())
		}
		if c, ok := s.speaker.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		errs = append(errs, s.reader.Close())
	})
	return errors.Join(errs...)
}
