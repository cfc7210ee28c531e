// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

var (
	// ErrQuit is returned by a handler to end the session.
	ErrQuit = errors.New("quit")

	ErrUnknownCommand = errors.New("unknown command")
	ErrNoHandler      = errors.New("command not available")
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// ArgType tells the completer and validator what an argument holds.
type ArgType int

const (
	ArgTypeString ArgType = iota
	ArgTypeInt
	ArgTypeFile
	ArgTypeSource
	ArgTypeSession
	ArgTypeModel
	ArgTypeSwitch
	ArgTypeEnum
	ArgTypeTool
	ArgTypeCollection

	// ArgTypeText consumes the rest of the line
	ArgTypeText
)

// ArgDef describes one positional argument.
type ArgDef struct {
	Name        string
	Type        ArgType
	Required    bool
	Values      []string // for ArgTypeEnum
	Description string
}

// Invocation is one parsed use of a command.
type Invocation struct {
	// Name is the canonical command name
	Name string

	Args []string

	// Raw is everything after the command word, untrimmed of quotes
	Raw string
}

// Arg returns argument i, or "" when absent.
func (inv Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// Rest returns Raw with the first n words removed. Quotes are not
// interpreted, so JSON arguments survive intact.
func (inv Invocation) Rest(n int) string {
	rest := strings.TrimSpace(inv.Raw)
	for ; n > 0 && rest != ""; n-- {
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			return ""
		}
		rest = strings.TrimSpace(rest[end:])
	}
	return rest
}

// Handler executes a command.
type Handler func(ctx context.Context, inv Invocation) error

// Command represents a slash command.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Args        []ArgDef
	Category    string
	Hidden      bool
	Handler     Handler
}

// Command categories, in help order.
const (
	CategoryGeneral      = "General"
	CategoryConversation = "Conversation"
	CategorySettings     = "Settings"
	CategoryModel        = "Model"
	CategoryDocuments    = "Documents"
	CategoryTools        = "Tools"
)

// Categories lists the categories in the order /help shows them.
var Categories = []string{
	CategoryGeneral,
	CategoryConversation,
	CategorySettings,
	CategoryModel,
	CategoryDocuments,
	CategoryTools,
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	aliases  map[string]string
}

// NewRegistry creates a registry holding cmds. It panics on a duplicate
// name, which is a programming error.
func NewRegistry(cmds ...*Command) *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
	}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := normalize(cmd.Name)
	if _, exists := r.lookupLocked(name); exists {
		return fmt.Errorf("command %s already registered", name)
	}
	cmd.Name = name
	r.commands[name] = cmd
	for i, alias := range cmd.Aliases {
		alias = normalize(alias)
		cmd.Aliases[i] = alias
		if _, exists := r.lookupLocked(alias); exists {
			return fmt.Errorf("alias %s of %s already registered", alias, name)
		}
		r.aliases[alias] = name
	}
	return nil
}

// Bind attaches a handler to a registered command.
func (r *Registry) Bind(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd, ok := r.lookupLocked(normalize(name))
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	cmd.Handler = h
	return nil
}

// Get retrieves a command by name or alias; the leading slash is optional.
func (r *Registry) Get(name string) *Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, _ := r.lookupLocked(normalize(name))
	return cmd
}

func (r *Registry) lookupLocked(name string) (*Command, bool) {
	if cmd, ok := r.commands[name]; ok {
		return cmd, true
	}
	if canonical, ok := r.aliases[name]; ok {
		return r.commands[canonical], true
	}
	return nil, false
}

// All returns all visible commands sorted by name.
func (r *Registry) All() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		if !cmd.Hidden {
			result = append(result, cmd)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Names returns every command name and alias.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands)+len(r.aliases))
	for name := range r.commands {
		names = append(names, name)
	}
	for alias := range r.aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// ByCategory returns visible commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		category := cmd.Category
		if category == "" {
			category = CategoryGeneral
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// Dispatch parses input and runs the matching handler.
func (r *Registry) Dispatch(ctx context.Context, input string) error {
	res := NewParser(r).Parse(input)
	if res.Err != nil {
		return res.Err
	}
	if res.Command.Handler == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, res.Command.Name)
	}
	return res.Command.Handler(ctx, res.Invocation)
}

// Suggest returns the closest command name to a mistyped one, or "".
func (r *Registry) Suggest(name string) string {
	name = normalize(name)
	if len(name) < 3 {
		return ""
	}

	maxDistance := 1
	if len(name) >= 5 {
		maxDistance = 2
	}

	best, bestDistance := "", maxDistance+1
	for _, candidate := range r.Names() {
		if d := levenshtein(name, candidate); d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	if bestDistance == 0 {
		return ""
	}
	return best
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return name
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
