// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jeranaias/docchat/internal/util"
)

// maxFileCompletions bounds directory listings offered for one Tab press.
const maxFileCompletions = 50

// Completer provides Tab completion for commands and their arguments. The
// providers are optional; a nil provider completes nothing.
type Completer struct {
	registry *Registry

	Models       func() []string
	Sessions     func() []string
	Switches     func() []string
	SwitchValues func(name string) []string
	Tools        func() []string
	Collections  func() []string
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns whole-line candidates for line, the form liner's
// SetCompleter expects.
func (c *Completer) Complete(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}

	fields := strings.Fields(line)
	trailingSpace := strings.HasSuffix(line, " ")

	// still typing the command name
	if len(fields) == 1 && !trailingSpace {
		return c.completeFromList(c.registry.Names(), fields[0], "")
	}

	cmd := c.registry.Get(fields[0])
	if cmd == nil {
		return nil
	}

	argIndex := len(fields) - 2
	partial := fields[len(fields)-1]
	if trailingSpace {
		argIndex++
		partial = ""
	}
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}

	prefix := line[:len(line)-len(partial)]
	return c.completeFromList(c.values(cmd, argIndex, fields, partial), partial, prefix)
}

// values returns the candidates for argument i of cmd.
func (c *Completer) values(cmd *Command, i int, fields []string, partial string) []string {
	arg := cmd.Args[i]
	switch arg.Type {
	case ArgTypeEnum:
		return arg.Values
	case ArgTypeModel:
		return call(c.Models)
	case ArgTypeSession:
		if strings.ContainsRune(partial, os.PathSeparator) {
			return completeFiles(partial)
		}
		return call(c.Sessions)
	case ArgTypeSwitch:
		return call(c.Switches)
	case ArgTypeTool:
		return call(c.Tools)
	case ArgTypeCollection:
		return call(c.Collections)
	case ArgTypeFile, ArgTypeSource:
		return completeFiles(partial)
	case ArgTypeString:
		// the value of /set depends on the switch named before it
		if cmd.Name == "/set" && i == 1 && c.SwitchValues != nil {
			return c.SwitchValues(fields[1])
		}
		if cmd.Name == "/help" {
			return c.registry.Names()
		}
	}
	return nil
}

// completeFromList returns prefix+value for each value starting with
// partial.
func (c *Completer) completeFromList(values []string, partial, prefix string) []string {
	var out []string
	lower := strings.ToLower(partial)
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), lower) {
			out = append(out, prefix+v)
		}
	}
	sort.Strings(out)
	return out
}

// completeFiles lists directory entries matching partial. Directories get
// a trailing separator; hidden files only show when asked for.
func completeFiles(partial string) []string {
	expanded := util.ExpandHome(partial)
	dir, base := filepath.Split(expanded)
	if strings.HasSuffix(partial, string(os.PathSeparator)) {
		dir, base = expanded, ""
	}
	shownDir, _ := filepath.Split(partial)
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, base) {
			continue
		}
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(base, ".") {
			continue
		}
		path := shownDir + name
		if entry.IsDir() {
			path += string(os.PathSeparator)
		}
		out = append(out, path)
		if len(out) == maxFileCompletions {
			break
		}
	}
	return out
}

func call(fn func() []string) []string {
	if fn == nil {
		return nil
	}
	return fn()
}
