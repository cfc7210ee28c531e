// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Help returns the command overview grouped by category.
func (r *Registry) Help() string {
	groups := r.ByCategory()

	width := 0
	for _, cmd := range r.All() {
		width = max(width, runewidth.StringWidth(cmd.Usage))
	}

	var b strings.Builder
	for _, category := range Categories {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(category + ":\n")
		for _, cmd := range cmds {
			fmt.Fprintf(&b, "  %s  %s\n", runewidth.FillRight(cmd.Usage, width), cmd.Description)
		}
	}
	return b.String()
}

// HelpFor returns detailed help for one command.
func (r *Registry) HelpFor(name string) (string, error) {
	cmd := r.Get(name)
	if cmd == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n  %s\n", cmd.Usage, cmd.Description)
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(&b, "  aliases: %s\n", strings.Join(cmd.Aliases, ", "))
	}
	for _, arg := range cmd.Args {
		line := "  " + arg.Name
		if !arg.Required {
			line += " (optional)"
		}
		if arg.Description != "" {
			line += ": " + arg.Description
		}
		if len(arg.Values) > 0 {
			line += " [" + strings.Join(arg.Values, ", ") + "]"
		}
		b.WriteString(line + "\n")
	}
	return b.String(), nil
}
