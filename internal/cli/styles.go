// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for the docchat commands.
//
// Styles are bound to a lipgloss renderer for the command's output, so
// colors follow the profile picked for that writer instead of the global
// default.

package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles are the styles used by command output.
type Styles struct {
	// Title is used for command titles and headers
	Title lipgloss.Style
	// Section is used for section headers within commands
	Section lipgloss.Style
	// Label is used for left-aligned field labels
	Label lipgloss.Style
	// Value is used for regular values
	Value   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Dim     lipgloss.Style
}

// NewStyles creates styles rendering to w with the given profile.
func NewStyles(w io.Writer, profile termenv.Profile) Styles {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)

	return Styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")). // Cyan
			MarginBottom(1),
		Section: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")). // White
			MarginTop(1),
		Label: r.NewStyle().
			Foreground(lipgloss.Color("245")). // Light gray
			Width(20),
		Value: r.NewStyle().
			Foreground(lipgloss.Color("252")),
		Success: r.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true),
		Error: r.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true),
		Warning: r.NewStyle().
			Foreground(lipgloss.Color("214")),
		Dim: r.NewStyle().
			Foreground(lipgloss.Color("242")),
	}
}

// Row renders a "label value" line.
func (s Styles) Row(label, value string) string {
	return s.Label.Render(label) + s.Value.Render(value)
}

// Separator renders a horizontal rule of the given width.
func (s Styles) Separator(width int) string {
	if width <= 0 {
		width = 40
	}
	return s.Dim.Render(strings.Repeat("-", width))
}
