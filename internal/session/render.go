// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/switches"
)

// =============================================================================
// STYLES
// =============================================================================

type styles struct {
	prompt lipgloss.Style
	info   lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	err    lipgloss.Style
	dim    lipgloss.Style
	roles  map[model.Role]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		prompt: r.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		info:   r.NewStyle().Foreground(lipgloss.Color("75")),
		ok:     r.NewStyle().Foreground(lipgloss.Color("42")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		err:    r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		dim:    r.NewStyle().Foreground(lipgloss.Color("242")),
		roles: map[model.Role]lipgloss.Style{
			model.RoleSystem:    r.NewStyle().Foreground(lipgloss.Color("141")).Bold(true),
			model.RoleUser:      r.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
			model.RoleAssistant: r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
			model.RoleTool:      r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		},
	}
}

// glamourStyle picks a glamour style that matches the color profile.
func glamourStyle(p termenv.Profile) string {
	if p == termenv.Ascii {
		return "notty"
	}
	return "dark"
}

var numbers = message.NewPrinter(language.English)

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func (s *Session) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Session) infof(format string, args ...any) {
	fmt.Fprintln(s.out, s.styles.info.Render(fmt.Sprintf(format, args...)))
}

func (s *Session) okf(format string, args ...any) {
	fmt.Fprintln(s.out, s.styles.ok.Render(fmt.Sprintf(format, args...)))
}

func (s *Session) warnf(format string, args ...any) {
	fmt.Fprintln(s.out, s.styles.warn.Render("[Warning] "+fmt.Sprintf(format, args...)))
}

func (s *Session) errorf(format string, args ...any) {
	fmt.Fprintln(s.out, s.styles.err.Render("[Error]")+" "+fmt.Sprintf(format, args...))
}

func (s *Session) roleHeader(role model.Role, suffix string) string {
	name := role.DisplayName()
	if suffix != "" {
		name += " (" + suffix + ")"
	}
	return s.styles.roles[role].Render(name + ":")
}

// =============================================================================
// MESSAGE LISTING
// =============================================================================

// renderMessages prints messages role-colored, honoring the markdown and
// thinking switches.
func (s *Session) renderMessages(msgs []model.Message) {
	md := s.markdownRenderer()
	thinking := s.set.Value(switches.Thinking)

	for i, msg := range msgs {
		if i > 0 {
			s.println()
		}
		suffix := msg.ToolName
		if len(msg.Images) > 0 {
			suffix = numbers.Sprintf("%d images", len(msg.Images))
		}
		s.println(s.roleHeader(msg.Role, suffix))

		if msg.Thinking != "" && thinking != switches.ThinkingHide {
			s.println(s.styles.dim.Render(strings.TrimSpace(msg.Thinking)))
			s.println()
		}

		body := strings.TrimSpace(msg.Content)
		if md != nil && msg.Role != model.RoleTool {
			if out, err := md.Render(body); err == nil {
				body = strings.Trim(out, "\n")
			}
		}
		if body != "" {
			s.println(body)
		}

		for _, call := range msg.ToolCalls {
			args, _ := json.Marshal(call.Function.Arguments)
			s.println(s.styles.dim.Render(fmt.Sprintf("-> %s %s", call.Function.Name, args)))
		}
	}
}

// markdownRenderer returns a glamour renderer, or nil when markdown is off
// or unavailable.
func (s *Session) markdownRenderer() *glamour.TermRenderer {
	if !s.set.IsOn(switches.Markdown) {
		return nil
	}
	if s.md == nil {
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(glamourStyle(s.profile)),
			glamour.WithColorProfile(s.profile),
			glamour.WithWordWrap(s.width),
		)
		if err != nil {
			return nil
		}
		s.md = md
	}
	return s.md
}
