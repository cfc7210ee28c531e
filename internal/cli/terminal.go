// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for docchat.
//
// The interactive session needs the size of the screen to bound redraws and
// a color profile for its styles. Piped output gets no colors; NO_COLOR and
// FORCE_COLOR override the TTY check.

package cli

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY returns true if stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// =============================================================================
// TERMINAL SIZE
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails
	DefaultTerminalWidth = 80

	// DefaultTerminalHeight is the fallback height when detection fails
	DefaultTerminalHeight = 24

	// MinTerminalWidth is the minimum width used for wrapping
	MinTerminalWidth = 40
)

// GetTerminalSize returns both width and height of the terminal.
// Returns defaults (80x24) if size cannot be determined.
func GetTerminalSize() (width, height int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return DefaultTerminalWidth, DefaultTerminalHeight
	}
	return max(w, MinTerminalWidth), h
}

// =============================================================================
// COLOR OUTPUT CONTROL
// =============================================================================

// colorsEnabled decides color output from the environment and whether
// stdout is a terminal. See https://no-color.org/.
func colorsEnabled(getenv func(string) string, tty bool) bool {
	// NO_COLOR takes precedence (any non-empty value disables colors)
	if getenv("NO_COLOR") != "" {
		return false
	}
	if getenv("FORCE_COLOR") != "" {
		return true
	}
	return tty
}

// ColorsEnabled returns true if colored output should be used.
func ColorsEnabled() bool {
	return colorsEnabled(os.Getenv, IsStdoutTTY())
}

// GetColorProfile returns the termenv profile for stdout: Ascii when colors
// are off, the detected profile otherwise. FORCE_COLOR treats a pipe as a
// terminal.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.NewOutput(os.Stdout, termenv.WithTTY(true)).EnvColorProfile()
}
