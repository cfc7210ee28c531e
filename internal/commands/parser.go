// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// ParseResult contains the result of parsing one command line.
type ParseResult struct {
	// Command is the matched command (nil if not found)
	Command *Command

	Invocation Invocation

	// Err is set when the command is unknown or its arguments are invalid
	Err error
}

// =============================================================================
// PARSER
// =============================================================================

// Parser turns command lines into invocations.
type Parser struct {
	registry *Registry
}

// NewParser creates a new parser with the given registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse parses one command line. The input must start with a slash.
func (p *Parser) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)
	name := ExtractCommandName(input)
	if name == "" {
		return ParseResult{Err: fmt.Errorf("%w: %q", ErrUnknownCommand, input)}
	}
	raw := strings.TrimSpace(input[len(name):])

	cmd := p.registry.Get(name)
	if cmd == nil {
		err := fmt.Errorf("%w: %s", ErrUnknownCommand, name)
		if s := p.registry.Suggest(name); s != "" {
			err = fmt.Errorf("%w (did you mean %s?)", err, s)
		}
		return ParseResult{Err: err}
	}

	inv := Invocation{
		Name: cmd.Name,
		Args: splitCommandLine(raw),
		Raw:  raw,
	}
	return ParseResult{
		Command:    cmd,
		Invocation: inv,
		Err:        ValidateArgs(cmd, inv.Args),
	}
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

// splitCommandLine splits a command line into tokens. Single and double
// quotes group words; a backslash inside quotes escapes a quote or itself.
func splitCommandLine(input string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		started bool
	)
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0 && r == '\\' && i+1 < len(runes) && strings.ContainsRune(`"'\`, runes[i+1]):
			current.WriteRune(runes[i+1])
			i++
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
			started = true
		case quote == 0 && unicode.IsSpace(r):
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if started {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// IsCommand returns true if the input is a command line.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// ExtractCommandName returns the command word of input, e.g. "/model" for
// "/model qwen3", or "" when input is not a command.
func ExtractCommandName(input string) string {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return ""
	}
	if end := strings.IndexFunc(input, unicode.IsSpace); end >= 0 {
		return input[:end]
	}
	return input
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents an argument validation error.
type ValidationError struct {
	Command string
	Arg     string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Arg != "" {
		return e.Command + ": " + e.Arg + ": " + e.Message
	}
	return e.Command + ": " + e.Message
}

// ValidateArgs checks args against the command's definitions. Extra
// arguments are allowed; an ArgTypeText argument swallows the rest.
func ValidateArgs(cmd *Command, args []string) error {
	for i, def := range cmd.Args {
		if i >= len(args) {
			if def.Required {
				return &ValidationError{
					Command: cmd.Name,
					Arg:     def.Name,
					Message: "required (usage: " + cmd.Usage + ")",
				}
			}
			continue
		}
		if def.Type == ArgTypeText {
			return nil
		}

		value := args[i]
		switch def.Type {
		case ArgTypeInt:
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return &ValidationError{Command: cmd.Name, Arg: def.Name, Message: "expected a positive number, got " + strconv.Quote(value)}
			}
		case ArgTypeEnum:
			if !contains(def.Values, value) {
				return &ValidationError{
					Command: cmd.Name,
					Arg:     def.Name,
					Message: fmt.Sprintf("%q is not one of %s", value, strings.Join(def.Values, ", ")),
				}
			}
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
