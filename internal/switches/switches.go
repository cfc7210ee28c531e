// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package switches implements the named, enum-valued session toggles
// (document policy, think mode, markdown, streaming, voice, ...).
//
// A switch is either a Selector, which holds its own value, or a Combined
// switch derived from other switches. Both satisfy Switch.
package switches

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidValue is returned when a selection is not in the value set.
var ErrInvalidValue = errors.New("invalid value")

// ErrUnknownSwitch is returned when a switch name is not registered.
var ErrUnknownSwitch = errors.New("unknown switch")

// Switch is the capability shared by all toggles.
type Switch interface {
	Name() string
	IsOn() bool
	Toggle() error
	Describe() string
}

// =============================================================================
// SELECTOR
// =============================================================================

// Selector is a named switch holding one value out of a fixed set. Some
// values are designated "off"; every other value is "on".
type Selector struct {
	mu         sync.RWMutex
	name       string
	help       string
	values     []string
	off        []string
	allowEmpty bool
	current    string
	lastOn     string
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// WithHelp sets the description shown by Describe.
func WithHelp(help string) SelectorOption {
	return func(s *Selector) { s.help = help }
}

// AllowEmpty permits the empty selection, which counts as off.
func AllowEmpty() SelectorOption {
	return func(s *Selector) { s.allowEmpty = true }
}

// NewSelector creates a selector. The initial value must be a member of
// values (or empty when AllowEmpty is given), and off must be a subset.
func NewSelector(name string, values, off []string, initial string, opts ...SelectorOption) (*Selector, error) {
	s := &Selector{
		name:   name,
		values: slices.Clone(values),
		off:    slices.Clone(off),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, v := range s.off {
		if !slices.Contains(s.values, v) {
			return nil, fmt.Errorf("switch %s: off value %q is not a member", name, v)
		}
	}
	if err := s.Set(initial); err != nil {
		return nil, err
	}
	if !s.IsOn() {
		s.lastOn = s.firstOn()
	}
	return s, nil
}

// NewFlag creates a boolean selector with values "on" and "off".
func NewFlag(name string, on bool, opts ...SelectorOption) *Selector {
	initial := "off"
	if on {
		initial = "on"
	}
	s, _ := NewSelector(name, []string{"on", "off"}, []string{"off"}, initial, opts...)
	return s
}

// Name returns the switch name.
func (s *Selector) Name() string { return s.name }

// Value returns the current selection.
func (s *Selector) Value() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Values returns the allowed selections.
func (s *Selector) Values() []string { return slices.Clone(s.values) }

// Is reports whether the current selection equals v.
func (s *Selector) Is(v string) bool { return s.Value() == v }

// IsOn reports whether the current selection is outside the off set.
func (s *Selector) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOn(s.current)
}

func (s *Selector) isOn(v string) bool {
	return v != "" && !slices.Contains(s.off, v)
}

// Set changes the selection. Invalid values are rejected and the previous
// selection is kept.
func (s *Selector) Set(v string) error {
	v = strings.TrimSpace(v)
	if !(v == "" && s.allowEmpty) && !slices.Contains(s.values, v) {
		return fmt.Errorf("%w %q for %s (choose from %s)", ErrInvalidValue, v, s.name, strings.Join(s.values, ", "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isOn(s.current) {
		s.lastOn = s.current
	}
	s.current = v
	return nil
}

// Toggle switches between the first off value and the most recent on value.
func (s *Selector) Toggle() error {
	if s.IsOn() {
		if len(s.off) == 0 {
			if s.allowEmpty {
				return s.Set("")
			}
			return fmt.Errorf("switch %s has no off value", s.name)
		}
		return s.Set(s.off[0])
	}

	s.mu.RLock()
	target := s.lastOn
	s.mu.RUnlock()
	if target == "" {
		target = s.firstOn()
	}
	if target == "" {
		return fmt.Errorf("switch %s has no on value", s.name)
	}
	return s.Set(target)
}

func (s *Selector) firstOn() string {
	for _, v := range s.values {
		if s.isOn(v) {
			return v
		}
	}
	return ""
}

// Describe renders the switch with its current and possible values.
func (s *Selector) Describe() string {
	value := s.Value()
	if value == "" {
		value = "(none)"
	}
	desc := fmt.Sprintf("%s = %s  [%s]", s.name, value, strings.Join(s.values, "|"))
	if s.help != "" {
		desc += "  " + s.help
	}
	return desc
}

// =============================================================================
// COMBINED
// =============================================================================

// Combined is a derived switch: it is on when all of its members are on,
// and toggling it drives every member to the opposite state.
type Combined struct {
	name    string
	help    string
	members []Switch
}

// NewCombined creates a derived switch over members.
func NewCombined(name, help string, members ...Switch) *Combined {
	return &Combined{name: name, help: help, members: members}
}

// Name returns the switch name.
func (c *Combined) Name() string { return c.name }

// IsOn reports whether every member is on.
func (c *Combined) IsOn() bool {
	for _, m := range c.members {
		if !m.IsOn() {
			return false
		}
	}
	return len(c.members) > 0
}

// Toggle turns all members off when the combination is on, otherwise turns
// every member that is off on.
func (c *Combined) Toggle() error {
	want := !c.IsOn()
	for _, m := range c.members {
		if m.IsOn() != want {
			if err := m.Toggle(); err != nil {
				return fmt.Errorf("switch %s: %w", c.name, err)
			}
		}
	}
	return nil
}

// Describe renders the combined state and its members.
func (c *Combined) Describe() string {
	names := make([]string, len(c.members))
	for i, m := range c.members {
		names[i] = m.Name()
	}
	state := "off"
	if c.IsOn() {
		state = "on"
	}
	desc := fmt.Sprintf("%s = %s  (%s)", c.name, state, strings.Join(names, " + "))
	if c.help != "" {
		desc += "  " + c.help
	}
	return desc
}

// =============================================================================
// SET
// =============================================================================

// Set is a name-indexed collection of switches.
type Set struct {
	switches map[string]Switch
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{switches: make(map[string]Switch)}
}

// Add registers sw under its name, replacing any previous switch.
func (s *Set) Add(sw Switch) {
	s.switches[sw.Name()] = sw
}

// Get looks up a switch by name.
func (s *Set) Get(name string) (Switch, error) {
	sw, ok := s.switches[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSwitch, name)
	}
	return sw, nil
}

// Selector looks up a switch that holds its own value.
func (s *Set) Selector(name string) (*Selector, error) {
	sw, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	sel, ok := sw.(*Selector)
	if !ok {
		return nil, fmt.Errorf("switch %s is derived and cannot be set directly", name)
	}
	return sel, nil
}

// IsOn reports whether the named switch is on; unknown names are off.
func (s *Set) IsOn(name string) bool {
	sw, ok := s.switches[name]
	return ok && sw.IsOn()
}

// Value returns the value of the named selector, or "" when there is no
// such selector.
func (s *Set) Value(name string) string {
	if sel, ok := s.switches[name].(*Selector); ok {
		return sel.Value()
	}
	return ""
}

// All returns every switch sorted by name.
func (s *Set) All() []Switch {
	out := make([]Switch, 0, len(s.switches))
	for _, sw := range s.switches {
		out = append(out, sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
