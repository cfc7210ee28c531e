// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package location decorates the system prompt with the user's configured
// place, local time and preferred units.
package location

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/docchat/internal/config"
)

// Decorator appends location details to a system prompt. Its Decorate
// method has the shape model.MessageList.Snapshot expects.
type Decorator struct {
	name  string
	units string
	loc   *time.Location
	now   func() time.Time
}

// New builds a decorator from cfg. An unknown timezone is an error; an
// empty one means the host's local zone.
func New(cfg config.LocationConfig) (*Decorator, error) {
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("location timezone %q: %w", tz, err)
		}
		loc = l
	}
	return &Decorator{
		name:  strings.TrimSpace(cfg.Name),
		units: strings.ToLower(strings.TrimSpace(cfg.Units)),
		loc:   loc,
		now:   time.Now,
	}, nil
}

// Decorate returns system followed by a short location paragraph.
func (d *Decorator) Decorate(system string) string {
	block := d.describe()
	if strings.TrimSpace(system) == "" {
		return block
	}
	return strings.TrimRight(system, "\n") + "\n\n" + block
}

func (d *Decorator) describe() string {
	now := d.now().In(d.loc)

	var lines []string
	if d.name != "" {
		lines = append(lines, "The user is located in "+d.name+".")
	}
	lines = append(lines, fmt.Sprintf("The user's local time is %s (%s).",
		now.Format("Monday, 2 January 2006 15:04"), zoneName(now)))

	switch d.units {
	case "imperial":
		lines = append(lines, "Use imperial units (miles, pounds, Fahrenheit).")
	case "metric":
		lines = append(lines, "Use metric units (kilometres, kilograms, Celsius).")
	case "":
	default:
		lines = append(lines, "Use "+d.units+" units.")
	}
	return strings.Join(lines, "\n")
}

func zoneName(t time.Time) string {
	name, offset := t.Zone()
	if name != "" && !strings.HasPrefix(name, "+") && !strings.HasPrefix(name, "-") {
		return name
	}
	return fmt.Sprintf("UTC%+03d:%02d", offset/3600, abs(offset%3600)/60)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
