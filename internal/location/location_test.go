// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package location

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/model"
)

func fixed(d *Decorator) *Decorator {
	d.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }
	return d
}

func TestDecorate(t *testing.T) {
	d, err := New(config.LocationConfig{Name: "Oslo, Norway", Timezone: "UTC", Units: "Metric"})
	require.NoError(t, err)
	fixed(d)

	got := d.Decorate("You are helpful.\n")
	assert.True(t, strings.HasPrefix(got, "You are helpful.\n\nThe user is located in Oslo, Norway."))
	assert.Contains(t, got, "Friday, 14 March 2025 09:30 (UTC)")
	assert.Contains(t, got, "metric units")
}

func TestDecorate_EmptySystem(t *testing.T) {
	d, err := New(config.LocationConfig{Timezone: "UTC", Units: "imperial"})
	require.NoError(t, err)
	fixed(d)

	got := d.Decorate("")
	assert.False(t, strings.HasPrefix(got, "\n"))
	assert.NotContains(t, got, "located in")
	assert.Contains(t, got, "imperial units")
}

func TestNew_BadTimezone(t *testing.T) {
	_, err := New(config.LocationConfig{Timezone: "Mars/Olympus_Mons"})
	assert.Error(t, err)
}

func TestDecorate_SnapshotOnly(t *testing.T) {
	d, err := New(config.LocationConfig{Name: "Lima", Timezone: "UTC"})
	require.NoError(t, err)
	fixed(d)

	list := model.NewMessageList().SetSystemPrompt("Be brief.")
	snap := list.Snapshot(d.Decorate)

	require.NotEmpty(t, snap)
	assert.Contains(t, snap[0].Content, "Lima")
	system, _ := list.SystemPrompt()
	assert.Equal(t, "Be brief.", system)
}

func TestZoneName_NumericZone(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.FixedZone("", -(3*3600 + 30*60)))
	assert.Equal(t, "UTC-03:30", zoneName(at))
}
