// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/util"
)

// Extension is added to bare session names.
const Extension = ".json"

// ErrSessionNotFound is returned when a named session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// =============================================================================
// SESSION META
// =============================================================================

// SessionMeta describes one saved conversation.
type SessionMeta struct {
	Name         string
	Path         string
	UpdatedAt    time.Time
	MessageCount int

	// Preview is the first user message, shortened
	Preview string
}

// =============================================================================
// SESSION DIRECTORY
// =============================================================================

// SessionDir is the directory holding saved conversations.
type SessionDir struct {
	BaseDir string
}

// NewSessionDir creates the directory if needed. dir may start with "~".
func NewSessionDir(dir string) (*SessionDir, error) {
	dir = util.ExpandHome(dir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &SessionDir{BaseDir: dir}, nil
}

// Resolve maps a name typed by the user to a file path.
func (s *SessionDir) Resolve(name string) string {
	name = strings.TrimSpace(name)
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') || strings.HasPrefix(name, "~") {
		return util.ExpandHome(name)
	}
	if filepath.Ext(name) == "" {
		name += Extension
	}
	return filepath.Join(s.BaseDir, name)
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Delete removes a saved session by name.
func (s *SessionDir) Delete(name string) error {
	path := s.Resolve(name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
		}
		return err
	}
	return nil
}

// List returns saved sessions, most recently changed first. Files that are
// not conversation arrays are skipped.
func (s *SessionDir) List() ([]SessionMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionMeta{}, nil
		}
		return nil, err
	}

	metas := []SessionMeta{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		path := filepath.Join(s.BaseDir, entry.Name())
		meta, err := readMeta(path)
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

func readMeta(path string) (SessionMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SessionMeta{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return SessionMeta{}, err
	}
	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return SessionMeta{}, err
	}

	meta := SessionMeta{
		Name:         strings.TrimSuffix(filepath.Base(path), Extension),
		Path:         path,
		UpdatedAt:    info.ModTime(),
		MessageCount: len(messages),
	}
	for _, m := range messages {
		if m.Role == model.RoleUser {
			meta.Preview = util.TruncateWidth(util.FirstLine(m.Content), 60)
			break
		}
	}
	return meta, nil
}

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList renders sessions as a table.
func FormatSessionList(sessions []SessionMeta) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString(pad("Name", 20) + " " + pad("Updated", 16) + " " + pad("Msgs", 5) + " Preview\n")
	for _, s := range sessions {
		sb.WriteString(pad(util.TruncateWidth(s.Name, 20), 20) + " " +
			pad(s.UpdatedAt.Format("2006-01-02 15:04"), 16) + " " +
			pad(fmt.Sprint(s.MessageCount), 5) + " " +
			s.Preview + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// pad pads s with spaces to width terminal cells.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
