// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/docchat/internal/model"
)

func saveConversation(t *testing.T, path string, user string) {
	t.Helper()
	list := model.NewMessageList().SetSystemPrompt("sys")
	if err := list.Append(model.NewMessage(model.RoleUser, user)); err != nil {
		t.Fatal(err)
	}
	if err := list.Append(model.NewMessage(model.RoleAssistant, "ok")); err != nil {
		t.Fatal(err)
	}
	if err := list.Save(path, true); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestNewSessionDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "sessions")

	s, err := NewSessionDir(dir)
	if err != nil {
		t.Fatalf("NewSessionDir() error = %v", err)
	}
	if s.BaseDir != dir {
		t.Errorf("BaseDir = %q, want %q", s.BaseDir, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("directory not created: %v", err)
	}
}

func TestSessionDir_Resolve(t *testing.T) {
	s := &SessionDir{BaseDir: "/data/sessions"}

	tests := []struct {
		name string
		want string
	}{
		{"trip", "/data/sessions/trip.json"},
		{"trip.json", "/data/sessions/trip.json"},
		{"notes.txt", "/data/sessions/notes.txt"},
		{"./local.json", "./local.json"},
		{"/tmp/x.json", "/tmp/x.json"},
	}
	for _, tt := range tests {
		if got := s.Resolve(tt.name); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSessionDir_List(t *testing.T) {
	s, err := NewSessionDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	saveConversation(t, s.Resolve("older"), "first question\nwith more lines")
	saveConversation(t, s.Resolve("newer"), "second question")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(s.Resolve("older"), past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.BaseDir, "broken.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.BaseDir, "README"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	metas, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("List() returned %d sessions, want 2", len(metas))
	}
	if metas[0].Name != "newer" || metas[1].Name != "older" {
		t.Errorf("order = %s, %s; want newer, older", metas[0].Name, metas[1].Name)
	}
	if metas[1].Preview != "first question" {
		t.Errorf("Preview = %q", metas[1].Preview)
	}
	if metas[0].MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", metas[0].MessageCount)
	}

	table := FormatSessionList(metas)
	if !strings.Contains(table, "newer") || !strings.Contains(table, "second question") {
		t.Errorf("FormatSessionList() = %q", table)
	}
}

func TestSessionDir_Delete(t *testing.T) {
	s, err := NewSessionDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	saveConversation(t, s.Resolve("gone"), "q")

	if err := s.Delete("gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if Exists(s.Resolve("gone")) {
		t.Error("file still exists")
	}
	if err := s.Delete("gone"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Delete() of missing = %v, want ErrSessionNotFound", err)
	}
}

func TestFormatSessionList_Empty(t *testing.T) {
	if got := FormatSessionList(nil); got != "No sessions found." {
		t.Errorf("FormatSessionList(nil) = %q", got)
	}
}
