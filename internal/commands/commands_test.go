// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestIsCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"/model qwen", true},
		{"  /help", true},
		{"hello", false},
		{"hello /help", false},
		{"", false},
	}

	for _, tc := range tests {
		if got := IsCommand(tc.input); got != tc.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestExtractCommandName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/help", "/help"},
		{"/model qwen", "/model"},
		{"  /save my-session  ", "/save"},
		{"/drop\t2", "/drop"},
		{"hello", ""},
	}

	for _, tc := range tests {
		if got := ExtractCommandName(tc.input); got != tc.want {
			t.Errorf("ExtractCommandName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a b  c", []string{"a", "b", "c"}},
		{`"two words" x`, []string{"two words", "x"}},
		{`'single quoted' y`, []string{"single quoted", "y"}},
		{`"say \"hi\""`, []string{`say "hi"`}},
		{`""`, []string{""}},
		{"", nil},
		{"  spaced  ", []string{"spaced"}},
	}

	for _, tc := range tests {
		got := splitCommandLine(tc.input)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitCommandLine(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	p := NewParser(NewRegistry(Builtins()...))

	res := p.Parse("/exit")
	if res.Err != nil {
		t.Fatalf("Parse(/exit) error = %v", res.Err)
	}
	if res.Invocation.Name != "/quit" {
		t.Errorf("alias resolved to %q, want /quit", res.Invocation.Name)
	}

	res = p.Parse(`/system You are "terse".`)
	if res.Err != nil {
		t.Fatalf("Parse(/system) error = %v", res.Err)
	}
	if res.Invocation.Raw != `You are "terse".` {
		t.Errorf("Raw = %q", res.Invocation.Raw)
	}

	res = p.Parse("/swiches")
	if !errors.Is(res.Err, ErrUnknownCommand) {
		t.Fatalf("Parse(/swiches) error = %v, want ErrUnknownCommand", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "did you mean /switches?") {
		t.Errorf("error %q carries no suggestion", res.Err)
	}
}

func TestValidateArgs(t *testing.T) {
	reg := NewRegistry(Builtins()...)

	tests := []struct {
		input   string
		wantErr bool
	}{
		{"/drop", false},
		{"/drop 2", false},
		{"/drop two", true},
		{"/drop 0", true},
		{"/save", true},
		{"/save notes", false},
		{"/policy embedding", false},
		{"/policy hoarding", true},
		{"/think high", false},
		{"/set markdown", true},
		{"/set markdown off", false},
		{"/find", true},
		{"/find some words #tag", false},
	}

	for _, tc := range tests {
		res := NewParser(reg).Parse(tc.input)
		if (res.Err != nil) != tc.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tc.input, res.Err, tc.wantErr)
		}
		var verr *ValidationError
		if res.Err != nil && !errors.As(res.Err, &verr) {
			t.Errorf("Parse(%q) error %T is not a *ValidationError", tc.input, res.Err)
		}
	}
}

func TestInvocationRest(t *testing.T) {
	inv := Invocation{Raw: `current_time {"format": "a b"}`}
	if got := inv.Rest(1); got != `{"format": "a b"}` {
		t.Errorf("Rest(1) = %q", got)
	}
	if got := inv.Rest(0); got != inv.Raw {
		t.Errorf("Rest(0) = %q", got)
	}
	if got := (Invocation{Raw: "only"}).Rest(1); got != "" {
		t.Errorf("Rest(1) of one word = %q, want empty", got)
	}
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestBuiltinsCoverSessionCommands(t *testing.T) {
	reg := NewRegistry(Builtins()...)
	for _, name := range []string{
		"/help", "/quit", "/exit", "/bye", "/q", "/system", "/clear", "/drop",
		"/list", "/save", "/load", "/sessions", "/set", "/toggle", "/switches",
		"/policy", "/think", "/model", "/models", "/import", "/embed",
		"/summarize", "/find", "/collection", "/collections", "/sources",
		"/forget", "/links", "/watch", "/unwatch", "/search", "/tools",
		"/tool", "/tokens", "/usage", "/export", "/delete",
	} {
		if reg.Get(name) == nil {
			t.Errorf("command %s is not registered", name)
		}
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry(&Command{Name: "/one", Aliases: []string{"/uno"}})

	if err := reg.Register(&Command{Name: "one"}); err == nil {
		t.Error("Register() accepted a duplicate name")
	}
	if err := reg.Register(&Command{Name: "/two", Aliases: []string{"/uno"}}); err == nil {
		t.Error("Register() accepted a duplicate alias")
	}
}

func TestDispatch(t *testing.T) {
	reg := NewRegistry(Builtins()...)

	var got Invocation
	err := reg.Bind("drop", func(_ context.Context, inv Invocation) error {
		got = inv
		return nil
	})
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	if err := reg.Dispatch(context.Background(), "/DROP 3"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got.Name != "/drop" || got.Arg(0) != "3" || got.Arg(1) != "" {
		t.Errorf("handler got %+v", got)
	}

	if err := reg.Dispatch(context.Background(), "/clear"); !errors.Is(err, ErrNoHandler) {
		t.Errorf("Dispatch(/clear) error = %v, want ErrNoHandler", err)
	}
	if err := reg.Bind("/nope", nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Bind(/nope) error = %v, want ErrUnknownCommand", err)
	}
}

func TestHelp(t *testing.T) {
	reg := NewRegistry(Builtins()...)
	help := reg.Help()

	for _, category := range Categories {
		if !strings.Contains(help, category+":") {
			t.Errorf("help has no %s section", category)
		}
	}
	if strings.Index(help, "General:") > strings.Index(help, "Tools:") {
		t.Error("categories are out of order")
	}

	detail, err := reg.HelpFor("/bye")
	if err != nil {
		t.Fatalf("HelpFor() error = %v", err)
	}
	if !strings.Contains(detail, "/quit") || !strings.Contains(detail, "/exit") {
		t.Errorf("HelpFor(/bye) = %q", detail)
	}
}

// =============================================================================
// COMPLETION TESTS
// =============================================================================

func TestComplete(t *testing.T) {
	c := NewCompleter(NewRegistry(Builtins()...))
	c.Switches = func() []string { return []string{"markdown", "stream", "voice"} }
	c.SwitchValues = func(name string) []string {
		if name == "markdown" {
			return []string{"on", "off"}
		}
		return nil
	}

	tests := []struct {
		line string
		want []string
	}{
		{"/sw", []string{"/switches"}},
		{"/to", []string{"/toggle", "/tokens", "/tool", "/tools"}},
		{"/policy e", []string{"/policy embedding"}},
		{"/toggle ", []string{"/toggle markdown", "/toggle stream", "/toggle voice"}},
		{"/set markdown o", []string{"/set markdown off", "/set markdown on"}},
		{"/clear ", nil},
		{"hello", nil},
	}

	for _, tc := range tests {
		got := c.Complete(tc.line)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Complete(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestCompleteFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"notes.md", "notes.txt", ".hidden"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o700); err != nil {
		t.Fatal(err)
	}

	c := NewCompleter(NewRegistry(Builtins()...))

	got := c.Complete("/import " + dir + "/no")
	want := []string{"/import " + dir + "/notes.md", "/import " + dir + "/notes.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Complete() = %q, want %q", got, want)
	}

	got = c.Complete("/watch " + dir + "/ne")
	want = []string{"/watch " + dir + "/nested/"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Complete() = %q, want %q", got, want)
	}
}
