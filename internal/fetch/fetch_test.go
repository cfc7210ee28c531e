// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat/internal/config"
)

func testConfig() config.FetchConfig {
	return config.Default().Fetch
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		source string
		want   Kind
	}{
		{"https://example.com/a", KindURL},
		{"http://example.com", KindURL},
		{"!ls -l", KindCommand},
		{"/etc/hosts", KindFile},
		{"file:///etc/hosts", KindFile},
		{"./notes.md", KindFile},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.source))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "https://example.com/page", Normalize("HTTPS://Example.COM/page#section"))
	assert.Equal(t, "/tmp/a.txt", Normalize("file:///tmp/./a.txt"))
	assert.Equal(t, "!date", Normalize("  !date "))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "x.md"), Normalize("./x.md"))
}

func TestContentMediaTypeAndCategory(t *testing.T) {
	c := &Content{ContentType: "Text/HTML; charset=ISO-8859-1"}
	assert.Equal(t, "text/html", c.MediaType())
	assert.Equal(t, "text", c.Category())

	img := &Content{ContentType: "image/png"}
	assert.Equal(t, "image", img.Category())
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, "text/html", DetectType("page.HTML", nil))
	assert.Equal(t, "text/csv", DetectType("data.csv", nil))
	assert.Equal(t, "application/pdf", DetectType("doc.pdf", nil))
	assert.Equal(t, "application/postscript", DetectType("doc.ps", nil))
	assert.True(t, strings.HasPrefix(DetectType("main.go", nil), "text/x-"), DetectType("main.go", nil))
	assert.Equal(t, "text/plain", DetectType("noext", nil))
	assert.Contains(t, DetectType("noext", []byte("plain words")), "text/plain")
}

func TestFetchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes"), 0o644))

	f := New(testConfig(), nil)
	c, err := f.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "# Notes", string(c.Data))
	assert.Equal(t, "text/markdown", c.ContentType)
	assert.Equal(t, path, c.Source)
}

func TestFetchFile_Missing(t *testing.T) {
	f := New(testConfig(), nil)
	_, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchFile_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBytes = 4
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	_, err := New(cfg, nil).Fetch(context.Background(), path)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchFile_CacheInvalidatedOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	f := New(testConfig(), nil)
	_, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	c, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(c.Data))
	assert.Equal(t, 1, f.Cache().Stats().Hits)

	require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	c, err = f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(c.Data))
}

func TestFetchURL(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "docchat/1.0", r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<h1>Hi</h1>"))
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	c, err := f.Fetch(context.Background(), srv.URL+"/page#frag")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hi</h1>", string(c.Data))
	assert.Equal(t, "text/html", c.MediaType())
	assert.Equal(t, srv.URL+"/page", c.Source)

	_, err = f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load(), "second fetch should be served from cache")
}

func TestFetchURL_SniffsMissingContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer srv.Close()

	c, err := New(testConfig(), nil).Fetch(context.Background(), srv.URL+"/data.csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", c.ContentType)
}

func TestFetchURL_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(testConfig(), nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetchURL_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxBytes = 10
	_, err := New(cfg, nil).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchURL_BlockPrivate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should have been blocked")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BlockPrivate = true
	_, err := New(cfg, nil).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestCheckURL(t *testing.T) {
	tests := []struct {
		raw     string
		block   bool
		wantErr error
	}{
		{"https://example.com", true, nil},
		{"ftp://example.com", false, ErrInvalidScheme},
		{"http://127.0.0.1:8080", true, ErrBlocked},
		{"http://127.0.0.1:8080", false, nil},
		{"http://10.1.2.3", true, ErrBlocked},
		{"http://localhost", true, ErrBlocked},
		{"http://metadata.google.internal", true, ErrBlocked},
		{"http://[::1]/", true, ErrBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			err = CheckURL(u, tt.block)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestFetchCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	f := New(testConfig(), nil)
	_, err := f.Fetch(context.Background(), "!echo hi")
	assert.ErrorIs(t, err, ErrShellDisabled)

	cfg := testConfig()
	cfg.AllowShell = true
	c, err := New(cfg, nil).Fetch(context.Background(), "!echo hi")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(c.Data))
	assert.Equal(t, "text", c.Category())

	_, err = New(cfg, nil).Fetch(context.Background(), "!exit 3")
	assert.Error(t, err)
}

func TestCache_LRUAndTTL(t *testing.T) {
	c := NewCache(2, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("a", &Content{Data: []byte("A")}, "", time.Time{})
	c.Put("b", &Content{Data: []byte("B")}, "", time.Time{})
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", &Content{Data: []byte("C")}, "", time.Time{})
	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry should have expired")
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache(4, 0)
	c.Put("k", &Content{Data: []byte("abc")}, "", time.Time{})

	got, ok := c.Get("k")
	require.True(t, ok)
	got.Data[0] = 'X'

	again, _ := c.Get("k")
	assert.Equal(t, "abc", string(again.Data))
}
