// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTooLarge is returned when content exceeds fetch.max_bytes.
	ErrTooLarge = errors.New("content too large")

	// ErrShellDisabled is returned for "!cmd" sources when fetch.allow_shell
	// is off.
	ErrShellDisabled = errors.New("shell sources are disabled (set fetch.allow_shell)")

	// ErrNotFound is returned when a file source does not exist.
	ErrNotFound = errors.New("file not found")
)

// =============================================================================
// TYPES
// =============================================================================

// Content is the raw result of a fetch.
type Content struct {
	Data        []byte
	ContentType string // full media type, parameters included
	Source      string // normalized source id
}

// MediaType returns the content type without parameters, lower-cased.
func (c *Content) MediaType() string {
	mt, _, err := mime.ParseMediaType(c.ContentType)
	if err != nil {
		mt, _, _ = strings.Cut(c.ContentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// Category returns the major part of the media type ("text", "image", ...).
func (c *Content) Category() string {
	major, _, _ := strings.Cut(c.MediaType(), "/")
	return major
}

// Fetcher retrieves content for a source reference.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (*Content, error)
}

// Kind classifies a source string.
type Kind int

const (
	KindFile Kind = iota
	KindURL
	KindCommand
)

// KindOf reports what kind of source s is.
func KindOf(s string) Kind {
	switch {
	case strings.HasPrefix(s, "!"):
		return KindCommand
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return KindURL
	default:
		return KindFile
	}
}

// Normalize returns the canonical id of a source: absolute cleaned paths for
// files, fragment-free URLs with a lower-cased scheme and host, and trimmed
// command lines.
func Normalize(source string) string {
	source = strings.TrimSpace(source)
	switch KindOf(source) {
	case KindCommand:
		return source
	case KindURL:
		u, err := url.Parse(source)
		if err != nil {
			return source
		}
		u.Fragment = ""
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		return u.String()
	default:
		path := strings.TrimPrefix(source, "file://")
		path = util.ExpandHome(path)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		return filepath.Clean(path)
	}
}

// =============================================================================
// DEFAULT FETCHER
// =============================================================================

// DefaultFetcher fetches URLs, files and shell command output.
type DefaultFetcher struct {
	cfg    config.FetchConfig
	client *http.Client
	cache  *Cache
	logger *zap.Logger
}

// New creates a fetcher from the fetch configuration section.
func New(cfg config.FetchConfig, logger *zap.Logger) *DefaultFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "docchat/1.0"
	}

	dialer := newDialer()
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	if cfg.BlockPrivate {
		transport.Proxy = nil
		transport.DialContext = guardedDialContext(dialer)
	}

	f := &DefaultFetcher{
		cfg:    cfg,
		cache:  NewCache(cfg.CacheEntries, cfg.CacheTTL.Duration),
		logger: logger,
	}
	f.client = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout.Duration,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return CheckURL(req.URL, cfg.BlockPrivate)
		},
	}
	return f
}

// Cache returns the fetcher's content cache.
func (f *DefaultFetcher) Cache() *Cache {
	return f.cache
}

// Fetch retrieves source, consulting the cache for files and URLs.
func (f *DefaultFetcher) Fetch(ctx context.Context, source string) (*Content, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errors.New("empty source")
	}

	switch KindOf(source) {
	case KindCommand:
		return f.fetchCommand(ctx, source)
	case KindURL:
		key := Normalize(source)
		if c, ok := f.cache.Get(key); ok {
			f.logger.Debug("fetch cache hit", zap.String("source", key))
			return c, nil
		}
		c, err := f.fetchURL(ctx, key)
		if err != nil {
			return nil, err
		}
		f.cache.Put(key, c, "", time.Time{})
		return c, nil
	default:
		return f.fetchFile(Normalize(source))
	}
}

func (f *DefaultFetcher) fetchURL(ctx context.Context, rawURL string) (*Content, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if err := CheckURL(u, f.cfg.BlockPrivate); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.7")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	data, err := readLimited(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = DetectType(resp.Request.URL.Path, data)
	}

	f.logger.Debug("fetched url",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Content{Data: data, ContentType: contentType, Source: rawURL}, nil
}

func (f *DefaultFetcher) fetchFile(path string) (*Content, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > f.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}

	if c, ok := f.cache.Get(path); ok {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	c := &Content{Data: data, ContentType: DetectType(path, data), Source: path}
	f.cache.Put(path, c, path, info.ModTime())
	return c, nil
}

func (f *DefaultFetcher) fetchCommand(ctx context.Context, source string) (*Content, error) {
	if !f.cfg.AllowShell {
		return nil, ErrShellDisabled
	}
	line := strings.TrimSpace(strings.TrimPrefix(source, "!"))
	if line == "" {
		return nil, errors.New("empty command")
	}

	if f.cfg.Timeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout.Duration)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("command %q failed: %w", line, err)
		}
		return nil, fmt.Errorf("command %q failed: %w: %s", line, err, util.FirstLine(msg))
	}
	if int64(stdout.Len()) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: output of %q", ErrTooLarge, line)
	}

	f.logger.Debug("ran shell source", zap.String("command", line), zap.Int("bytes", stdout.Len()))
	return &Content{Data: stdout.Bytes(), ContentType: "text/plain; charset=utf-8", Source: source}, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}
