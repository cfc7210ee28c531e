// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Links is the ordered set of URLs seen in the conversation. Links are
// numbered from 1 in first-seen order so they can be referred to as @n.
type Links struct {
	mu   sync.Mutex
	urls []string
	seen map[string]bool
}

// NewLinks creates an empty set.
func NewLinks() *Links {
	return &Links{seen: make(map[string]bool)}
}

// Add records urls not seen before.
func (l *Links) Add(urls ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range urls {
		if u == "" || l.seen[u] {
			continue
		}
		l.seen[u] = true
		l.urls = append(l.urls, u)
	}
}

// Get returns link n, counting from 1.
func (l *Links) Get(n int) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < 1 || n > len(l.urls) {
		return "", false
	}
	return l.urls[n-1], true
}

// Len returns the number of links.
func (l *Links) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.urls)
}

// Format lists the last n links with their numbers; n <= 0 lists all.
func (l *Links) Format(n int) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := 0
	if n > 0 && n < len(l.urls) {
		start = len(l.urls) - n
	}
	var b strings.Builder
	for i := start; i < len(l.urls); i++ {
		fmt.Fprintf(&b, "%3d  %s\n", i+1, l.urls[i])
	}
	return b.String()
}

// Expand resolves a link reference written @n to its URL. Other sources
// are returned unchanged.
func (l *Links) Expand(source string) (string, error) {
	if !strings.HasPrefix(source, "@") {
		return source, nil
	}
	n, err := strconv.Atoi(source[1:])
	if err != nil {
		return source, nil
	}
	u, ok := l.Get(n)
	if !ok {
		return "", fmt.Errorf("no link %s (%d known)", source, l.Len())
	}
	return u, nil
}
