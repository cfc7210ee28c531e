// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// piece is a run of reply text, either answer or reasoning.
type piece struct {
	text     string
	thinking bool
}

// thinkSplitter separates <think> sections from streamed content. Tags may
// be split across fragments, so a trailing partial tag is held back until
// the next fragment decides it.
type thinkSplitter struct {
	inThink bool
	pending string
}

// split consumes one fragment and returns the pieces it completes.
func (s *thinkSplitter) split(fragment string) []piece {
	buf := s.pending + fragment
	s.pending = ""

	var out []piece
	for buf != "" {
		tag := thinkOpen
		if s.inThink {
			tag = thinkClose
		}

		if i := strings.Index(buf, tag); i >= 0 {
			if i > 0 {
				out = append(out, piece{text: buf[:i], thinking: s.inThink})
			}
			s.inThink = !s.inThink
			buf = buf[i+len(tag):]
			continue
		}

		keep := partialSuffix(buf, tag)
		if text := buf[:len(buf)-keep]; text != "" {
			out = append(out, piece{text: text, thinking: s.inThink})
		}
		s.pending = buf[len(buf)-keep:]
		break
	}
	return out
}

// flush returns any held-back text at end of stream.
func (s *thinkSplitter) flush() []piece {
	if s.pending == "" {
		return nil
	}
	p := piece{text: s.pending, thinking: s.inThink}
	s.pending = ""
	return []piece{p}
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of tag.
func partialSuffix(s, tag string) int {
	n := len(tag) - 1
	if n > len(s) {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
