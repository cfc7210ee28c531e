// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// ErrNoConverter is returned for postscript input when ps2pdf is missing.
var ErrNoConverter = errors.New("ps2pdf not found (install ghostscript to read postscript)")

// ps2pdf is the converter command; tests point it elsewhere.
var ps2pdf = "ps2pdf"

// convertTimeout caps a single ps2pdf run.
const convertTimeout = 2 * time.Minute

// ParsePDF extracts the plain text of every page.
func ParsePDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("failed to read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// ParsePostscript converts postscript to PDF with ps2pdf and extracts its
// text. The converter is killed when ctx ends or after convertTimeout.
func ParsePostscript(ctx context.Context, data []byte) (string, error) {
	path, err := exec.LookPath(ps2pdf)
	if err != nil {
		return "", ErrNoConverter
	}

	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-", "-")
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("ps2pdf stopped: %w", ctxErr)
		}
		return "", fmt.Errorf("ps2pdf failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParsePDF(out.Bytes())
}
