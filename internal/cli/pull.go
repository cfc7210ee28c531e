// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"

	"github.com/jeranaias/docchat/internal/ollama"
)

const pullBarWidth = 40

// ensureModel checks that name is installed on the server and pulls it
// when allowed, drawing the download progress on w.
func ensureModel(ctx context.Context, client *ollama.Client, name string, pull bool, w io.Writer, st Styles) error {
	if client.ModelExists(ctx, name) {
		return nil
	}
	if !pull {
		return &NotFoundError{Resource: "model", ID: name + ` (run "ollama pull ` + name + `" or set server.pull_missing)`}
	}

	fmt.Fprintln(w, st.Dim.Render("pulling "+name))
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = pullBarWidth

	var status string
	err := client.Pull(ctx, name, func(p ollama.PullProgress) {
		if p.Total > 0 {
			frac := float64(p.Completed) / float64(p.Total)
			fmt.Fprintf(w, "\r%s %s / %s", bar.ViewAs(frac),
				humanize.Bytes(uint64(p.Completed)), humanize.Bytes(uint64(p.Total)))
			return
		}
		if p.Status != "" && p.Status != status {
			status = p.Status
			fmt.Fprintf(w, "\r\x1b[K%s\n", st.Dim.Render(status))
		}
	})
	fmt.Fprintln(w)
	if err != nil {
		return fmt.Errorf("failed to pull %s: %w", name, err)
	}
	fmt.Fprintln(w, st.Success.Render("pulled "+name))
	return nil
}
