// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - The status command.
//
// Reports whether the inference server is up, whether the configured models
// are installed, whether a chat session is listening on the socket and what
// the retrieval store holds. A server that is down is reported, not failed.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/retrieval"
	"github.com/jeranaias/docchat/internal/storage"
)

const statusTimeout = 5 * time.Second

// StatusReport is what the status command collects.
type StatusReport struct {
	Server      string                     `json:"server"`
	Running     bool                       `json:"running"`
	ServerError string                     `json:"server_error,omitempty"`
	Model       string                     `json:"model"`
	ModelReady  bool                       `json:"model_installed"`
	EmbedModel  string                     `json:"embed_model"`
	EmbedReady  bool                       `json:"embed_model_installed"`
	Models      []string                   `json:"models,omitempty"`
	Socket      string                     `json:"socket"`
	Listening   bool                       `json:"session_listening"`
	Database    string                     `json:"database"`
	Collections []retrieval.CollectionInfo `json:"collections,omitempty"`
	StoreError  string                     `json:"store_error,omitempty"`
	Sessions    int                        `json:"saved_sessions"`
}

func newStatusCommand(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server, model, socket and store status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
			defer cancel()

			report := a.collectStatus(ctx)
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printStatus(cmd.OutOrStdout(), NewStyles(cmd.OutOrStdout(), GetColorProfile()), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	return cmd
}

func (a *app) collectStatus(ctx context.Context) StatusReport {
	cfg := a.cfg
	r := StatusReport{
		Server:     cfg.Server.URL,
		Model:      cfg.Server.Model,
		EmbedModel: cfg.Server.EmbedModel,
		Socket:     config.Path(cfg.Socket.Path),
		Database:   config.Path(cfg.Retrieval.Database),
	}

	client := newClient(cfg)
	if err := client.CheckRunning(ctx); err != nil {
		r.ServerError = err.Error()
	} else {
		r.Running = true
		if models, err := client.ListModels(ctx); err == nil {
			for _, m := range models {
				r.Models = append(r.Models, m.Name)
			}
		}
		r.ModelReady = client.ModelExists(ctx, r.Model)
		r.EmbedReady = client.ModelExists(ctx, r.EmbedModel)
	}

	r.Listening = a.socketClient().Alive(ctx)

	// only look inside an existing database; opening creates one
	if storage.Exists(r.Database) {
		store, err := retrieval.Open(cfg.Retrieval, retrieval.NewOllamaEmbedder(client, cfg.Server.EmbedModel), a.logger)
		if err != nil {
			r.StoreError = err.Error()
		} else {
			r.Collections, err = store.Collections(ctx)
			if err != nil {
				r.StoreError = err.Error()
			}
			store.Close()
		}
	}

	if dir, err := storage.NewSessionDir(cfg.Chat.SessionsDir); err == nil {
		if list, err := dir.List(); err == nil {
			r.Sessions = len(list)
		}
	}
	return r
}

func printStatus(w io.Writer, st Styles, r StatusReport) {
	p := message.NewPrinter(language.English)
	yesNo := func(ok bool, yes, no string) string {
		if ok {
			return st.Success.Render(yes)
		}
		return st.Warning.Render(no)
	}

	fmt.Fprintln(w, st.Title.Render("docchat status"))

	server := yesNo(r.Running, "running", "not running")
	if r.ServerError != "" {
		server += st.Dim.Render(" (" + r.ServerError + ")")
	}
	fmt.Fprintln(w, st.Label.Render("Server")+r.Server+" "+server)
	fmt.Fprintln(w, st.Label.Render("Model")+r.Model+" "+yesNo(r.ModelReady, "installed", "missing"))
	fmt.Fprintln(w, st.Label.Render("Embed model")+r.EmbedModel+" "+yesNo(r.EmbedReady, "installed", "missing"))
	if len(r.Models) > 0 {
		fmt.Fprintln(w, st.Row("Installed", strings.Join(r.Models, ", ")))
	}
	fmt.Fprintln(w, st.Label.Render("Session")+r.Socket+" "+yesNo(r.Listening, "listening", "none"))
	fmt.Fprintln(w, st.Row("Saved sessions", p.Sprintf("%d", r.Sessions)))

	fmt.Fprintln(w, st.Section.Render("Retrieval"))
	fmt.Fprintln(w, st.Row("Database", r.Database))
	if r.StoreError != "" {
		fmt.Fprintln(w, st.Error.Render(r.StoreError))
	}
	if len(r.Collections) == 0 {
		fmt.Fprintln(w, st.Dim.Render("no collections"))
	}
	for _, c := range r.Collections {
		fmt.Fprintln(w, st.Row(c.Name, p.Sprintf("%d sources, %d chunks (%s)", c.Sources, c.Chunks, c.Model)))
	}
}
