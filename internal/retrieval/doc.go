// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package retrieval provides the embedding store used for retrieval
// augmented generation.
//
// Documents are split into chunks (see NewSplitter), each chunk is embedded
// by an Embedder and stored in SQLite together with its source id and tags.
// FindWhere embeds the query and ranks the stored chunks by cosine
// similarity, optionally restricted to chunks carrying every requested tag.
//
// # Key Types
//
//   - Store: the interface the rest of docchat programs against
//   - SQLiteStore: Store backed by modernc.org/sqlite
//   - Embedder / OllamaEmbedder: turns text into vectors
//   - Watcher: re-runs a callback when watched files change
//
// # Usage
//
//	store, err := retrieval.Open(cfg.Retrieval, retrieval.NewOllamaEmbedder(client, cfg.Server.EmbedModel), logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	store.Add(ctx, chunks, "/home/me/notes.md", []string{"notes"})
//	records, err := store.FindWhere(ctx, "what did I write about caching?", nil, 4)
package retrieval
