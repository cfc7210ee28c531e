// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/jeranaias/docchat/internal/ollama"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrModelMismatch     = errors.New("collection was embedded with a different model")
	ErrInvalidCollection = errors.New("invalid collection name")
	ErrNoEmbeddings      = errors.New("embedder returned the wrong number of vectors")
	ErrClosed            = errors.New("store is closed")
)

// =============================================================================
// TYPES
// =============================================================================

// Record is one retrieved chunk.
type Record struct {
	Text   string
	Source string
	Tags   []string
	Score  float64
}

// SourceInfo summarizes one stored source.
type SourceInfo struct {
	Source  string
	Chunks  int
	Tags    []string
	AddedAt time.Time
}

// CollectionInfo summarizes one collection.
type CollectionInfo struct {
	Name    string
	Model   string
	Sources int
	Chunks  int
}

// Store is a tag-aware chunk store with similarity search. All operations
// apply to the active collection.
type Store interface {
	// Add embeds and stores chunks for source, replacing any chunks the
	// source already had. It returns the number of chunks stored.
	Add(ctx context.Context, chunks []string, source string, tags []string) (int, error)

	// FindWhere returns up to limit chunks most similar to query. Only
	// chunks carrying every tag in tags are considered.
	FindWhere(ctx context.Context, query string, tags []string, limit int) ([]Record, error)

	Sources(ctx context.Context) ([]SourceInfo, error)
	Delete(ctx context.Context, source string) (int, error)
	Collections(ctx context.Context) ([]CollectionInfo, error)

	Collection() string
	SetCollection(name string) error

	Close() error
}

// Embedder turns texts into vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Model() string
}

// OllamaEmbedder embeds through the inference server's /api/embed.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
}

// NewOllamaEmbedder creates an embedder using model.
func NewOllamaEmbedder(client *ollama.Client, model string) *OllamaEmbedder {
	return &OllamaEmbedder{client: client, model: model}
}

// Embed implements Embedder.
func (e *OllamaEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return e.client.Embed(ctx, e.model, inputs)
}

// Model implements Embedder.
func (e *OllamaEmbedder) Model() string {
	return e.model
}
