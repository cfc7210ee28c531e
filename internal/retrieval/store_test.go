// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat/internal/config"
)

// keywordEmbedder maps text onto counts of a few keywords.
type keywordEmbedder struct {
	model string
	calls atomic.Int32
	mu    sync.Mutex
	sizes []int
}

var vocabulary = []string{"cat", "dog", "fish"}

func (e *keywordEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.sizes = append(e.sizes, len(inputs))
	e.mu.Unlock()

	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		v := make([]float32, len(vocabulary))
		for j, word := range vocabulary {
			v[j] = float32(strings.Count(strings.ToLower(in), word))
		}
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedder) Model() string {
	if e.model == "" {
		return "keyword"
	}
	return e.model
}

func openTestStore(t *testing.T, embedder Embedder, mutate ...func(*config.RetrievalConfig)) *SQLiteStore {
	t.Helper()
	cfg := config.Default().Retrieval
	cfg.Database = filepath.Join(t.TempDir(), "embeddings.db")
	cfg.MinScore = 0
	cfg.EmbedRate = 0
	for _, m := range mutate {
		m(&cfg)
	}
	store, err := Open(cfg, embedder, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_AddAndFind(t *testing.T) {
	store := openTestStore(t, &keywordEmbedder{})
	ctx := context.Background()

	n, err := store.Add(ctx, []string{"the cat sat", "a dog barked", "fish swim"}, "/pets.txt", []string{"pets"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	records, err := store.FindWhere(ctx, "dog", nil, 2)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, "a dog barked", records[0].Text)
	assert.Equal(t, "/pets.txt", records[0].Source)
	assert.Equal(t, []string{"pets"}, records[0].Tags)
	assert.InDelta(t, 1.0, records[0].Score, 1e-9)
	assert.LessOrEqual(t, len(records), 2)
}

func TestStore_TagFilterRequiresEveryTag(t *testing.T) {
	store := openTestStore(t, &keywordEmbedder{})
	ctx := context.Background()

	_, err := store.Add(ctx, []string{"cat facts"}, "a", []string{"#Pets", "animals"})
	require.NoError(t, err)
	_, err = store.Add(ctx, []string{"cat food"}, "b", []string{"pets"})
	require.NoError(t, err)

	records, err := store.FindWhere(ctx, "cat", []string{"pets"}, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = store.FindWhere(ctx, "cat", []string{"pets", "animals"}, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].Source)
	assert.Equal(t, []string{"animals", "pets"}, records[0].Tags)

	records, err = store.FindWhere(ctx, "cat", []string{"missing"}, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_TiesKeepInsertionOrder(t *testing.T) {
	store := openTestStore(t, &keywordEmbedder{})
	ctx := context.Background()

	_, err := store.Add(ctx, []string{"cat one", "cat two", "cat three"}, "s", nil)
	require.NoError(t, err)

	records, err := store.FindWhere(ctx, "cat", nil, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "cat one", records[0].Text)
	assert.Equal(t, "cat two", records[1].Text)
	assert.Equal(t, "cat three", records[2].Text)
}

func TestStore_MinScoreDropsWeakMatches(t *testing.T) {
	store := openTestStore(t, &keywordEmbedder{}, func(c *config.RetrievalConfig) { c.MinScore = 0.5 })
	ctx := context.Background()

	_, err := store.Add(ctx, []string{"cat", "dog"}, "s", nil)
	require.NoError(t, err)

	records, err := store.FindWhere(ctx, "cat", nil, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "cat", records[0].Text)
}

func TestStore_AddReplacesSource(t *testing.T) {
	store := openTestStore(t, &keywordEmbedder{})
	ctx := context.Background()

	_, err := store.Add(ctx, []string{"old cat", "old dog"}, "doc", nil)
	require.NoError(t, err)
	_, err = store.Add(ctx, []string{"new fish"}, "doc", []string{"v2"})
	require.NoError(t, err)

	sources, err := store.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "doc", sources[0].Source)
	assert.Equal(t, 1, sources[0].Chunks)
	assert.Equal(t, []string{"v2"}, sources[0].Tags)
}

func TestStore_Delete(t *testing.T) {
	store := openTestStore(t, &keywordEmbedder{})
	ctx := context.Background()

	_, err := store.Add(ctx, []string{"cat", "dog"}, "a", []string{"x"})
	require.NoError(t, err)
	_, err = store.Add(ctx, []string{"fish"}, "b", nil)
	require.NoError(t, err)

	n, err := store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, n)

	sources, err := store.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "b", sources[0].Source)
}

func TestStore_Collections(t *testing.T) {
	store := openTestStore(t, &keywordEmbedder{})
	ctx := context.Background()

	_, err := store.Add(ctx, []string{"cat"}, "a", nil)
	require.NoError(t, err)

	require.NoError(t, store.SetCollection("work"))
	assert.Equal(t, "work", store.Collection())
	_, err = store.Add(ctx, []string{"dog", "fish"}, "b", nil)
	require.NoError(t, err)

	records, err := store.FindWhere(ctx, "cat", nil, 10)
	require.NoError(t, err)
	for _, r := range records {
		assert.NotEqual(t, "a", r.Source, "collections must be isolated")
	}

	collections, err := store.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, collections, 2)
	assert.Equal(t, CollectionInfo{Name: "default", Model: "keyword", Sources: 1, Chunks: 1}, collections[0])
	assert.Equal(t, CollectionInfo{Name: "work", Model: "keyword", Sources: 1, Chunks: 2}, collections[1])

	assert.ErrorIs(t, store.SetCollection("bad name"), ErrInvalidCollection)
}

func TestStore_ModelMismatch(t *testing.T) {
	cfg := config.Default().Retrieval
	cfg.Database = filepath.Join(t.TempDir(), "e.db")
	ctx := context.Background()

	first, err := Open(cfg, &keywordEmbedder{model: "one"}, nil)
	require.NoError(t, err)
	_, err = first.Add(ctx, []string{"cat"}, "a", nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(cfg, &keywordEmbedder{model: "two"}, nil)
	require.NoError(t, err)
	defer second.Close()
	_, err = second.Add(ctx, []string{"dog"}, "b", nil)
	assert.ErrorIs(t, err, ErrModelMismatch)
}

func TestStore_EmbedsInBatches(t *testing.T) {
	embedder := &keywordEmbedder{}
	store := openTestStore(t, embedder, func(c *config.RetrievalConfig) {
		c.EmbedBatch = 2
		c.EmbedConcurrency = 2
	})

	n, err := store.Add(context.Background(), []string{"cat 1", "cat 2", "cat 3", "cat 4", "cat 5"}, "s", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int32(3), embedder.calls.Load())
	assert.ElementsMatch(t, []int{2, 2, 1}, embedder.sizes)
}

func TestStore_EmptyStoreSkipsQueryEmbedding(t *testing.T) {
	embedder := &keywordEmbedder{}
	store := openTestStore(t, embedder)

	records, err := store.FindWhere(context.Background(), "anything", nil, 4)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, embedder.calls.Load())
}

func TestStore_ClosedStore(t *testing.T) {
	store := openTestStore(t, &keywordEmbedder{})
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.FindWhere(context.Background(), "cat", nil, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 2}))
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0.25, -1.5, 3}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}

func TestSplitter(t *testing.T) {
	text := strings.Repeat("word ", 100) + "\n\n" + strings.Repeat("more ", 100)

	for _, kind := range []string{SplitCharacter, SplitRecursive} {
		t.Run(kind, func(t *testing.T) {
			s, err := NewSplitter(kind, 200, 20)
			require.NoError(t, err)
			chunks, err := Split(s, text)
			require.NoError(t, err)
			assert.Greater(t, len(chunks), 1)
			for _, c := range chunks {
				assert.NotEmpty(t, strings.TrimSpace(c))
			}
		})
	}

	s, err := NewSplitter(SplitMarkdown, 200, 20)
	require.NoError(t, err)
	chunks, err := Split(s, "# Title\n\nSome text.\n\n## Part\n\nMore text.")
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)

	_, err = NewSplitter("sentence", 10, 0)
	assert.Error(t, err)
}

func TestWatcher_CallsBackOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	other := filepath.Join(dir, "other.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	var mu sync.Mutex
	var seen []string
	var seenTags []string
	w, err := NewWatcher(40*time.Millisecond, func(_ context.Context, p string, tags []string) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p)
		seenTags = tags
		return nil
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Add(path, []string{"notes"}))
	assert.Equal(t, []string{path}, w.Watched())

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, path, seen[0])
	assert.Equal(t, []string{"notes"}, seenTags)
	for _, p := range seen {
		assert.NotEqual(t, other, p)
	}
	mu.Unlock()

	assert.True(t, w.Remove(path))
	assert.False(t, w.Remove(path))
	assert.Empty(t, w.Watched())
}
