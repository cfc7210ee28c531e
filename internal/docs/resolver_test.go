// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docs

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/fetch"
	"github.com/jeranaias/docchat/internal/retrieval"
	"github.com/jeranaias/docchat/internal/switches"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeFetcher struct {
	content map[string]*fetch.Content
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, source string) (*fetch.Content, error) {
	f.calls = append(f.calls, source)
	c, ok := f.content[source]
	if !ok {
		return nil, fetch.ErrNotFound
	}
	return c, nil
}

type addCall struct {
	Chunks []string
	Source string
	Tags   []string
}

type fakeStore struct {
	adds    []addCall
	queries []string
	records []retrieval.Record
}

func (s *fakeStore) Add(_ context.Context, chunks []string, source string, tags []string) (int, error) {
	s.adds = append(s.adds, addCall{Chunks: chunks, Source: source, Tags: tags})
	return len(chunks), nil
}

func (s *fakeStore) FindWhere(_ context.Context, query string, _ []string, _ int) ([]retrieval.Record, error) {
	s.queries = append(s.queries, query)
	return s.records, nil
}

func (s *fakeStore) Sources(context.Context) ([]retrieval.SourceInfo, error)         { return nil, nil }
func (s *fakeStore) Delete(context.Context, string) (int, error)                      { return 0, nil }
func (s *fakeStore) Collections(context.Context) ([]retrieval.CollectionInfo, error) { return nil, nil }
func (s *fakeStore) Collection() string                                               { return "default" }
func (s *fakeStore) SetCollection(string) error                                       { return nil }
func (s *fakeStore) Close() error                                                     { return nil }

func newTestResolver(t *testing.T, policy string, fetcher fetch.Fetcher, store retrieval.Store) (*Resolver, *switches.Set) {
	t.Helper()
	cfg := config.Default()
	d := cfg.Switches()
	d.DocumentPolicy = policy
	set, err := switches.NewSessionSet(d)
	require.NoError(t, err)

	r, err := NewResolver(cfg, set, fetcher, store, nil)
	require.NoError(t, err)
	return r, set
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// =============================================================================
// EXTRACTION
// =============================================================================

func TestExtract_Tags(t *testing.T) {
	ex := Extract("compare #Go and #rust-lang, also #go again (#notes/2024).")

	assert.Equal(t, []string{"go", "rust-lang", "notes/2024"}, ex.Tags)
	assert.Empty(t, ex.Refs, "tags are never references")
}

func TestExtract_TagNotFileOrURL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "hello")

	ex := Extract("see " + path + " #project and https://example.com/a#frag")

	assert.Equal(t, []string{"project"}, ex.Tags)
	require.Len(t, ex.Refs, 2)
	assert.Equal(t, KindFile, ex.Refs[0].Kind)
	assert.Equal(t, path, ex.Refs[0].Source)
	assert.Equal(t, KindURL, ex.Refs[1].Kind)
	assert.Equal(t, "https://example.com/a#frag", ex.Refs[1].Source)
	for _, ref := range ex.Refs {
		assert.Equal(t, []string{"project"}, ref.Tags)
	}
}

func TestExtract_TrimsPunctuationAndDedupes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.md", "# A")

	ex := Extract("read (" + path + "), then https://example.com/x. Again: https://example.com/x!")

	got := make([]string, 0, len(ex.Refs))
	for _, ref := range ex.Refs {
		got = append(got, ref.Kind.String()+":"+ref.Source)
	}
	want := []string{"file:" + path, "url:https://example.com/x"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("refs mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_SkipsMissingFilesAndDirectories(t *testing.T) {
	dir := t.TempDir()

	ex := Extract("look at " + dir + " and " + filepath.Join(dir, "missing.txt") + " and /")

	assert.Empty(t, ex.Refs)
}

func TestExtract_FileURL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "text")

	ex := Extract("open file://" + path)

	require.Len(t, ex.Refs, 1)
	assert.Equal(t, KindFile, ex.Refs[0].Kind)
	assert.Equal(t, "file://"+path, ex.Refs[0].Source)
}

func TestFindURLs(t *testing.T) {
	urls := FindURLs("see https://a.example/one, http://b.example/two) and https://a.example/one")
	assert.Equal(t, []string{"https://a.example/one", "http://b.example/two"}, urls)
}

// =============================================================================
// POLICY
// =============================================================================

func TestProcessInput_IgnoringLeavesContentUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "secret notes")
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		path: {Data: []byte("secret notes"), ContentType: "text/plain", Source: path},
	}}
	r, _ := newTestResolver(t, switches.PolicyIgnoring, fetcher, nil)

	input := "what is in " + path + "?"
	res := r.ProcessInput(context.Background(), input)

	assert.Equal(t, input, res.Content)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Images)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionIgnored, res.Outcomes[0].Action)
}

func TestProcessInput_IgnoringAttachesImageWithoutExtension(t *testing.T) {
	url := "https://example.com/avatar"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		url: {Data: []byte("\x89PNG"), ContentType: "image/png", Source: url},
	}}
	r, _ := newTestResolver(t, switches.PolicyIgnoring, fetcher, nil)

	input := "who is this? " + url
	res := r.ProcessInput(context.Background(), input)

	assert.Equal(t, []string{url}, res.Images)
	assert.Equal(t, input, res.Content)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionImage, res.Outcomes[0].Action)
}

func TestProcessInput_IgnoringSwallowsFetchErrors(t *testing.T) {
	r, _ := newTestResolver(t, switches.PolicyIgnoring, &fakeFetcher{}, nil)

	input := "see https://example.com/gone"
	res := r.ProcessInput(context.Background(), input)

	assert.Equal(t, input, res.Content)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionIgnored, res.Outcomes[0].Action)
}

func TestProcessInput_ImportingHTMLFixture(t *testing.T) {
	html, err := os.ReadFile(filepath.Join("testdata", "article.html"))
	require.NoError(t, err)

	url := "https://example.com/release"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		url: {Data: html, ContentType: "text/html; charset=utf-8", Source: url},
	}}
	r, _ := newTestResolver(t, switches.PolicyImporting, fetcher, nil)

	input := "summarize " + url
	res := r.ProcessInput(context.Background(), input)

	require.Empty(t, res.Errors)
	assert.True(t, strings.HasPrefix(res.Content, input+"\n\n"))
	assert.Contains(t, res.Content, "--- begin "+url+" ---")
	assert.Contains(t, res.Content, "# Release Notes")
	assert.Contains(t, res.Content, "Version 2 adds **streaming**")
	assert.NotContains(t, res.Content, "tracking")
	assert.Equal(t, []string{url}, res.Links)
}

func TestProcessInput_Summarizing(t *testing.T) {
	url := "https://example.com/long"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		url: {Data: []byte("a long article"), ContentType: "text/plain", Source: url},
	}}
	r, _ := newTestResolver(t, switches.PolicySummarizing, fetcher, nil)
	r.cfg.Chat.SummaryWords = 42

	res := r.ProcessInput(context.Background(), url)

	require.Empty(t, res.Errors)
	assert.Contains(t, res.Content, "in about 42 words")
	assert.Contains(t, res.Content, "a long article")
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionSummarized, res.Outcomes[0].Action)
}

func TestProcessInput_EmbeddingAddsOnceAndLeavesContent(t *testing.T) {
	url := "https://example.com/guide"
	page := "<html><body><h1>Guide</h1><p>Cats are independent animals.</p></body></html>"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		url: {Data: []byte(page), ContentType: "text/html", Source: url},
	}}
	store := &fakeStore{}
	r, _ := newTestResolver(t, switches.PolicyEmbedding, fetcher, store)

	input := "remember " + url + " #pets"
	res := r.ProcessInput(context.Background(), input)

	require.Empty(t, res.Errors)
	assert.Equal(t, input, res.Content)
	require.Len(t, store.adds, 1)
	assert.Equal(t, url, store.adds[0].Source)
	assert.Equal(t, []string{"pets"}, store.adds[0].Tags)
	assert.Contains(t, strings.Join(store.adds[0].Chunks, "\n"), "Cats are independent animals.")
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionEmbedded, res.Outcomes[0].Action)
	assert.Equal(t, len(store.adds[0].Chunks), res.Outcomes[0].Chunks)
}

func TestProcessInput_EmbeddingWithoutStoreImports(t *testing.T) {
	url := "https://example.com/a"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		url: {Data: []byte("plain body"), ContentType: "text/plain", Source: url},
	}}
	r, _ := newTestResolver(t, switches.PolicyEmbedding, fetcher, nil)

	res := r.ProcessInput(context.Background(), url)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionImported, res.Outcomes[0].Action)
	assert.Contains(t, res.Content, "plain body")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "importing instead")
}

func TestProcessInput_EmbeddingSwitchOffImports(t *testing.T) {
	url := "https://example.com/a"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		url: {Data: []byte("plain body"), ContentType: "text/plain", Source: url},
	}}
	store := &fakeStore{}
	r, set := newTestResolver(t, switches.PolicyEmbedding, fetcher, store)
	sel, err := set.Selector(switches.Embedding)
	require.NoError(t, err)
	require.NoError(t, sel.Set("off"))

	res := r.ProcessInput(context.Background(), url)

	assert.Empty(t, store.adds)
	assert.Empty(t, res.Warnings)
	assert.Contains(t, res.Content, "plain body")
}

func TestProcessInput_ImagesBypassPolicy(t *testing.T) {
	url := "https://example.com/cat.png"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		url: {Data: []byte("\x89PNG"), ContentType: "image/png", Source: url},
	}}

	for _, policy := range []string{switches.PolicyImporting, switches.PolicyIgnoring, switches.PolicyEmbedding} {
		t.Run(policy, func(t *testing.T) {
			store := &fakeStore{}
			r, _ := newTestResolver(t, policy, fetcher, store)
			input := "what is in " + url
			res := r.ProcessInput(context.Background(), input)

			assert.Equal(t, []string{url}, res.Images)
			assert.Equal(t, input, res.Content)
			assert.Empty(t, store.adds)
		})
	}
}

func TestProcessInput_UnsupportedCategoryWarns(t *testing.T) {
	url := "https://example.com/clip.mp4"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		url: {Data: []byte{0, 1, 2}, ContentType: "video/mp4", Source: url},
	}}
	r, _ := newTestResolver(t, switches.PolicyImporting, fetcher, nil)

	res := r.ProcessInput(context.Background(), "watch "+url)

	assert.Equal(t, "watch "+url, res.Content)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "video/mp4")
}

func TestProcessInput_BadReferenceDoesNotBlockOthers(t *testing.T) {
	good := "https://example.com/good"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		good: {Data: []byte("good text"), ContentType: "text/plain", Source: good},
	}}
	r, _ := newTestResolver(t, switches.PolicyImporting, fetcher, nil)

	res := r.ProcessInput(context.Background(), "https://example.com/bad and "+good)

	require.Len(t, res.Errors, 1)
	assert.True(t, errors.Is(res.Errors[0], fetch.ErrNotFound))
	assert.Contains(t, res.Errors[0].Error(), "https://example.com/bad")
	assert.Contains(t, res.Content, "good text")
}

func TestProcessInput_RetrievalContextIsSeparate(t *testing.T) {
	store := &fakeStore{records: []retrieval.Record{
		{Text: "cats purr", Source: "/pets.md", Tags: []string{"pets"}, Score: 0.9},
	}}
	r, _ := newTestResolver(t, switches.PolicyImporting, &fakeFetcher{}, store)

	input := "why do cats purr? #pets"
	res := r.ProcessInput(context.Background(), input)

	assert.Equal(t, input, res.Content)
	assert.Equal(t, []string{input}, store.queries)
	require.Len(t, res.Context, 1)

	ctxText := FormatContext(res.Context)
	assert.Contains(t, ctxText, "[/pets.md #pets]")
	assert.Contains(t, ctxText, "cats purr")
	assert.Empty(t, FormatContext(nil))
}

func TestReembed(t *testing.T) {
	path := "/notes/today.md"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		path: {Data: []byte("# Today\n\nwrote tests"), ContentType: "text/markdown", Source: path},
	}}
	store := &fakeStore{}
	r, _ := newTestResolver(t, switches.PolicyEmbedding, fetcher, store)

	require.NoError(t, r.Reembed(context.Background(), path, []string{"journal"}))
	require.Len(t, store.adds, 1)
	assert.Equal(t, []string{"journal"}, store.adds[0].Tags)

	r.SetStore(nil)
	assert.ErrorIs(t, r.Reembed(context.Background(), path, nil), ErrNoStore)
}

func TestEmbed_IgnoresPolicy(t *testing.T) {
	url := "https://example.com/notes"
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		url: {Data: []byte("notes about ferrets"), ContentType: "text/plain", Source: url},
	}}
	store := &fakeStore{}
	r, _ := newTestResolver(t, switches.PolicyIgnoring, fetcher, store)

	out, err := r.Embed(context.Background(), url, []string{"pets"})
	require.NoError(t, err)
	assert.Equal(t, ActionEmbedded, out.Action)
	require.Len(t, store.adds, 1)
	assert.Equal(t, out.Chunks, len(store.adds[0].Chunks))

	_, err = r.Embed(context.Background(), "https://example.com/missing", nil)
	assert.ErrorIs(t, err, fetch.ErrNotFound)
}

func TestReadText(t *testing.T) {
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		"/a.txt":    {Data: []byte("alpha"), ContentType: "text/plain", Source: "/a.txt"},
		"/empty":    {Data: []byte("  \n"), ContentType: "text/plain", Source: "/empty"},
		"/clip.mp4": {Data: []byte{0, 1}, ContentType: "video/mp4", Source: "/clip.mp4"},
	}}
	r, _ := newTestResolver(t, switches.PolicyIgnoring, fetcher, nil)

	name, text, err := r.ReadText(context.Background(), "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "/a.txt", name)
	assert.Contains(t, text, "alpha")

	_, _, err = r.ReadText(context.Background(), "/empty")
	assert.ErrorContains(t, err, "no text found")

	_, _, err = r.ReadText(context.Background(), "/clip.mp4")
	assert.Error(t, err)
}

func TestEncodeImages(t *testing.T) {
	fetcher := &fakeFetcher{content: map[string]*fetch.Content{
		"/a.png": {Data: []byte("png"), ContentType: "image/png", Source: "/a.png"},
		"/b.txt": {Data: []byte("txt"), ContentType: "text/plain", Source: "/b.txt"},
	}}
	r, _ := newTestResolver(t, switches.PolicyImporting, fetcher, nil)

	images, errs := r.EncodeImages(context.Background(), []string{"/a.png", "/b.txt", "/missing.png"})

	assert.Equal(t, []string{base64.StdEncoding.EncodeToString([]byte("png"))}, images)
	assert.Len(t, errs, 2)
}

func TestFormatImport(t *testing.T) {
	got, err := FormatImport("/x.txt", "  body \n")
	require.NoError(t, err)
	assert.Equal(t, "--- begin /x.txt ---\nbody\n--- end /x.txt ---", got)
}
