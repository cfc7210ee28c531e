// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/fetch"
	"github.com/jeranaias/docchat/internal/parser"
	"github.com/jeranaias/docchat/internal/retrieval"
	"github.com/jeranaias/docchat/internal/switches"
)

// ErrNoStore is returned when embedding is requested without a retrieval store.
var ErrNoStore = errors.New("no retrieval store configured")

// =============================================================================
// OUTCOMES
// =============================================================================

// Action is what resolving a reference did.
type Action int

const (
	ActionIgnored Action = iota
	ActionImported
	ActionEmbedded
	ActionSummarized
	ActionImage
	ActionSkipped
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionIgnored:
		return "ignored"
	case ActionImported:
		return "imported"
	case ActionEmbedded:
		return "embedded"
	case ActionSummarized:
		return "summarized"
	case ActionImage:
		return "image"
	case ActionSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome describes one resolved reference.
type Outcome struct {
	Source string
	Action Action

	// Text is appended to the outgoing message (imported or summarized)
	Text string

	// Chunks is the number of chunks added to the store
	Chunks int

	// Warning is set when the reference was skipped for a non-fatal reason
	Warning string
}

// Result is the processed form of one user input.
type Result struct {
	// Content is the outgoing message content
	Content string

	// Images are image references to attach to the message
	Images []string

	Tags []string

	// Context holds records retrieved for the input. It is kept out of
	// Content and sent as a separate system message.
	Context []retrieval.Record

	Outcomes []Outcome
	Warnings []string
	Errors   []error

	// Links are the URLs mentioned in the input
	Links []string
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver applies the document policy to references.
type Resolver struct {
	cfg      *config.Config
	set      *switches.Set
	fetcher  fetch.Fetcher
	store    retrieval.Store
	splitter textsplitter.TextSplitter
	logger   *zap.Logger
}

// NewResolver creates a resolver. store may be nil, in which case embedding
// falls back to importing and retrieval is skipped.
func NewResolver(cfg *config.Config, set *switches.Set, fetcher fetch.Fetcher, store retrieval.Store, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	splitter, err := retrieval.NewSplitter(cfg.Retrieval.Splitter, cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		cfg:      cfg,
		set:      set,
		fetcher:  fetcher,
		store:    store,
		splitter: splitter,
		logger:   logger,
	}, nil
}

// SetStore replaces the retrieval store, for example after a collection
// change. nil disables embedding and retrieval.
func (r *Resolver) SetStore(store retrieval.Store) {
	r.store = store
}

// Store returns the retrieval store, or nil.
func (r *Resolver) Store() retrieval.Store {
	return r.store
}

// Policy returns the current document policy.
func (r *Resolver) Policy() string {
	if p := r.set.Value(switches.DocumentPolicy); p != "" {
		return p
	}
	return switches.PolicyImporting
}

// Resolve handles one source under the current document policy.
func (r *Resolver) Resolve(ctx context.Context, source string, tags []string) (Outcome, error) {
	return r.ResolveWith(ctx, r.Policy(), source, tags)
}

// ResolveWith handles one source under the given policy.
func (r *Resolver) ResolveWith(ctx context.Context, policy, source string, tags []string) (Outcome, error) {
	out := Outcome{Source: source, Action: ActionIgnored}

	// images bypass the policy, so even ignored references are fetched
	content, err := r.fetcher.Fetch(ctx, source)
	if err != nil {
		if policy == switches.PolicyIgnoring {
			r.logger.Debug("ignored reference could not be fetched", zap.String("source", source), zap.Error(err))
			return out, nil
		}
		return out, fmt.Errorf("%s: %w", source, err)
	}

	category := content.Category()
	if category == "image" {
		out.Action = ActionImage
		return out, nil
	}
	if policy == switches.PolicyIgnoring {
		return out, nil
	}
	switch category {
	case "text", "application", "":
	default:
		out.Action = ActionSkipped
		out.Warning = fmt.Sprintf("%s: unsupported content type %s", source, content.MediaType())
		return out, nil
	}

	text, err := parser.Parse(ctx, content.Data, content.ContentType)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupported) {
			out.Action = ActionSkipped
			out.Warning = fmt.Sprintf("%s: unsupported content type %s", source, content.MediaType())
			return out, nil
		}
		return out, fmt.Errorf("%s: %w", source, err)
	}
	if strings.TrimSpace(text) == "" {
		out.Action = ActionSkipped
		out.Warning = fmt.Sprintf("%s: no text found", source)
		return out, nil
	}

	switch policy {
	case switches.PolicyEmbedding:
		if !r.set.IsOn(switches.Embedding) || r.store == nil {
			if r.set.IsOn(switches.Embedding) {
				out.Warning = fmt.Sprintf("%s: %v, importing instead", source, ErrNoStore)
			}
			return r.importText(out, content.Source, text)
		}
		n, err := r.embed(ctx, content.Source, text, tags)
		if err != nil {
			return out, fmt.Errorf("%s: %w", source, err)
		}
		out.Action = ActionEmbedded
		out.Chunks = n
		return out, nil

	case switches.PolicySummarizing:
		wrapped, err := FormatSummary(content.Source, text, r.cfg.Chat.SummaryWords)
		if err != nil {
			return out, err
		}
		out.Action = ActionSummarized
		out.Text = wrapped
		return out, nil

	default:
		return r.importText(out, content.Source, text)
	}
}

func (r *Resolver) importText(out Outcome, source, text string) (Outcome, error) {
	wrapped, err := FormatImport(source, text)
	if err != nil {
		return out, err
	}
	out.Action = ActionImported
	out.Text = wrapped
	return out, nil
}

func (r *Resolver) embed(ctx context.Context, source, text string, tags []string) (int, error) {
	chunks, err := retrieval.Split(r.splitter, text)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	n, err := r.store.Add(ctx, chunks, source, tags)
	if err != nil {
		return 0, err
	}
	r.logger.Info("embedded document",
		zap.String("source", source),
		zap.Int("chunks", n),
		zap.Strings("tags", tags))
	return n, nil
}

// ReadText fetches source and extracts its text regardless of the document
// policy. It returns the canonical source name along with the text.
func (r *Resolver) ReadText(ctx context.Context, source string) (string, string, error) {
	content, err := r.fetcher.Fetch(ctx, source)
	if err != nil {
		return source, "", fmt.Errorf("%s: %w", source, err)
	}
	text, err := parser.Parse(ctx, content.Data, content.ContentType)
	if err != nil {
		return content.Source, "", fmt.Errorf("%s: %w", source, err)
	}
	if strings.TrimSpace(text) == "" {
		return content.Source, "", fmt.Errorf("%s: no text found", source)
	}
	return content.Source, text, nil
}

// Embed stores source in the retrieval store whatever the current policy
// and embedding switch are.
func (r *Resolver) Embed(ctx context.Context, source string, tags []string) (Outcome, error) {
	out := Outcome{Source: source, Action: ActionIgnored}
	if r.store == nil {
		return out, ErrNoStore
	}
	name, text, err := r.ReadText(ctx, source)
	if err != nil {
		return out, err
	}
	n, err := r.embed(ctx, name, text, tags)
	if err != nil {
		return out, fmt.Errorf("%s: %w", source, err)
	}
	out.Action = ActionEmbedded
	out.Chunks = n
	return out, nil
}

// Reembed fetches path again and replaces its chunks in the store. It has
// the signature of a retrieval.ChangeFunc.
func (r *Resolver) Reembed(ctx context.Context, path string, tags []string) error {
	_, err := r.Embed(ctx, path, tags)
	return err
}

// =============================================================================
// INPUT PROCESSING
// =============================================================================

// ProcessInput resolves every reference in text and, when retrieval is on,
// looks up context for it. Failures are collected in the result; the input
// itself is never rejected.
func (r *Resolver) ProcessInput(ctx context.Context, text string) Result {
	ex := Extract(text)
	res := Result{
		Content: text,
		Tags:    ex.Tags,
		Links:   FindURLs(text),
	}

	var appended []string
	for _, ref := range ex.Refs {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, err)
			break
		}
		out, err := r.Resolve(ctx, ref.Source, ref.Tags)
		if err != nil {
			r.logger.Warn("failed to resolve reference", zap.String("source", ref.Source), zap.Error(err))
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Outcomes = append(res.Outcomes, out)
		if out.Warning != "" {
			res.Warnings = append(res.Warnings, out.Warning)
		}
		switch out.Action {
		case ActionImage:
			res.Images = append(res.Images, ref.Source)
		case ActionImported, ActionSummarized:
			appended = append(appended, out.Text)
		}
	}
	if len(appended) > 0 {
		res.Content = text + "\n\n" + strings.Join(appended, "\n\n")
	}

	if r.store != nil && r.set.IsOn(switches.RAG) {
		limit := r.cfg.Retrieval.Results
		records, err := r.store.FindWhere(ctx, text, ex.Tags, limit)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("retrieval: %w", err))
		} else {
			res.Context = records
		}
	}
	return res
}

// EncodeImages fetches image references and returns them base64 encoded,
// in order. References that fail are reported and left out.
func (r *Resolver) EncodeImages(ctx context.Context, refs []string) ([]string, []error) {
	var (
		out  []string
		errs []error
	)
	for _, ref := range refs {
		content, err := r.fetcher.Fetch(ctx, ref)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			continue
		}
		if content.Category() != "image" {
			errs = append(errs, fmt.Errorf("%s: not an image (%s)", ref, content.MediaType()))
			continue
		}
		out = append(out, base64.StdEncoding.EncodeToString(content.Data))
	}
	return out, errs
}

