// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/util"
)

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore is a Store backed by a single SQLite database file.
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
	cfg      config.RetrievalConfig
	limiter  *rate.Limiter
	logger   *zap.Logger

	mu         sync.RWMutex
	collection string
	closed     bool
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database named by cfg.Database.
func Open(cfg config.RetrievalConfig, embedder Embedder, logger *zap.Logger) (*SQLiteStore, error) {
	if embedder == nil {
		return nil, errors.New("embedder cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := validCollection(cfg.Collection); err != nil {
		return nil, err
	}

	path := util.ExpandHome(cfg.Database)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	limit := rate.Inf
	if cfg.EmbedRate > 0 {
		limit = rate.Limit(cfg.EmbedRate)
	}
	if cfg.EmbedBatch <= 0 {
		cfg.EmbedBatch = 16
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 1
	}

	logger.Debug("opened embedding store",
		zap.String("path", path),
		zap.String("collection", cfg.Collection),
		zap.String("model", embedder.Model()),
	)
	return &SQLiteStore{
		db:         db,
		embedder:   embedder,
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
		collection: cfg.Collection,
	}, nil
}

// Collection returns the active collection.
func (s *SQLiteStore) Collection() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

// SetCollection switches the active collection. The collection is created
// on its first Add.
func (s *SQLiteStore) SetCollection(name string) error {
	if err := validCollection(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = name
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// =============================================================================
// ADD
// =============================================================================

// Add implements Store.
func (s *SQLiteStore) Add(ctx context.Context, chunks []string, source string, tags []string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	chunks = nonEmpty(chunks)
	tags = normalizeTags(tags)
	collection := s.Collection()

	start := time.Now()
	vectors, err := s.embedAll(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %s: %w", source, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if len(vectors) > 0 {
		if err := ensureCollection(ctx, tx, collection, s.embedder.Model(), len(vectors[0])); err != nil {
			return 0, err
		}
	}
	if _, err := deleteSource(ctx, tx, collection, source); err != nil {
		return 0, err
	}

	now := time.Now().Unix()
	stored := 0
	for i, text := range chunks {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO chunks (collection, source, hash, seq, text, embedding, added_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			collection, source, chunkHash(source, text), i, text, encodeVector(vectors[i]), now)
		if err != nil {
			return 0, fmt.Errorf("failed to store chunk: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		for _, tag := range tags {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO chunk_tags (chunk_id, tag) VALUES (?, ?)`, id, tag); err != nil {
				return 0, fmt.Errorf("failed to tag chunk: %w", err)
			}
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	s.logger.Info("embedded source",
		zap.String("source", source),
		zap.String("collection", collection),
		zap.Int("chunks", stored),
		zap.Strings("tags", tags),
		zap.Duration("elapsed", time.Since(start)),
	)
	return stored, nil
}

// embedAll embeds texts in batches, several batches in flight at a time and
// throttled by the configured request rate.
func (s *SQLiteStore) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedConcurrency)

	for start := 0; start < len(texts); start += s.cfg.EmbedBatch {
		start := start
		end := min(start+s.cfg.EmbedBatch, len(texts))
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			batch, err := s.embedder.Embed(ctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(batch) != end-start {
				return fmt.Errorf("%w: got %d for %d inputs", ErrNoEmbeddings, len(batch), end-start)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func ensureCollection(ctx context.Context, tx *sql.Tx, name, model string, dims int) error {
	var storedModel string
	var storedDims int
	err := tx.QueryRowContext(ctx,
		`SELECT model, dimensions FROM collections WHERE name = ?`, name).Scan(&storedModel, &storedDims)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO collections (name, model, dimensions, created_at) VALUES (?, ?, ?, ?)`,
			name, model, dims, time.Now().Unix())
		return err
	case err != nil:
		return err
	}
	if storedModel != model || storedDims != dims {
		return fmt.Errorf("%w: %q uses %s (%d dims), not %s (%d dims)",
			ErrModelMismatch, name, storedModel, storedDims, model, dims)
	}
	return nil
}

// =============================================================================
// SEARCH
// =============================================================================

// FindWhere implements Store. Results are ordered by cosine similarity,
// ties by insertion order; chunks scoring below retrieval.min_score are
// dropped.
func (s *SQLiteStore) FindWhere(ctx context.Context, query string, tags []string, limit int) ([]Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.Results
	}
	tags = normalizeTags(tags)

	q := `SELECT c.id, c.source, c.text, c.embedding,
	             COALESCE((SELECT group_concat(tag, ',') FROM chunk_tags WHERE chunk_id = c.id), '')
	      FROM chunks c
	      WHERE c.collection = ?`
	args := []any{s.Collection()}
	if len(tags) > 0 {
		q += ` AND c.id IN (SELECT chunk_id FROM chunk_tags WHERE tag IN (` + placeholders(len(tags)) + `)
		                    GROUP BY chunk_id HAVING COUNT(*) = ?)`
		for _, tag := range tags {
			args = append(args, tag)
		}
		args = append(args, len(tags))
	}
	q += ` ORDER BY c.id`

	type row struct {
		id      int64
		source  string
		text    string
		vector  []float32
		tagList string
	}
	var rows []row
	result, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	for result.Next() {
		var r row
		var blob []byte
		if err := result.Scan(&r.id, &r.source, &r.text, &blob, &r.tagList); err != nil {
			result.Close()
			return nil, err
		}
		r.vector = decodeVector(blob)
		rows = append(rows, r)
	}
	if err := result.Err(); err != nil {
		result.Close()
		return nil, err
	}
	result.Close()

	if len(rows) == 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	qv, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(qv) != 1 {
		return nil, ErrNoEmbeddings
	}

	cands := make([]candidate, 0, len(rows))
	for _, r := range rows {
		cands = append(cands, candidate{
			rowID: r.id,
			record: Record{
				Text:   r.text,
				Source: r.source,
				Tags:   splitTags(r.tagList),
				Score:  Cosine(qv[0], r.vector),
			},
		})
	}
	return rank(cands, s.cfg.MinScore, limit), nil
}

// =============================================================================
// SOURCES / COLLECTIONS
// =============================================================================

// Sources implements Store.
func (s *SQLiteStore) Sources(ctx context.Context) ([]SourceInfo, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.source, COUNT(*), MIN(c.added_at),
		        COALESCE((SELECT group_concat(DISTINCT t.tag) FROM chunk_tags t
		                  JOIN chunks c2 ON c2.id = t.chunk_id
		                  WHERE c2.collection = c.collection AND c2.source = c.source), '')
		 FROM chunks c
		 WHERE c.collection = ?
		 GROUP BY c.source
		 ORDER BY c.source`, s.Collection())
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var out []SourceInfo
	for rows.Next() {
		var info SourceInfo
		var added int64
		var tagList string
		if err := rows.Scan(&info.Source, &info.Chunks, &added, &tagList); err != nil {
			return nil, err
		}
		info.AddedAt = time.Unix(added, 0)
		info.Tags = splitTags(tagList)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete implements Store. It returns the number of chunks removed.
func (s *SQLiteStore) Delete(ctx context.Context, source string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n, err := deleteSource(ctx, tx, s.Collection(), source)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// Collections implements Store.
func (s *SQLiteStore) Collections(ctx context.Context) ([]CollectionInfo, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT k.name, k.model, COUNT(DISTINCT c.source), COUNT(c.id)
		 FROM collections k
		 LEFT JOIN chunks c ON c.collection = k.name
		 GROUP BY k.name
		 ORDER BY k.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var out []CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.Model, &info.Sources, &info.Chunks); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func deleteSource(ctx context.Context, tx *sql.Tx, collection, source string) (int, error) {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunk_tags WHERE chunk_id IN
		     (SELECT id FROM chunks WHERE collection = ? AND source = ?)`, collection, source); err != nil {
		return 0, fmt.Errorf("failed to delete tags: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection = ? AND source = ?`, collection, source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func validCollection(name string) error {
	if name == "" || strings.ContainsAny(name, " \t/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

func chunkHash(source, text string) string {
	sum := sha256.Sum256([]byte(source + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func splitTags(list string) []string {
	if list == "" {
		return nil
	}
	tags := strings.Split(list, ",")
	sort.Strings(tags)
	return tags
}

func nonEmpty(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
