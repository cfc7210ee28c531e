// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema is the SQLite schema of the embedding store.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per collection; the embedding model is pinned on first use
CREATE TABLE IF NOT EXISTS collections (
    name TEXT PRIMARY KEY,
    model TEXT NOT NULL DEFAULT '',
    dimensions INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL  -- Unix timestamp
) WITHOUT ROWID;

-- Chunks: text plus its embedding as little-endian float32
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    collection TEXT NOT NULL,
    source TEXT NOT NULL,
    hash TEXT NOT NULL,         -- sha256 of source and text
    seq INTEGER NOT NULL,       -- position within the source
    text TEXT NOT NULL,
    embedding BLOB NOT NULL,
    added_at INTEGER NOT NULL,  -- Unix timestamp
    UNIQUE(collection, hash)
);

CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(collection, source);

CREATE TABLE IF NOT EXISTS chunk_tags (
    chunk_id INTEGER NOT NULL,
    tag TEXT NOT NULL,
    PRIMARY KEY(chunk_id, tag)
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_chunk_tags_tag ON chunk_tags(tag);
`

// InitMetadata initializes the metadata table with default values
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`
