// Package artifact implements the precompiled policy artifact cache
// (SPEC_FULL.md §6): a content-addressed directory per compiled policy,
// indexed by a modernc.org/sqlite manifest table for lookup by policy id
// without a directory walk. The cache stores compiled-policy metadata
// only -- never facts or decisions.
package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Manifest describes one cached compiled policy.
type Manifest struct {
	ID            string   `json:"id"`
	ContentHash   string   `json:"content_hash"`
	Variables     []string `json:"variables"`
	Invariants    []string `json:"invariants"`
	CompiledAtRFC string   `json:"compiled_at"`
}

// Cache is a content-addressed store for compiled-policy manifests,
// rooted at a cache directory on disk and indexed by a local sqlite
// database. The zero value is not usable; build one with Open.
type Cache struct {
	root string
	db   *sql.DB
}

// Open opens (creating if absent) the cache rooted at dir, along with its
// artifacts.db index.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create cache dir: %w", err)
	}
	dbPath := filepath.Join(dir, "artifacts.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("artifact: open index: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	dir_name TEXT NOT NULL,
	compiled_at TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("artifact: init schema: %w", err)
	}
	return &Cache{root: dir, db: db}, nil
}

// Close releases the underlying sqlite connection.
func (c *Cache) Close() error { return c.db.Close() }

// dirFor returns the content-addressed directory for a given hash, hex
// encoded by the caller (xxhash.Sum64 formatted as %016x).
func (c *Cache) dirFor(contentHash string) string {
	return filepath.Join(c.root, contentHash)
}

// Put writes m's manifest.json under its content-hash directory and
// upserts the id -> content-hash -> directory mapping into the index.
func (c *Cache) Put(ctx context.Context, m Manifest) error {
	dir := c.dirFor(m.ContentHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact: create artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644); err != nil {
		return fmt.Errorf("artifact: write manifest: %w", err)
	}

	const upsert = `
INSERT INTO artifacts (id, content_hash, dir_name, compiled_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET content_hash = excluded.content_hash,
	dir_name = excluded.dir_name, compiled_at = excluded.compiled_at;`
	_, err = c.db.ExecContext(ctx, upsert, m.ID, m.ContentHash, m.ContentHash, m.CompiledAtRFC)
	if err != nil {
		return fmt.Errorf("artifact: index manifest: %w", err)
	}
	return nil
}

// ErrNotFound is returned by Get when no manifest is indexed for id.
var ErrNotFound = errors.New("artifact: not found")

// Get looks up the cached manifest for a policy id, reading manifest.json
// from the directory recorded in the index.
func (c *Cache) Get(ctx context.Context, id string) (Manifest, error) {
	var dirName string
	row := c.db.QueryRowContext(ctx, `SELECT dir_name FROM artifacts WHERE id = ?;`, id)
	if err := row.Scan(&dirName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Manifest{}, ErrNotFound
		}
		return Manifest{}, fmt.Errorf("artifact: lookup index: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(c.root, dirName, "manifest.json"))
	if err != nil {
		return Manifest{}, fmt.Errorf("artifact: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("artifact: decode manifest: %w", err)
	}
	return m, nil
}

// Has reports whether content-hash has an on-disk manifest already,
// letting a caller skip recompilation without touching the index.
func (c *Cache) Has(contentHash string) bool {
	_, err := os.Stat(filepath.Join(c.dirFor(contentHash), "manifest.json"))
	return err == nil
}
