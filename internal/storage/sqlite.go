// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		title TEXT,
		format TEXT,
		content_hash TEXT NOT NULL UNIQUE,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sources_content_hash ON sources(content_hash);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		page_start INTEGER NOT NULL DEFAULT 0,
		page_end INTEGER NOT NULL DEFAULT 0,
		heading_path TEXT NOT NULL DEFAULT '',
		vectorized INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source_id ON chunks(source_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_source_chunk ON chunks(source_id, chunk_index);
	CREATE INDEX IF NOT EXISTS idx_chunks_vectorized ON chunks(vectorized);

	CREATE TABLE IF NOT EXISTS behaviors (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		mode TEXT,
		status TEXT,
		citation_count INTEGER NOT NULL DEFAULT 0,
		top_score REAL NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateSource inserts a source.
func (s *SQLiteStorage) CreateSource(ctx context.Context, src *models.Source) error {
	now := time.Now()
	src.CreatedAt = now
	src.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (id, title, format, content_hash, size_bytes, chunk_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Title, src.Format, src.ContentHash, src.SizeBytes, src.ChunkCount, src.CreatedAt, src.UpdatedAt,
	)
	return err
}

func scanSource(row interface{ Scan(...interface{}) error }) (*models.Source, error) {
	var src models.Source
	err := row.Scan(&src.ID, &src.Title, &src.Format, &src.ContentHash,
		&src.SizeBytes, &src.ChunkCount, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

const sourceColumns = `id, title, format, content_hash, size_bytes, chunk_count, created_at, updated_at`

// GetSource returns a source by ID.
func (s *SQLiteStorage) GetSource(ctx context.Context, id string) (*models.Source, error) {
	src, err := scanSource(s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("source %s: %w", id, sql.ErrNoRows)
	}
	return src, err
}

// GetSourceByHash returns the source with the given content hash, or
// sql.ErrNoRows when none exists.
func (s *SQLiteStorage) GetSourceByHash(ctx context.Context, contentHash string) (*models.Source, error) {
	return scanSource(s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE content_hash = ?`, contentHash))
}

// ListSources returns sources with offset and limit, newest first.
func (s *SQLiteStorage) ListSources(ctx context.Context, offset, limit int) ([]*models.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source and its chunks.
func (s *SQLiteStorage) DeleteSource(ctx context.Context, id string) error {
	if err := s.DeleteChunksBySourceID(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	return err
}

const chunkColumns = `id, source_id, chunk_index, text, content_hash, page_start, page_end, heading_path, vectorized, created_at`

func scanChunk(row interface{ Scan(...interface{}) error }) (*models.Chunk, error) {
	var c models.Chunk
	err := row.Scan(&c.ID, &c.SourceID, &c.ChunkIndex, &c.Text, &c.ContentHash,
		&c.PageStart, &c.PageEnd, &c.HeadingPath, &c.Vectorized, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// BatchCreateChunks inserts chunks in a transaction and updates the parent
// source's chunk count.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, source_id, chunk_index, text, content_hash, page_start, page_end, heading_path, vectorized, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	counts := make(map[string]int)
	for _, c := range chunks {
		c.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, c.ID, c.SourceID, c.ChunkIndex, c.Text, c.ContentHash,
			c.PageStart, c.PageEnd, c.HeadingPath, c.Vectorized, c.CreatedAt); err != nil {
			return err
		}
		counts[c.SourceID]++
	}
	for sourceID := range counts {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sources SET chunk_count = (SELECT COUNT(*) FROM chunks WHERE source_id = ?), updated_at = ? WHERE id = ?`,
			sourceID, now, sourceID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	c, err := scanChunk(s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %s: %w", id, sql.ErrNoRows)
	}
	return c, err
}

// GetChunksBySourceID returns all chunks for a source ordered by chunk_index.
func (s *SQLiteStorage) GetChunksBySourceID(ctx context.Context, sourceID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE source_id = ? ORDER BY chunk_index`,
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChunks(rows)
}

// ListUnvectorized returns up to limit chunks that have not been written to
// the vector index, oldest first.
func (s *SQLiteStorage) ListUnvectorized(ctx context.Context, limit int) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE vectorized = 0 ORDER BY created_at, chunk_index LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChunks(rows)
}

func collectChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// MarkVectorized sets the vectorized flag for the given chunk IDs.
func (s *SQLiteStorage) MarkVectorized(ctx context.Context, ids []string, vectorized bool) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+1)
	flag := 0
	if vectorized {
		flag = 1
	}
	args = append(args, flag)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET vectorized = ? WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// MarkAllUnvectorized clears the vectorized flag on every chunk. Used when
// rebuilding the vector index from scratch.
func (s *SQLiteStorage) MarkAllUnvectorized(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chunks SET vectorized = 0`)
	return err
}

// DeleteChunksBySourceID removes all chunks for a source.
func (s *SQLiteStorage) DeleteChunksBySourceID(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, sourceID)
	return err
}

// RecordQuery inserts a query behavior row.
func (s *SQLiteStorage) RecordQuery(ctx context.Context, b *models.QueryBehavior) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO behaviors (id, query, mode, status, citation_count, top_score, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Query, b.Mode, b.Status, b.CitationCount, b.TopScore, b.LatencyMs, b.CreatedAt,
	)
	return err
}

// CountSources returns the total number of sources.
func (s *SQLiteStorage) CountSources(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
