// Package models defines core data structures for sources, chunks, citations, and answers.
package models

import "time"

// Source represents an ingested document and its metadata.
type Source struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Format      string    `json:"format" db:"format"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	ChunkCount  int       `json:"chunk_count" db:"chunk_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// SourceBrief is a compact reference to a source, returned alongside answers.
type SourceBrief struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
