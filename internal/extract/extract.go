// Package extract turns document files into located, overlapping text chunks.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrEmptyDocument is returned when a document yields no usable text.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// unit is a minimal block of source text with optional location info.
// Paged formats set page (1-based); structured formats set headingPath.
type unit struct {
	text        string
	page        int
	headingPath []string
}

// Extractor extracts located chunks from document files.
type Extractor struct {
	chunker *Chunker
}

// NewExtractor returns an extractor producing chunks of at most chunkSize
// characters with chunkOverlap characters of carry-over between neighbors.
func NewExtractor(chunkSize, chunkOverlap int) *Extractor {
	return &Extractor{chunker: NewChunker(chunkSize, chunkOverlap)}
}

// ExtractFile reads the file at path and chunks it for sourceID.
func (e *Extractor) ExtractFile(sourceID, path string) ([]*models.Chunk, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.Extract(sourceID, content, ext)
}

// Extract chunks content based on the given extension. ext includes the
// leading dot (e.g. ".pdf"). Unknown extensions are treated as plain text.
// Returns ErrEmptyDocument when the document has no usable text.
func (e *Extractor) Extract(sourceID string, content []byte, ext string) ([]*models.Chunk, error) {
	var units []unit
	var err error
	switch ext {
	case ".pdf":
		units, err = pdfUnits(content)
	case ".md", ".markdown":
		units = markdownUnits(content)
	case ".docx":
		units, err = docxUnits(content)
	default:
		units = plainUnits(content)
	}
	if err != nil {
		return nil, err
	}

	chunks := e.chunker.Chunk(sourceID, units)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	return chunks, nil
}
