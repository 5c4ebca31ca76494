package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

var (
	// ErrUploadInProgress means another upload of identical content holds the
	// lock and did not finish within the wait budget.
	ErrUploadInProgress = errors.New("upload of identical content already in progress")

	// ErrFileTooLarge means the document exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds size limit")

	// ErrUnsupportedFormat means the file extension is not ingestible.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Store is the slice of persistence the ingestion path needs.
type Store interface {
	CreateSource(ctx context.Context, src *models.Source) error
	GetSourceByHash(ctx context.Context, contentHash string) (*models.Source, error)
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	ListUnvectorized(ctx context.Context, limit int) ([]*models.Chunk, error)
	MarkVectorized(ctx context.Context, ids []string, vectorized bool) error
	MarkAllUnvectorized(ctx context.Context) error
}

// DocumentExtractor splits raw document bytes into located chunks.
type DocumentExtractor interface {
	Extract(sourceID string, content []byte, ext string) ([]*models.Chunk, error)
}

// Locker serializes uploads of identical content across nodes.
type Locker interface {
	Acquire(ctx context.Context, contentHash string) (token string, acquired bool, err error)
	Release(ctx context.Context, contentHash, token string) error
}

// Result reports the outcome of an ingestion. Created is false when the
// content was already known and the existing source is returned instead.
type Result struct {
	Source  *models.Source
	Created bool
}

// Service ingests documents: it validates, deduplicates by content hash,
// extracts chunks, persists them, and vectorizes them. Identical content
// uploaded concurrently is serialized by a Redis lease lock.
type Service struct {
	store      Store
	extractor  DocumentExtractor
	vectorizer *Vectorizer
	lock       Locker
	maxBytes   int64
	allowed    map[string]bool
	logger     *zap.Logger
}

// NewService creates an ingestion service. extensions are the ingestible
// file extensions including the leading dot.
func NewService(store Store, extractor DocumentExtractor, vectorizer *Vectorizer, lock Locker, maxBytes int64, extensions []string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Service{
		store:      store,
		extractor:  extractor,
		vectorizer: vectorizer,
		lock:       lock,
		maxBytes:   maxBytes,
		allowed:    allowed,
		logger:     logger,
	}
}

// IngestFile reads and ingests a document from the local filesystem, using
// the file name as the source title.
func (s *Service) IngestFile(ctx context.Context, path string) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !s.allowed[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if info, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	} else if info.Size() > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return s.Ingest(ctx, filepath.Base(path), content, ext)
}

// Ingest validates and ingests one document. Extraction happens before any
// row is written, so a document that yields no chunks persists nothing.
func (s *Service) Ingest(ctx context.Context, title string, content []byte, ext string) (*Result, error) {
	ext = strings.ToLower(ext)
	if !s.allowed[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if int64(len(content)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(content))
	}

	contentHash := utils.HashBytes(content)
	if existing, found, err := s.findByHash(ctx, contentHash); err != nil {
		return nil, err
	} else if found {
		return s.deduplicated(ctx, existing), nil
	}

	token, acquired, err := s.lock.Acquire(ctx, contentHash)
	if err != nil {
		return nil, fmt.Errorf("acquire upload lock: %w", err)
	}
	if !acquired {
		// A holder that finishes without releasing still leaves its source
		// row behind, so check once more before giving up.
		if existing, found, err := s.findByHash(ctx, contentHash); err == nil && found {
			return s.deduplicated(ctx, existing), nil
		}
		return nil, ErrUploadInProgress
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), contentHash, token); err != nil {
			s.logger.Warn("failed to release upload lock", zap.String("content_hash", contentHash), zap.Error(err))
		}
	}()

	// The winner of a lock race may have persisted the content between our
	// first check and acquisition.
	if existing, found, err := s.findByHash(ctx, contentHash); err != nil {
		return nil, err
	} else if found {
		return s.deduplicated(ctx, existing), nil
	}

	sourceID := uuid.New().String()
	chunks, err := s.extractor.Extract(sourceID, content, ext)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", title, err)
	}

	src := &models.Source{
		ID:          sourceID,
		Title:       title,
		Format:      strings.TrimPrefix(ext, "."),
		ContentHash: contentHash,
		SizeBytes:   int64(len(content)),
	}
	if err := s.store.CreateSource(ctx, src); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}
	if err := s.store.BatchCreateChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("persist chunks: %w", err)
	}
	src.ChunkCount = len(chunks)

	// Vectorization failure does not fail the upload. The chunks stay
	// flagged unvectorized and a later batch run picks them up.
	if done, err := s.vectorizer.VectorizeChunks(ctx, chunks); err != nil {
		s.logger.Warn("vectorization failed after upload",
			zap.String("source_id", sourceID), zap.Int("done", done), zap.Error(err))
	}

	s.logger.Info("document ingested",
		zap.String("source_id", sourceID),
		zap.String("title", title),
		zap.Int("chunks", len(chunks)))
	return &Result{Source: src, Created: true}, nil
}

func (s *Service) findByHash(ctx context.Context, contentHash string) (*models.Source, bool, error) {
	src, err := s.store.GetSourceByHash(ctx, contentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("look up source by hash: %w", err)
	}
	return src, true, nil
}

// deduplicated returns the existing source for re-uploaded content and
// retries any vectorization it may still be missing.
func (s *Service) deduplicated(ctx context.Context, src *models.Source) *Result {
	s.logger.Info("duplicate content, reusing source",
		zap.String("source_id", src.ID), zap.String("title", src.Title))
	if done, err := s.vectorizer.VectorizePending(ctx); err != nil {
		s.logger.Warn("pending vectorization failed", zap.Int("done", done), zap.Error(err))
	}
	return &Result{Source: src, Created: false}
}
