// Package server provides the HTTP API for Kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

// Answerer answers questions.
type Answerer interface {
	Answer(ctx context.Context, req *models.AskRequest) (*models.AnswerResult, error)
}

// Ingestor ingests documents from server-local paths.
type Ingestor interface {
	IngestFile(ctx context.Context, path string) (*ingest.Result, error)
}

// Rebuilder rebuilds the vector index from stored chunks.
type Rebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// Server is the HTTP server for the Kotae API.
type Server struct {
	answerer  Answerer
	ingestor  Ingestor
	rebuilder Rebuilder
	storage   storage.Storage
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	answerer Answerer,
	ingestor Ingestor,
	rebuilder Rebuilder,
	storage storage.Storage,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		answerer:  answerer,
		ingestor:  ingestor,
		rebuilder: rebuilder,
		storage:   storage,
		config:    cfg,
		logger:    logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/sources", s.handleIngestSource)
	r.Get("/api/v1/sources", s.handleListSources)
	r.Get("/api/v1/sources/{id}", s.handleGetSource)
	r.Get("/api/v1/sources/{id}/chunks", s.handleGetSourceChunks)
	r.Post("/api/v1/reindex", s.handleReindex)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
