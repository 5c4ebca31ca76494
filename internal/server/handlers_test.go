package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/gateway"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

type stubAnswerer struct {
	result *models.AnswerResult
	err    error
}

func (s *stubAnswerer) Answer(context.Context, *models.AskRequest) (*models.AnswerResult, error) {
	return s.result, s.err
}

type stubIngestor struct {
	result *ingest.Result
	err    error
	path   string
}

func (s *stubIngestor) IngestFile(_ context.Context, path string) (*ingest.Result, error) {
	s.path = path
	return s.result, s.err
}

type stubRebuilder struct {
	count int
	err   error
}

func (s *stubRebuilder) Rebuild(context.Context) (int, error) {
	return s.count, s.err
}

func newTestServer(t *testing.T, answerer Answerer, ingestor Ingestor, rebuilder Rebuilder) (*Server, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(t.TempDir() + "/db.sqlite")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	srv := NewServer(answerer, ingestor, rebuilder, store, &config.ServerConfig{Port: 8080}, zap.NewNop())
	return srv, store
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleAsk(t *testing.T) {
	answerer := &stubAnswerer{result: &models.AnswerResult{
		Answer: "42", Status: models.StatusOK, Mode: models.ModeRAG,
	}}
	srv, _ := newTestServer(t, answerer, nil, nil)

	body := bytes.NewBufferString(`{"query": "meaning of life?"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/ask", body)
	w := httptest.NewRecorder()
	srv.handleAsk(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out models.AnswerResult
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "42" || out.Status != models.StatusOK {
		t.Errorf("result = %+v", out)
	}
}

func TestHandleAskEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t, &stubAnswerer{}, nil, nil)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewBufferString(`{"query": ""}`))
	w := httptest.NewRecorder()
	srv.handleAsk(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleAskModelUnavailable(t *testing.T) {
	answerer := &stubAnswerer{err: fmt.Errorf("generate: %w",
		&gateway.ModelUnavailableError{Attempts: 3, Err: errors.New("timeout")})}
	srv, _ := newTestServer(t, answerer, nil, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewBufferString(`{"query": "q"}`))
	w := httptest.NewRecorder()
	srv.handleAsk(w, r)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

func TestHandleIngestSourceCreated(t *testing.T) {
	ingestor := &stubIngestor{result: &ingest.Result{
		Source:  &models.Source{ID: "s1", Title: "doc.txt"},
		Created: true,
	}}
	srv, _ := newTestServer(t, nil, ingestor, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/sources", bytes.NewBufferString(`{"path": "/data/doc.txt"}`))
	w := httptest.NewRecorder()
	srv.handleIngestSource(w, r)

	if w.Code != http.StatusCreated {
		t.Errorf("status: got %d, want 201", w.Code)
	}
	if ingestor.path != "/data/doc.txt" {
		t.Errorf("path = %q", ingestor.path)
	}
}

func TestHandleIngestSourceDeduplicated(t *testing.T) {
	ingestor := &stubIngestor{result: &ingest.Result{
		Source:  &models.Source{ID: "s1"},
		Created: false,
	}}
	srv, _ := newTestServer(t, nil, ingestor, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/sources", bytes.NewBufferString(`{"path": "/data/dup.txt"}`))
	w := httptest.NewRecorder()
	srv.handleIngestSource(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200 for duplicate", w.Code)
	}
}

func TestHandleIngestSourceErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ingest.ErrUnsupportedFormat, http.StatusBadRequest},
		{ingest.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{ingest.ErrUploadInProgress, http.StatusConflict},
		{fmt.Errorf("extract doc: %w", extract.ErrEmptyDocument), http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		srv, _ := newTestServer(t, nil, &stubIngestor{err: tt.err}, nil)
		r := httptest.NewRequest(http.MethodPost, "/api/v1/sources", bytes.NewBufferString(`{"path": "/x.txt"}`))
		w := httptest.NewRecorder()
		srv.handleIngestSource(w, r)
		if w.Code != tt.want {
			t.Errorf("err %v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestHandleIngestSourceMissingPath(t *testing.T) {
	srv, _ := newTestServer(t, nil, &stubIngestor{}, nil)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/sources", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	srv.handleIngestSource(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleGetSource(t *testing.T) {
	srv, store := newTestServer(t, nil, nil, nil)
	src := &models.Source{ID: "s1", Title: "doc.txt", Format: "txt", ContentHash: "h1"}
	if err := store.CreateSource(context.Background(), src); err != nil {
		t.Fatal(err)
	}

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/sources/s1", nil), "id", "s1")
	w := httptest.NewRecorder()
	srv.handleGetSource(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out models.Source
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ID != "s1" || out.Title != "doc.txt" {
		t.Errorf("source = %+v", out)
	}
}

func TestHandleGetSourceNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil, nil)
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/sources/nope", nil), "id", "nope")
	w := httptest.NewRecorder()
	srv.handleGetSource(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleGetSourceChunks(t *testing.T) {
	srv, store := newTestServer(t, nil, nil, nil)
	ctx := context.Background()
	src := &models.Source{ID: "s1", Title: "doc.txt", Format: "txt", ContentHash: "h1"}
	if err := store.CreateSource(ctx, src); err != nil {
		t.Fatal(err)
	}
	chunks := []*models.Chunk{
		{ID: "c1", SourceID: "s1", ChunkIndex: 0, Text: "alpha"},
		{ID: "c2", SourceID: "s1", ChunkIndex: 1, Text: "beta"},
	}
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/sources/s1/chunks", nil), "id", "s1")
	w := httptest.NewRecorder()
	srv.handleGetSourceChunks(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Chunks []*models.Chunk `json:"chunks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Chunks) != 2 {
		t.Errorf("chunks = %d, want 2", len(out.Chunks))
	}
}

func TestHandleGetSourceChunksNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil, nil)
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/sources/nope/chunks", nil), "id", "nope")
	w := httptest.NewRecorder()
	srv.handleGetSourceChunks(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleReindex(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil, &stubRebuilder{count: 7})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/reindex", nil)
	w := httptest.NewRecorder()
	srv.handleReindex(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Status string `json:"status"`
		Chunks int    `json:"chunks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "rebuilt" || out.Chunks != 7 {
		t.Errorf("out = %+v", out)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, store := newTestServer(t, nil, nil, nil)
	ctx := context.Background()
	if err := store.CreateSource(ctx, &models.Source{ID: "s1", Title: "t", Format: "txt", ContentHash: "h1"}); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Sources int64 `json:"sources"`
		Chunks  int64 `json:"chunks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Sources != 1 || out.Chunks != 0 {
		t.Errorf("out = %+v", out)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}
