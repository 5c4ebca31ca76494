package models

import "time"

// AnswerMode selects how a question is answered.
type AnswerMode string

const (
	// ModeRAG retrieves evidence and grounds the answer in it.
	ModeRAG AnswerMode = "rag"
	// ModeDirect sends the question to the model with no retrieval.
	ModeDirect AnswerMode = "direct"
)

// AnswerStatus reports which path produced the answer.
type AnswerStatus string

const (
	// StatusOK is a grounded, model-generated answer.
	StatusOK AnswerStatus = "ok"
	// StatusInsufficientEvidence means retrieval found too little support
	// and no generation was attempted.
	StatusInsufficientEvidence AnswerStatus = "insufficient_evidence"
	// StatusGenerationFallback means evidence was sufficient but generation
	// failed; the answer is a templated evidence summary.
	StatusGenerationFallback AnswerStatus = "generation_fallback"
	// StatusUnavailable means a direct answer could not be generated.
	StatusUnavailable AnswerStatus = "unavailable"
)

// AskRequest is a question posed to the answering service.
type AskRequest struct {
	Query string     `json:"query"`
	Mode  AnswerMode `json:"mode,omitempty"`
	TopK  int        `json:"top_k,omitempty"`
}

// AnswerResult is the full outcome of answering a question.
type AnswerResult struct {
	Answer    string           `json:"answer"`
	Citations []*Citation      `json:"citations"`
	Sources   []SourceBrief    `json:"sources"`
	Status    AnswerStatus     `json:"status"`
	Mode      AnswerMode       `json:"mode"`
	LatencyMs int64            `json:"latency_ms"`
	Stages    map[string]int64 `json:"stages,omitempty"`
}

// QueryBehavior is one recorded ask interaction, persisted asynchronously.
type QueryBehavior struct {
	ID            string    `json:"id" db:"id"`
	Query         string    `json:"query" db:"query"`
	Mode          string    `json:"mode" db:"mode"`
	Status        string    `json:"status" db:"status"`
	CitationCount int       `json:"citation_count" db:"citation_count"`
	TopScore      float64   `json:"top_score" db:"top_score"`
	LatencyMs     int64     `json:"latency_ms" db:"latency_ms"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
