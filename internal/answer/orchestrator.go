// Package answer orchestrates question answering over retrieved evidence.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// fallbackCitationLimit caps how much evidence a templated fallback answer lists.
const fallbackCitationLimit = 5

const systemPrompt = "You are a careful assistant. Answer the question using only the provided context passages. " +
	"Cite passage numbers like [1] where you rely on them. If the context does not contain the answer, say that plainly."

const directSystemPrompt = "You are a helpful assistant. Answer the question concisely."

const unavailableMessage = "The answer service is temporarily unavailable. Please try again later."

// Retriever finds and gates evidence for a question.
type Retriever interface {
	SearchAggregated(ctx context.Context, query string, topK int) ([]*models.Citation, error)
	EvidenceInsufficient(citations []*models.Citation) bool
}

// Generator produces a completion for a system and user prompt pair.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Recorder accepts behavior rows without blocking.
type Recorder interface {
	Record(b *models.QueryBehavior)
}

// Orchestrator answers questions. In RAG mode it retrieves evidence, gates
// it, and grounds generation in it, degrading to templated answers when
// evidence is thin or generation fails. In direct mode it skips retrieval
// entirely.
type Orchestrator struct {
	retriever Retriever
	generator Generator
	recorder  Recorder
	topK      int
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator. recorder may be nil to disable
// behavior recording.
func NewOrchestrator(retriever Retriever, generator Generator, recorder Recorder, topK int, logger *zap.Logger) *Orchestrator {
	if topK < 1 {
		topK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		retriever: retriever,
		generator: generator,
		recorder:  recorder,
		topK:      topK,
		logger:    logger,
	}
}

// Answer answers req. Retrieval failures propagate; generation failures
// degrade to a templated evidence summary rather than an error.
func (o *Orchestrator) Answer(ctx context.Context, req *models.AskRequest) (*models.AnswerResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if req.Mode == models.ModeDirect {
		return o.answerDirect(ctx, query), nil
	}
	return o.answerRAG(ctx, query, req.TopK)
}

func (o *Orchestrator) answerRAG(ctx context.Context, query string, topK int) (*models.AnswerResult, error) {
	if topK < 1 {
		topK = o.topK
	}
	timer := utils.NewStageTimer()

	citations, err := o.retriever.SearchAggregated(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve evidence: %w", err)
	}
	retrieveMs := timer.Mark("retrieve").Milliseconds()

	result := &models.AnswerResult{
		Citations: citations,
		Sources:   []models.SourceBrief{},
		Mode:      models.ModeRAG,
	}

	// Sources lists where to look instead when the answer degrades; a normal
	// grounded answer carries its citations only.
	if o.retriever.EvidenceInsufficient(citations) {
		result.Status = models.StatusInsufficientEvidence
		result.Answer = insufficientEvidenceAnswer(citations)
		result.Sources = distinctSources(citations)
	} else {
		generated, err := o.generator.Complete(ctx, systemPrompt, groundedPrompt(query, citations))
		if err != nil {
			o.logger.Warn("generation failed, returning evidence summary", zap.Error(err))
			result.Status = models.StatusGenerationFallback
			result.Answer = fallbackAnswer(citations)
			result.Sources = distinctSources(citations)
		} else {
			result.Status = models.StatusOK
			result.Answer = generated
		}
	}
	generateMs := timer.Mark("generate").Milliseconds()

	result.LatencyMs = timer.Elapsed().Milliseconds()
	result.Stages = map[string]int64{"retrieve": retrieveMs, "generate": generateMs}

	o.logger.Info("question answered",
		zap.String("status", string(result.Status)),
		zap.Int("citations", len(citations)),
		zap.Int64("latency_ms", result.LatencyMs))
	o.record(query, result)
	return result, nil
}

func (o *Orchestrator) answerDirect(ctx context.Context, query string) *models.AnswerResult {
	timer := utils.NewStageTimer()
	result := &models.AnswerResult{
		Citations: []*models.Citation{},
		Sources:   []models.SourceBrief{},
		Mode:      models.ModeDirect,
	}

	generated, err := o.generator.Complete(ctx, directSystemPrompt, query)
	if err != nil {
		o.logger.Warn("direct generation failed", zap.Error(err))
		result.Status = models.StatusUnavailable
		result.Answer = unavailableMessage
	} else {
		result.Status = models.StatusOK
		result.Answer = generated
	}
	generateMs := timer.Mark("generate").Milliseconds()

	result.LatencyMs = timer.Elapsed().Milliseconds()
	result.Stages = map[string]int64{"generate": generateMs}
	o.record(query, result)
	return result
}

func (o *Orchestrator) record(query string, result *models.AnswerResult) {
	if o.recorder == nil {
		return
	}
	var top float64
	if len(result.Citations) > 0 {
		top = result.Citations[0].Score
	}
	o.recorder.Record(&models.QueryBehavior{
		Query:         query,
		Mode:          string(result.Mode),
		Status:        string(result.Status),
		CitationCount: len(result.Citations),
		TopScore:      top,
		LatencyMs:     result.LatencyMs,
	})
}

// groundedPrompt numbers each citation so the model can reference them.
func groundedPrompt(query string, citations []*models.Citation) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, c := range citations {
		fmt.Fprintf(&b, "[%d] %s (%s, score %.2f): %s\n", i+1, c.SourceTitle, c.Location.Display(), c.Score, c.Snippet)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

func insufficientEvidenceAnswer(citations []*models.Citation) string {
	if len(citations) == 0 {
		return "I couldn't find any relevant material for this question."
	}
	var b strings.Builder
	b.WriteString("I couldn't find enough supporting material to answer confidently. The closest matches are:\n")
	writeCitationList(&b, citations)
	return b.String()
}

func fallbackAnswer(citations []*models.Citation) string {
	var b strings.Builder
	b.WriteString("I found relevant material but couldn't generate a full answer right now. The most relevant evidence:\n")
	limited := citations
	if len(limited) > fallbackCitationLimit {
		limited = limited[:fallbackCitationLimit]
	}
	writeCitationList(&b, limited)
	return b.String()
}

func writeCitationList(b *strings.Builder, citations []*models.Citation) {
	for i, c := range citations {
		fmt.Fprintf(b, "%d. %s (%s, score %.2f): %s\n", i+1, c.SourceTitle, c.Location.Display(), c.Score, c.Snippet)
	}
}

// distinctSources returns each cited source once, in citation order.
func distinctSources(citations []*models.Citation) []models.SourceBrief {
	seen := make(map[string]bool)
	briefs := []models.SourceBrief{}
	for _, c := range citations {
		if seen[c.SourceID] {
			continue
		}
		seen[c.SourceID] = true
		briefs = append(briefs, models.SourceBrief{ID: c.SourceID, Title: c.SourceTitle})
	}
	return briefs
}
