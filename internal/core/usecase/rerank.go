package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
	"github.com/kirillkom/securedoc-assistant/internal/core/ports"
)

const (
	defaultContextSize = 10
	defaultRerankTopK  = 5
)

// RerankStage reorders candidates with the remote reranker and keeps the head.
type RerankStage struct {
	ai     ports.AIService
	topK   int
	topN   int
	logger *slog.Logger
}

// NewRerankStage sends topK to the reranker and keeps at most topN of
// whatever it returns.
func NewRerankStage(ai ports.AIService, topK, topN int, logger *slog.Logger) *RerankStage {
	if topK <= 0 {
		topK = defaultRerankTopK
	}
	if topN <= 0 {
		topN = defaultContextSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RerankStage{ai: ai, topK: topK, topN: topN, logger: logger}
}

// Rerank returns the final context chunks. A reranker failure degrades to
// truncating the candidates in their original order.
func (s *RerankStage) Rerank(ctx context.Context, question string, candidates []domain.ChunkProjection) []string {
	if len(candidates) == 0 {
		return nil
	}

	documents := make([]string, len(candidates))
	for i, candidate := range candidates {
		documents[i] = candidate.Content
	}

	results, err := s.ai.Rerank(ctx, question, documents, s.topK)
	if err != nil {
		s.logger.WarnContext(ctx, "rerank_failed_fallback_truncate", "error", err, "candidates", len(documents))
		return trimContents(documents, s.topN)
	}

	out := make([]string, 0, min(len(results), s.topN))
	for _, result := range results {
		if len(out) == s.topN {
			break
		}
		out = append(out, result.Content)
	}
	s.logger.InfoContext(ctx, "rerank_done", "candidates", len(documents), "kept", len(out))
	return out
}

func trimContents(contents []string, limit int) []string {
	if limit <= 0 || len(contents) <= limit {
		return contents
	}
	return contents[:limit]
}
