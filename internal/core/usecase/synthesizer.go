package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
	"github.com/kirillkom/securedoc-assistant/internal/core/ports"
)

const (
	contextDelimiter = "\n---\n"

	SourceInternalKnowledgeBase = "Internal Knowledge Base"
	SourceUnknown               = "Unknown Source"
)

// AnswerSynthesizer builds the context blob, calls generation and recovers source labels.
type AnswerSynthesizer struct {
	ai     ports.AIService
	logger *slog.Logger
}

func NewAnswerSynthesizer(ai ports.AIService, logger *slog.Logger) *AnswerSynthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerSynthesizer{ai: ai, logger: logger}
}

func (s *AnswerSynthesizer) Synthesize(
	ctx context.Context,
	question string,
	contexts []string,
	candidates []domain.ChunkProjection,
) (*domain.ChatAnswer, error) {
	blob := strings.Join(contexts, contextDelimiter)

	s.logger.DebugContext(ctx, "generation_call", "context_chunks", len(contexts), "context_bytes", len(blob))
	generated, err := s.ai.Ask(ctx, question, blob)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.ChatAnswer{
		Answer:        generated.Answer,
		Sources:       resolveSources(contexts, candidates),
		ContextChunks: len(contexts),
	}, nil
}

// resolveSources maps chunk text back to its source file. Identical text in two
// files resolves to whichever candidate was seen first.
func resolveSources(contexts []string, candidates []domain.ChunkProjection) []string {
	if len(contexts) == 0 {
		return []string{SourceInternalKnowledgeBase}
	}

	byContent := make(map[string]string, len(candidates))
	for _, candidate := range candidates {
		if _, ok := byContent[candidate.Content]; !ok {
			byContent[candidate.Content] = candidate.SourceFile
		}
	}

	seen := make(map[string]struct{}, len(contexts))
	sources := make([]string, 0, len(contexts))
	for _, content := range contexts {
		source, ok := byContent[content]
		if !ok {
			source = SourceUnknown
		}
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	return sources
}
