package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
	"github.com/kirillkom/securedoc-assistant/internal/core/ports"
)

type QueryOptions struct {
	CandidateLimit int
	ContextSize    int
	RerankTopK     int
}

// QueryUseCase answers a question: plan, embed, retrieve, rerank, synthesize.
type QueryUseCase struct {
	ai          ports.AIService
	retriever   *HybridRetriever
	reranker    *RerankStage
	synthesizer *AnswerSynthesizer
	logger      *slog.Logger
}

func NewQueryUseCase(
	ai ports.AIService,
	store ports.ChunkStore,
	opts QueryOptions,
	logger *slog.Logger,
) *QueryUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryUseCase{
		ai:          ai,
		retriever:   NewHybridRetriever(store, opts.CandidateLimit, logger),
		reranker:    NewRerankStage(ai, opts.RerankTopK, opts.ContextSize, logger),
		synthesizer: NewAnswerSynthesizer(ai, logger),
		logger:      logger,
	}
}

func (uc *QueryUseCase) Chat(ctx context.Context, question, priorContext string) (*domain.ChatAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("question is required"))
	}
	if priorContext != "" {
		uc.logger.DebugContext(ctx, "chat_prior_context_ignored", "bytes", len(priorContext))
	}

	plan, err := uc.ai.Plan(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("plan query: %w", err)
	}
	if plan.OriginalQuestion == "" {
		plan.OriginalQuestion = question
	}
	effective := plan.EffectiveQuestion()
	uc.logger.InfoContext(ctx, "query_plan", "intent", plan.Intent, "rewritten", effective, "filters", len(plan.Filters))

	vector, err := uc.ai.Embed(ctx, effective)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates := uc.retriever.Retrieve(ctx, effective, vector, plan.Filters)
	contexts := uc.reranker.Rerank(ctx, effective, candidates)

	answer, err := uc.synthesizer.Synthesize(ctx, effective, contexts, candidates)
	if err != nil {
		return nil, err
	}
	answer.Plan = plan
	return answer, nil
}
