package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
)

func TestChatRefundPolicyExample(t *testing.T) {
	ai := &aiFake{
		plan: domain.QueryPlan{
			OriginalQuestion:  "What is the refund policy?",
			RewrittenQuestion: "refund policy terms",
			Intent:            "SEARCH",
			Filters:           map[string]any{},
		},
		answer: "You can get a refund within 30 days.",
	}
	store := &chunkStoreFake{
		vector: []domain.ChunkProjection{{Content: "Refunds within 30 days", SourceFile: "policy.pdf"}},
	}
	uc := NewQueryUseCase(ai, store, QueryOptions{}, nil)

	answer, err := uc.Chat(context.Background(), "What is the refund policy?", "")
	require.NoError(t, err)

	assert.Equal(t, "refund policy terms", ai.embedText)
	assert.Equal(t, 1, store.vectorCalls, "empty filters use the unfiltered vector search")
	assert.Equal(t, 0, store.filteredCalls)
	assert.Equal(t, []string{"Refunds within 30 days"}, ai.rerankDocs)
	assert.Equal(t, 5, ai.rerankTopK)
	assert.Equal(t, "Refunds within 30 days", ai.askContext)
	assert.Equal(t, "refund policy terms", ai.askQuestion)
	assert.Equal(t, []string{"policy.pdf"}, answer.Sources)
	assert.Equal(t, "You can get a refund within 30 days.", answer.Answer)
	assert.Equal(t, "SEARCH", answer.Plan.Intent)
}

func TestChatBothRetrievalBranchesFailStillAnswers(t *testing.T) {
	ai := &aiFake{answer: "general knowledge"}
	store := &chunkStoreFake{
		vectorErr:  errors.New("vector down"),
		keywordErr: errors.New("keyword down"),
	}
	uc := NewQueryUseCase(ai, store, QueryOptions{}, nil)

	answer, err := uc.Chat(context.Background(), "anything?", "")
	require.NoError(t, err)
	assert.Equal(t, []string{SourceInternalKnowledgeBase}, answer.Sources)
	assert.Equal(t, 0, ai.rerankCalls)
	assert.Equal(t, 1, ai.askCalls)
	assert.Equal(t, 0, answer.ContextChunks)
}

func TestChatRerankFailureStillAnswersWithSources(t *testing.T) {
	ai := &aiFake{
		rerankFn: func(string, []string, int) ([]domain.RerankResult, error) {
			return nil, errors.New("reranker down")
		},
	}
	store := &chunkStoreFake{
		vector:  []domain.ChunkProjection{{Content: "v", SourceFile: "v.pdf"}},
		keyword: []domain.ChunkProjection{{Content: "k", SourceFile: "k.txt"}},
	}
	uc := NewQueryUseCase(ai, store, QueryOptions{}, nil)

	answer, err := uc.Chat(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"v.pdf", "k.txt"}, answer.Sources)
}

func TestChatPlanFailureIsFatal(t *testing.T) {
	ai := &aiFake{planErr: domain.WrapError(domain.ErrRemoteCall, "plan", errors.New("503"))}
	store := &chunkStoreFake{}
	uc := NewQueryUseCase(ai, store, QueryOptions{}, nil)

	_, err := uc.Chat(context.Background(), "q", "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrRemoteCall))
	assert.Equal(t, "", ai.embedText)
	assert.Equal(t, 0, store.vectorCalls+store.keywordCalls)
}

func TestChatEmbedFailureIsFatal(t *testing.T) {
	ai := &aiFake{embedErr: errors.New("embed fail")}
	store := &chunkStoreFake{}
	uc := NewQueryUseCase(ai, store, QueryOptions{}, nil)

	_, err := uc.Chat(context.Background(), "q", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
	assert.Equal(t, 0, ai.askCalls)
}

func TestChatGenerationFailureIsFatal(t *testing.T) {
	ai := &aiFake{askErr: errors.New("llm down")}
	store := &chunkStoreFake{vector: []domain.ChunkProjection{{Content: "v", SourceFile: "v.pdf"}}}
	uc := NewQueryUseCase(ai, store, QueryOptions{}, nil)

	_, err := uc.Chat(context.Background(), "q", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate answer")
}

func TestChatRejectsBlankQuestion(t *testing.T) {
	uc := NewQueryUseCase(&aiFake{}, &chunkStoreFake{}, QueryOptions{}, nil)

	_, err := uc.Chat(context.Background(), "   ", "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestChatEmptyRewriteFallsBackToQuestion(t *testing.T) {
	ai := &aiFake{plan: domain.QueryPlan{Intent: "SEARCH"}}
	store := &chunkStoreFake{}
	uc := NewQueryUseCase(ai, store, QueryOptions{}, nil)

	answer, err := uc.Chat(context.Background(), "original question", "")
	require.NoError(t, err)
	assert.Equal(t, "original question", ai.embedText)
	assert.Equal(t, "original question", answer.Plan.OriginalQuestion)
}
