package usecase

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
	"github.com/kirillkom/securedoc-assistant/internal/core/ports"
)

const defaultCandidateLimit = 15

// HybridRetriever runs vector and keyword search side by side and merges the results.
type HybridRetriever struct {
	store  ports.ChunkStore
	limit  int
	logger *slog.Logger
}

func NewHybridRetriever(store ports.ChunkStore, limit int, logger *slog.Logger) *HybridRetriever {
	if limit <= 0 {
		limit = defaultCandidateLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		store:  store,
		limit:  limit,
		logger: logger,
	}
}

// Retrieve never fails: a failing branch contributes no candidates.
func (r *HybridRetriever) Retrieve(
	ctx context.Context,
	question string,
	vector []float32,
	filters map[string]any,
) []domain.ChunkProjection {
	var (
		g        errgroup.Group
		semantic []domain.ChunkProjection
		lexical  []domain.ChunkProjection
	)

	// Each branch absorbs its own error so one failure never drops the other.
	g.Go(func() error {
		semantic = r.vectorSearch(ctx, vector, filters)
		return nil
	})
	g.Go(func() error {
		lexical = r.keywordSearch(ctx, question)
		return nil
	})
	_ = g.Wait()

	merged := mergeCandidates(semantic, lexical)
	r.logger.InfoContext(ctx, "hybrid_search_done",
		"vector_hits", len(semantic),
		"keyword_hits", len(lexical),
		"unique_candidates", len(merged),
	)
	return merged
}

func (r *HybridRetriever) vectorSearch(ctx context.Context, vector []float32, filters map[string]any) []domain.ChunkProjection {
	var (
		chunks []domain.ChunkProjection
		err    error
	)
	if len(filters) == 0 {
		chunks, err = r.store.NearestByVector(ctx, vector, r.limit)
	} else {
		chunks, err = r.store.NearestByVectorFiltered(ctx, vector, filters, r.limit)
	}
	if err != nil {
		r.logger.WarnContext(ctx, "vector_search_failed", "error", err, "filtered", len(filters) > 0)
		return nil
	}
	return chunks
}

func (r *HybridRetriever) keywordSearch(ctx context.Context, question string) []domain.ChunkProjection {
	chunks, err := r.store.NearestByKeyword(ctx, question, r.limit)
	if err != nil {
		r.logger.WarnContext(ctx, "keyword_search_failed", "error", err)
		return nil
	}
	return chunks
}

// mergeCandidates deduplicates by exact content and keeps the first occurrence.
func mergeCandidates(lists ...[]domain.ChunkProjection) []domain.ChunkProjection {
	total := 0
	for _, list := range lists {
		total += len(list)
	}

	seen := make(map[string]struct{}, total)
	out := make([]domain.ChunkProjection, 0, total)
	for _, list := range lists {
		for _, chunk := range list {
			if _, ok := seen[chunk.Content]; ok {
				continue
			}
			seen[chunk.Content] = struct{}{}
			out = append(out, chunk)
		}
	}
	return out
}
