package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
)

// AIService is the remote plan/embed/ingest/rerank/generate gateway.
type AIService interface {
	Plan(ctx context.Context, question string) (domain.QueryPlan, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Ingest(ctx context.Context, text string, metadata map[string]any) (domain.IngestResult, error)
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]domain.RerankResult, error)
	Ask(ctx context.Context, question, contextBlob string) (domain.GeneratedAnswer, error)
}

// ChunkStore queries and writes the persisted chunk corpus.
type ChunkStore interface {
	NearestByVector(ctx context.Context, vector []float32, limit int) ([]domain.ChunkProjection, error)
	NearestByVectorFiltered(ctx context.Context, vector []float32, predicate map[string]any, limit int) ([]domain.ChunkProjection, error)
	NearestByKeyword(ctx context.Context, text string, limit int) ([]domain.ChunkProjection, error)
	InsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	DeleteChunksByDocument(ctx context.Context, documentID string) error
}

// DocumentRepository persists document rows and their lifecycle status.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveIngested(ctx context.Context, doc *domain.Document) error
	// DeleteWithChunks removes the document's chunks and its row atomically.
	DeleteWithChunks(ctx context.Context, id string) error
}

// StagingStorage holds uploaded bytes until a worker has processed them.
type StagingStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// TextExtractor turns raw upload bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, raw []byte) (string, error)
}

// StatusBroadcaster publishes lifecycle transitions to subscribers.
type StatusBroadcaster interface {
	PublishStatus(ctx context.Context, update domain.StatusUpdate) error
}

// TaskQueue runs submitted tasks on a bounded set of workers.
type TaskQueue interface {
	Submit(task func()) error
}

// IngestionMetrics observes background ingestion runs.
type IngestionMetrics interface {
	StartDocument()
	FinishDocument(status domain.DocumentStatus, duration time.Duration)
	ObserveQueueLag(lag time.Duration)
}
