package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
	"github.com/kirillkom/securedoc-assistant/internal/core/ports"
)

type ProcessOptions struct {
	// Timeout bounds a whole ingestion run. Zero leaves only transport timeouts.
	Timeout time.Duration
}

// ProcessDocumentUseCase drives one upload through the document lifecycle.
type ProcessDocumentUseCase struct {
	repo        ports.DocumentRepository
	chunks      ports.ChunkStore
	storage     ports.StagingStorage
	extractor   ports.TextExtractor
	ai          ports.AIService
	broadcaster ports.StatusBroadcaster
	metrics     ports.IngestionMetrics
	opts        ProcessOptions
	logger      *slog.Logger
	now         func() time.Time
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	chunks ports.ChunkStore,
	storage ports.StagingStorage,
	extractor ports.TextExtractor,
	ai ports.AIService,
	broadcaster ports.StatusBroadcaster,
	metrics ports.IngestionMetrics,
	opts ProcessOptions,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if metrics == nil {
		metrics = noopIngestionMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:        repo,
		chunks:      chunks,
		storage:     storage,
		extractor:   extractor,
		ai:          ai,
		broadcaster: broadcaster,
		metrics:     metrics,
		opts:        opts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Process returns only after the document reached COMPLETED or FAILED.
func (uc *ProcessDocumentUseCase) Process(ctx context.Context, task domain.IngestTask) error {
	if uc.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.Timeout)
		defer cancel()
	}

	start := uc.now()
	uc.metrics.StartDocument()
	uc.metrics.ObserveQueueLag(start.Sub(task.EnqueuedAt))
	logger := uc.logger.With("document_id", task.DocumentID, "filename", task.Filename)
	logger.InfoContext(ctx, "ingestion_started")

	doc := &domain.Document{
		ID:        task.DocumentID,
		Filename:  task.Filename,
		Status:    domain.StatusPending,
		CreatedAt: start,
		UpdatedAt: start,
	}
	defer func() {
		uc.metrics.FinishDocument(doc.Status, uc.now().Sub(start))
	}()
	defer uc.cleanup(ctx, logger, task.StagingKey)

	if err := uc.repo.Create(ctx, doc); err != nil {
		err = fmt.Errorf("create document row: %w", err)
		uc.markFailed(ctx, logger, doc, err)
		return err
	}

	if err := uc.transition(ctx, logger, doc, domain.StatusProcessing, ""); err != nil {
		uc.markFailed(ctx, logger, doc, err)
		return err
	}

	chunkCount, err := uc.processPipeline(ctx, doc, task.StagingKey)
	if err != nil {
		uc.markFailed(ctx, logger, doc, err)
		return err
	}

	if err := uc.transition(ctx, logger, doc, domain.StatusCompleted, ""); err != nil {
		// A FAILED document must not leave chunks behind.
		if chunkCount > 0 {
			if delErr := uc.chunks.DeleteChunksByDocument(context.WithoutCancel(ctx), doc.ID); delErr != nil {
				logger.ErrorContext(ctx, "failed_document_chunk_cleanup_error", "error", delErr)
			}
		}
		uc.markFailed(ctx, logger, doc, err)
		return err
	}

	logger.InfoContext(ctx, "ingestion_completed", "chunks", chunkCount, "duration_ms", uc.now().Sub(start).Milliseconds())
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, doc *domain.Document, stagingKey string) (int, error) {
	raw, err := uc.readStaged(ctx, stagingKey)
	if err != nil {
		return 0, err
	}

	text, err := uc.extractText(ctx, doc.Filename, raw)
	if err != nil {
		return 0, err
	}

	result, err := uc.ingestRemote(ctx, doc.Filename, text)
	if err != nil {
		return 0, err
	}

	uploadDate := uc.now()
	doc.UploadDate = &uploadDate
	doc.Metadata = result.DocumentMetadata
	doc.Content = raw
	if err := uc.repo.SaveIngested(ctx, doc); err != nil {
		return 0, fmt.Errorf("save document: %w", err)
	}

	chunks := buildChunks(doc, result.Chunks)
	if len(chunks) == 0 {
		uc.logger.WarnContext(ctx, "ingest_returned_no_chunks", "document_id", doc.ID)
		return 0, nil
	}
	if err := uc.chunks.InsertChunks(ctx, doc.ID, chunks); err != nil {
		return 0, fmt.Errorf("persist chunks: %w", err)
	}
	return len(chunks), nil
}

func (uc *ProcessDocumentUseCase) readStaged(ctx context.Context, key string) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open staged upload: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read staged upload: %w", err)
	}
	return raw, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, filename string, raw []byte) (string, error) {
	text, err := uc.extractor.Extract(ctx, filename, raw)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrExtraction, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *ProcessDocumentUseCase) ingestRemote(ctx context.Context, filename, text string) (domain.IngestResult, error) {
	result, err := uc.ai.Ingest(ctx, text, map[string]any{"filename": filename})
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("ingest remote: %w", err)
	}
	for i, chunk := range result.Chunks {
		if len(chunk.Embedding) == 0 {
			return domain.IngestResult{}, domain.WrapError(
				domain.ErrRemoteCall,
				"ingest remote",
				fmt.Errorf("chunk %d has no embedding", i),
			)
		}
	}
	return result, nil
}

func buildChunks(doc *domain.Document, ingested []domain.IngestedChunk) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(ingested))
	for _, chunk := range ingested {
		out = append(out, domain.Chunk{
			DocumentID: doc.ID,
			Content:    chunk.Content,
			SourceFile: doc.Filename,
			Embedding:  chunk.Embedding,
			Metadata:   chunk.Metadata,
		})
	}
	return out
}

func (uc *ProcessDocumentUseCase) transition(
	ctx context.Context,
	logger *slog.Logger,
	doc *domain.Document,
	next domain.DocumentStatus,
	errMessage string,
) error {
	if !doc.Status.CanTransitionTo(next) {
		return domain.WrapError(
			domain.ErrInvalidTransition,
			"transition document",
			fmt.Errorf("%s -> %s", doc.Status, next),
		)
	}
	if err := uc.repo.UpdateStatus(ctx, doc.ID, next, errMessage); err != nil {
		return fmt.Errorf("set status=%s: %w", next, err)
	}
	doc.Status = next
	doc.ErrorMessage = errMessage
	doc.UpdatedAt = uc.now()
	uc.broadcast(ctx, logger, doc)
	return nil
}

// markFailed records the failure and notifies subscribers even when the
// status row itself could not be written.
func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, logger *slog.Logger, doc *domain.Document, cause error) {
	if doc.Status.IsTerminal() {
		return
	}
	logger.ErrorContext(ctx, "ingestion_failed", "error", cause)

	// A run that hit its deadline must still be able to record the failure.
	ctx = context.WithoutCancel(ctx)

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, cause.Error()); err != nil {
		logger.ErrorContext(ctx, "mark_failed_status_error", "error", err)
	}
	doc.Status = domain.StatusFailed
	doc.ErrorMessage = cause.Error()
	doc.UpdatedAt = uc.now()
	uc.broadcast(ctx, logger, doc)
}

func (uc *ProcessDocumentUseCase) broadcast(ctx context.Context, logger *slog.Logger, doc *domain.Document) {
	if uc.broadcaster == nil {
		return
	}
	if err := uc.broadcaster.PublishStatus(ctx, domain.NewStatusUpdate(doc)); err != nil {
		logger.WarnContext(ctx, "status_broadcast_failed", "status", doc.Status, "error", err)
	}
}

func (uc *ProcessDocumentUseCase) cleanup(ctx context.Context, logger *slog.Logger, key string) {
	if key == "" {
		return
	}
	if err := uc.storage.Remove(ctx, key); err != nil {
		logger.WarnContext(ctx, "staged_upload_cleanup_failed", "key", key, "error", err)
	}
}

type noopIngestionMetrics struct{}

func (noopIngestionMetrics) StartDocument() {}

func (noopIngestionMetrics) FinishDocument(domain.DocumentStatus, time.Duration) {}

func (noopIngestionMetrics) ObserveQueueLag(time.Duration) {}
