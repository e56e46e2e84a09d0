package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
	"github.com/kirillkom/securedoc-assistant/internal/core/ports"
)

const (
	ackProcessingStarted = "processing started"
	unknownFilename      = "unknown_file"
)

// IngestDocumentUseCase stages an upload and hands it to the worker pool.
type IngestDocumentUseCase struct {
	storage   ports.StagingStorage
	queue     ports.TaskQueue
	processor ports.DocumentProcessor
	logger    *slog.Logger
	now       func() time.Time
}

func NewIngestDocumentUseCase(
	storage ports.StagingStorage,
	queue ports.TaskQueue,
	processor ports.DocumentProcessor,
	logger *slog.Logger,
) *IngestDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestDocumentUseCase{
		storage:   storage,
		queue:     queue,
		processor: processor,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *IngestDocumentUseCase) Upload(ctx context.Context, filename string, body io.Reader) (*domain.UploadAck, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = unknownFilename
	}

	id := uuid.NewString()
	stagingKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, stagingKey, body); err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	task := domain.IngestTask{
		DocumentID: id,
		Filename:   filename,
		StagingKey: stagingKey,
		EnqueuedAt: uc.now(),
	}

	// The upload request returns before ingestion finishes, so the task must
	// outlive the request context.
	taskCtx := context.WithoutCancel(ctx)
	err := uc.queue.Submit(func() {
		_ = uc.processor.Process(taskCtx, task)
	})
	if err != nil {
		if rmErr := uc.storage.Remove(ctx, stagingKey); rmErr != nil {
			uc.logger.WarnContext(ctx, "staged_upload_cleanup_failed", "key", stagingKey, "error", rmErr)
		}
		return nil, domain.WrapError(domain.ErrTemporary, "submit ingestion task", err)
	}

	uc.logger.InfoContext(ctx, "ingestion_enqueued", "document_id", id, "filename", filename)
	return &domain.UploadAck{
		DocumentID: id,
		Filename:   filename,
		Status:     ackProcessingStarted,
	}, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
