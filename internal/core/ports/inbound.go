package ports

import (
	"context"
	"io"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
)

// DocumentUploader is the inbound contract for upload acknowledgement.
type DocumentUploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*domain.UploadAck, error)
}

// ChatService is the inbound contract for retrieval-augmented answers.
type ChatService interface {
	Chat(ctx context.Context, question, priorContext string) (*domain.ChatAnswer, error)
}

// DocumentCatalog is the inbound read/delete model for documents.
type DocumentCatalog interface {
	List(ctx context.Context) ([]domain.Document, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// DocumentProcessor is the inbound contract for background ingestion.
type DocumentProcessor interface {
	Process(ctx context.Context, task domain.IngestTask) error
}
