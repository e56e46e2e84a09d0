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

type DocumentService struct {
	repo   ports.DocumentRepository
	logger *slog.Logger
}

func NewDocumentService(repo ports.DocumentRepository, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{repo: repo, logger: logger}
}

func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get document", errors.New("document id is required"))
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes the document and its chunks; either both go or neither does.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteWithChunks(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.logger.InfoContext(ctx, "document_deleted", "document_id", id)
	return nil
}
