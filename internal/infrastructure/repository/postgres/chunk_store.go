package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
)

// ChunkStore keeps chunk embeddings in a pgvector column and serves
// cosine-distance, metadata-filtered and full-text lookups over them.
type ChunkStore struct {
	db *sql.DB
}

func NewChunkStore(db *sql.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

func (s *ChunkStore) NearestByVector(ctx context.Context, vector []float32, limit int) ([]domain.ChunkProjection, error) {
	return s.queryProjections(ctx, "nearest by vector", `
SELECT content, source_file
FROM document_chunks
ORDER BY embedding <=> $1::vector
LIMIT $2
`, vectorLiteral(vector), limit)
}

// NearestByVectorFiltered restricts the search to chunks whose metadata
// contains every key/value of predicate.
func (s *ChunkStore) NearestByVectorFiltered(
	ctx context.Context,
	vector []float32,
	predicate map[string]any,
	limit int,
) ([]domain.ChunkProjection, error) {
	if len(predicate) == 0 {
		return s.NearestByVector(ctx, vector, limit)
	}
	predicateJSON, err := json.Marshal(predicate)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSerialization, "marshal metadata predicate", err)
	}
	return s.queryProjections(ctx, "nearest by vector filtered", `
SELECT content, source_file
FROM document_chunks
WHERE metadata @> $2::jsonb
ORDER BY embedding <=> $1::vector
LIMIT $3
`, vectorLiteral(vector), string(predicateJSON), limit)
}

func (s *ChunkStore) NearestByKeyword(ctx context.Context, text string, limit int) ([]domain.ChunkProjection, error) {
	if strings.TrimSpace(text) == "" {
		return []domain.ChunkProjection{}, nil
	}
	return s.queryProjections(ctx, "nearest by keyword", `
SELECT content, source_file
FROM document_chunks
WHERE to_tsvector('english', content) @@ plainto_tsquery('english', $1)
ORDER BY ts_rank(to_tsvector('english', content), plainto_tsquery('english', $1)) DESC
LIMIT $2
`, text, limit)
}

// InsertChunks writes all chunks of one document or none of them.
func (s *ChunkStore) InsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "begin chunk tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_chunks (document_id, content, source_file, embedding, metadata)
VALUES ($1, $2, $3, $4::vector, $5::jsonb)
`)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "prepare chunk insert", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		metadataJSON, err := marshalMetadata(chunk.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, documentID, chunk.Content, chunk.SourceFile, vectorLiteral(chunk.Embedding), string(metadataJSON)); err != nil {
			return domain.WrapError(domain.ErrPersistence, "insert chunk", fmt.Errorf("chunk %d: %w", i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrPersistence, "commit chunk tx", err)
	}
	return nil
}

func (s *ChunkStore) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return domain.WrapError(domain.ErrPersistence, "delete chunks", err)
	}
	return nil
}

func (s *ChunkStore) queryProjections(ctx context.Context, operation, query string, args ...any) ([]domain.ChunkProjection, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, operation, err)
	}
	defer rows.Close()

	out := make([]domain.ChunkProjection, 0)
	for rows.Next() {
		var p domain.ChunkProjection
		if err := rows.Scan(&p.Content, &p.SourceFile); err != nil {
			return nil, domain.WrapError(domain.ErrPersistence, operation, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, operation, err)
	}
	return out, nil
}

// vectorLiteral renders the pgvector text form, e.g. [0.1,0.2,0.3].
func vectorLiteral(vector []float32) string {
	var b strings.Builder
	b.Grow(len(vector)*10 + 2)
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
