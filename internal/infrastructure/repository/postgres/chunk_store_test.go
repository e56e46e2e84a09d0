package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
)

func newChunkStoreWithMock(t *testing.T) (*ChunkStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewChunkStore(db), mock
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.1,-2,3.5]", vectorLiteral([]float32{0.1, -2, 3.5}))
	assert.Equal(t, "[]", vectorLiteral(nil))
}

func TestNearestByVectorOrdersByCosineDistance(t *testing.T) {
	store, mock := newChunkStoreWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY embedding <=> $1::vector")).
		WithArgs("[0.5,0.25]", 15).
		WillReturnRows(sqlmock.NewRows([]string{"content", "source_file"}).
			AddRow("Refunds within 30 days", "policy.pdf").
			AddRow("Shipping takes 5 days", "shipping.pdf"))

	out, err := store.NearestByVector(context.Background(), []float32{0.5, 0.25}, 15)
	require.NoError(t, err)
	assert.Equal(t, []domain.ChunkProjection{
		{Content: "Refunds within 30 days", SourceFile: "policy.pdf"},
		{Content: "Shipping takes 5 days", SourceFile: "shipping.pdf"},
	}, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNearestByVectorFilteredUsesContainment(t *testing.T) {
	store, mock := newChunkStoreWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE metadata @> $2::jsonb")).
		WithArgs("[1]", `{"department":"sales"}`, 15).
		WillReturnRows(sqlmock.NewRows([]string{"content", "source_file"}).AddRow("c", "s.pdf"))

	out, err := store.NearestByVectorFiltered(context.Background(), []float32{1}, map[string]any{"department": "sales"}, 15)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNearestByVectorFilteredEmptyPredicateIsUnfiltered(t *testing.T) {
	store, mock := newChunkStoreWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY embedding <=> $1::vector")).
		WithArgs("[1]", 15).
		WillReturnRows(sqlmock.NewRows([]string{"content", "source_file"}))

	out, err := store.NearestByVectorFiltered(context.Background(), []float32{1}, map[string]any{}, 15)
	require.NoError(t, err)
	assert.Empty(t, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNearestByVectorFilteredUnserializablePredicate(t *testing.T) {
	store, _ := newChunkStoreWithMock(t)

	_, err := store.NearestByVectorFiltered(context.Background(), []float32{1}, map[string]any{"f": func() {}}, 15)
	assert.True(t, domain.IsKind(err, domain.ErrSerialization))
}

func TestNearestByKeywordUsesFullTextRank(t *testing.T) {
	store, mock := newChunkStoreWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("plainto_tsquery('english', $1)")).
		WithArgs("refund policy", 15).
		WillReturnRows(sqlmock.NewRows([]string{"content", "source_file"}).AddRow("Refunds within 30 days", "policy.pdf"))

	out, err := store.NearestByKeyword(context.Background(), "refund policy", 15)
	require.NoError(t, err)
	assert.Equal(t, "policy.pdf", out[0].SourceFile)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNearestByKeywordQueryFailureIsPersistenceError(t *testing.T) {
	store, mock := newChunkStoreWithMock(t)

	mock.ExpectQuery("plainto_tsquery").WillReturnError(errors.New("relation does not exist"))

	_, err := store.NearestByKeyword(context.Background(), "refund", 15)
	assert.True(t, domain.IsKind(err, domain.ErrPersistence))
}

func TestInsertChunksCommitsAllRows(t *testing.T) {
	store, mock := newChunkStoreWithMock(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO document_chunks")
	prep.ExpectExec().
		WithArgs("doc-1", "first", "a.pdf", "[0.1,0.2]", "{}").
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("doc-1", "second", "a.pdf", "[0.3,0.4]", `{"page":2}`).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := store.InsertChunks(context.Background(), "doc-1", []domain.Chunk{
		{DocumentID: "doc-1", Content: "first", SourceFile: "a.pdf", Embedding: []float32{0.1, 0.2}},
		{DocumentID: "doc-1", Content: "second", SourceFile: "a.pdf", Embedding: []float32{0.3, 0.4}, Metadata: map[string]any{"page": 2}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertChunksRollsBackOnFailure(t *testing.T) {
	store, mock := newChunkStoreWithMock(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO document_chunks")
	prep.ExpectExec().
		WithArgs("doc-1", "first", "a.pdf", "[0.1]", "{}").
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("doc-1", "second", "a.pdf", "[0.2]", "{}").
		WillReturnError(errors.New("expected 384 dimensions, not 1"))
	mock.ExpectRollback()

	err := store.InsertChunks(context.Background(), "doc-1", []domain.Chunk{
		{Content: "first", SourceFile: "a.pdf", Embedding: []float32{0.1}},
		{Content: "second", SourceFile: "a.pdf", Embedding: []float32{0.2}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrPersistence))
	assert.Contains(t, err.Error(), "chunk 1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertChunksEmptyIsNoop(t *testing.T) {
	store, mock := newChunkStoreWithMock(t)

	require.NoError(t, store.InsertChunks(context.Background(), "doc-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteChunksByDocument(t *testing.T) {
	store, mock := newChunkStoreWithMock(t)

	mock.ExpectExec("DELETE FROM document_chunks WHERE document_id").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, store.DeleteChunksByDocument(context.Background(), "doc-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
