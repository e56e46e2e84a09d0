package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
)

type aiFake struct {
	mu sync.Mutex

	plan    domain.QueryPlan
	planErr error

	embedding []float32
	embedErr  error
	embedText string

	ingestResult   domain.IngestResult
	ingestErr      error
	ingestCalls    int
	ingestMetadata map[string]any

	rerankFn    func(query string, documents []string, topK int) ([]domain.RerankResult, error)
	rerankCalls int
	rerankDocs  []string
	rerankTopK  int

	answer      string
	askErr      error
	askCalls    int
	askQuestion string
	askContext  string
}

func (f *aiFake) Plan(_ context.Context, question string) (domain.QueryPlan, error) {
	if f.planErr != nil {
		return domain.QueryPlan{}, f.planErr
	}
	plan := f.plan
	if plan.OriginalQuestion == "" && plan.RewrittenQuestion == "" {
		plan.RewrittenQuestion = question
	}
	return plan, nil
}

func (f *aiFake) Embed(_ context.Context, text string) ([]float32, error) {
	f.embedText = text
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.embedding == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return f.embedding, nil
}

func (f *aiFake) Ingest(_ context.Context, _ string, metadata map[string]any) (domain.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingestCalls++
	f.ingestMetadata = metadata
	if f.ingestErr != nil {
		return domain.IngestResult{}, f.ingestErr
	}
	return f.ingestResult, nil
}

func (f *aiFake) Rerank(_ context.Context, query string, documents []string, topK int) ([]domain.RerankResult, error) {
	f.rerankCalls++
	f.rerankDocs = append([]string(nil), documents...)
	f.rerankTopK = topK
	if f.rerankFn != nil {
		return f.rerankFn(query, documents, topK)
	}
	out := make([]domain.RerankResult, len(documents))
	for i, doc := range documents {
		out[i] = domain.RerankResult{Content: doc, Score: 1 / float64(i+1)}
	}
	return out, nil
}

func (f *aiFake) Ask(_ context.Context, question, contextBlob string) (domain.GeneratedAnswer, error) {
	f.askCalls++
	f.askQuestion = question
	f.askContext = contextBlob
	if f.askErr != nil {
		return domain.GeneratedAnswer{}, f.askErr
	}
	answer := f.answer
	if answer == "" {
		answer = "answer"
	}
	return domain.GeneratedAnswer{Answer: answer}, nil
}

type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, fmt.Sprintf(format, args...))
}

type chunkStoreFake struct {
	mu  sync.Mutex
	log *opLog

	vector      []domain.ChunkProjection
	vectorErr   error
	filtered    []domain.ChunkProjection
	filteredErr error
	keyword     []domain.ChunkProjection
	keywordErr  error

	vectorCalls    int
	filteredCalls  int
	keywordCalls   int
	lastPredicate  map[string]any
	lastLimit      int
	inserted       map[string][]domain.Chunk
	insertErr      error
	deleteErr      error
	deletedForDocs []string
}

func (f *chunkStoreFake) NearestByVector(_ context.Context, _ []float32, limit int) ([]domain.ChunkProjection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorCalls++
	f.lastLimit = limit
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return f.vector, nil
}

func (f *chunkStoreFake) NearestByVectorFiltered(_ context.Context, _ []float32, predicate map[string]any, limit int) ([]domain.ChunkProjection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filteredCalls++
	f.lastPredicate = predicate
	f.lastLimit = limit
	if f.filteredErr != nil {
		return nil, f.filteredErr
	}
	return f.filtered, nil
}

func (f *chunkStoreFake) NearestByKeyword(_ context.Context, _ string, _ int) ([]domain.ChunkProjection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keywordCalls++
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return f.keyword, nil
}

func (f *chunkStoreFake) InsertChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.inserted == nil {
		f.inserted = make(map[string][]domain.Chunk)
	}
	f.inserted[documentID] = append(f.inserted[documentID], chunks...)
	return nil
}

func (f *chunkStoreFake) DeleteChunksByDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.log.add("delete_chunks:%s", documentID)
	f.deletedForDocs = append(f.deletedForDocs, documentID)
	delete(f.inserted, documentID)
	return nil
}

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type docRepoFake struct {
	mu  sync.Mutex
	log *opLog

	docs        map[string]*domain.Document
	createErr   error
	statusErr   map[domain.DocumentStatus]error
	saveErr     error
	deleteErr   error
	listErr     error
	statusCalls []statusCall
	created     []domain.Document
	saved       []domain.Document
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.docs == nil {
		f.docs = make(map[string]*domain.Document)
	}
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	f.created = append(f.created, copyDoc)
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *docRepoFake) List(context.Context) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (f *docRepoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if err := f.statusErr[status]; err != nil {
		return err
	}
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update status", fmt.Errorf("id=%s", id))
	}
	doc.Status = status
	doc.ErrorMessage = errMessage
	return nil
}

func (f *docRepoFake) SaveIngested(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *doc)
	return nil
}

// DeleteWithChunks records both statements of the transaction, or none when it fails.
func (f *docRepoFake) DeleteWithChunks(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.log.add("delete_chunks:%s", id)
	f.log.add("delete_document:%s", id)
	delete(f.docs, id)
	return nil
}

func (f *docRepoFake) statuses() []domain.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DocumentStatus, len(f.statusCalls))
	for i, call := range f.statusCalls {
		out[i] = call.status
	}
	return out
}

type stagingFake struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
	removed []string
}

func (f *stagingFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.files[key] = raw
	return nil
}

func (f *stagingFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.files[key]
	if !ok {
		return nil, errors.New("staged file not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *stagingFake) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	delete(f.files, key)
	return nil
}

type extractorFake struct {
	text     string
	err      error
	filename string
}

func (f *extractorFake) Extract(_ context.Context, filename string, raw []byte) (string, error) {
	f.filename = filename
	if f.err != nil {
		return "", f.err
	}
	if f.text == "" {
		return string(raw), nil
	}
	return f.text, nil
}

type broadcasterFake struct {
	mu      sync.Mutex
	updates []domain.StatusUpdate
	err     error
}

func (f *broadcasterFake) PublishStatus(_ context.Context, update domain.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return f.err
}

func (f *broadcasterFake) statuses() []domain.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DocumentStatus, len(f.updates))
	for i, update := range f.updates {
		out[i] = update.Status
	}
	return out
}
