package domain

type Chunk struct {
	ID         int64          `json:"id,omitempty"`
	DocumentID string         `json:"document_id"`
	Content    string         `json:"content"`
	SourceFile string         `json:"source_file"`
	Embedding  []float32      `json:"-"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ChunkProjection is the read-only shape returned by retrieval queries.
type ChunkProjection struct {
	Content    string `json:"content"`
	SourceFile string `json:"source_file"`
}
