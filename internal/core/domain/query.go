package domain

type QueryPlan struct {
	OriginalQuestion  string         `json:"original_question"`
	RewrittenQuestion string         `json:"rewritten_question"`
	Intent            string         `json:"intent"`
	Filters           map[string]any `json:"filters"`
}

// EffectiveQuestion is the question used for embedding, retrieval and generation.
func (p QueryPlan) EffectiveQuestion() string {
	if p.RewrittenQuestion != "" {
		return p.RewrittenQuestion
	}
	return p.OriginalQuestion
}

type RerankResult struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type IngestedChunk struct {
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

type IngestResult struct {
	DocumentMetadata map[string]any  `json:"document_metadata"`
	Chunks           []IngestedChunk `json:"chunks"`
}

type GeneratedAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type ChatAnswer struct {
	Answer        string    `json:"answer"`
	Sources       []string  `json:"sources"`
	Plan          QueryPlan `json:"-"`
	ContextChunks int       `json:"-"`
}
