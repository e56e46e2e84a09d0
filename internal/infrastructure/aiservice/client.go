package aiservice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/resilience"
)

const (
	defaultConnectTimeout = 60 * time.Second
	defaultReadTimeout    = 600 * time.Second
)

type Options struct {
	ConnectTimeout time.Duration
	// ReadTimeout bounds the whole exchange; generation may run for minutes.
	ReadTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

// Client talks to the AI service over JSON/HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

func New(baseURL string, opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(opts.ConnectTimeout, opts.ReadTimeout),
		executor:   opts.ResilienceExecutor,
		logger:     opts.Logger,
	}
}

type planRequest struct {
	Question string `json:"question"`
}

func (c *Client) Plan(ctx context.Context, question string) (domain.QueryPlan, error) {
	var plan domain.QueryPlan
	if err := c.call(ctx, "plan", "/plan", planRequest{Question: question}, &plan); err != nil {
		return domain.QueryPlan{}, err
	}
	return plan, nil
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var response embedResponse
	if err := c.call(ctx, "embed", "/embed", embedRequest{Text: text}, &response); err != nil {
		return nil, err
	}
	if len(response.Embedding) == 0 {
		return nil, domain.WrapError(domain.ErrRemoteCall, "ai service embed", errors.New("empty embedding result"))
	}
	return response.Embedding, nil
}

type ingestRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

func (c *Client) Ingest(ctx context.Context, text string, metadata map[string]any) (domain.IngestResult, error) {
	var result domain.IngestResult
	if err := c.call(ctx, "ingest", "/ingest", ingestRequest{Text: text, Metadata: metadata}, &result); err != nil {
		return domain.IngestResult{}, err
	}
	return result, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k"`
}

type rerankResponse struct {
	Results []domain.RerankResult `json:"results"`
}

func (c *Client) Rerank(ctx context.Context, query string, documents []string, topK int) ([]domain.RerankResult, error) {
	var response rerankResponse
	req := rerankRequest{Query: query, Documents: documents, TopK: topK}
	if err := c.call(ctx, "rerank", "/rerank", req, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

type askRequest struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

func (c *Client) Ask(ctx context.Context, question, contextBlob string) (domain.GeneratedAnswer, error) {
	var answer domain.GeneratedAnswer
	if err := c.call(ctx, "ask", "/ask", askRequest{Question: question, Context: contextBlob}, &answer); err != nil {
		return domain.GeneratedAnswer{}, err
	}
	answer.Answer = strings.TrimSpace(answer.Answer)
	return answer, nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	start := time.Now()
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "aiservice."+operation, call, classifyAIServiceError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "ai_service_call_failed",
			"operation", operation,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return wrapRemoteError("ai service "+operation, err)
	}
	c.logger.DebugContext(ctx, "ai_service_call", "operation", operation, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
