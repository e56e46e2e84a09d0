package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/securedoc-assistant/internal/config"
	"github.com/kirillkom/securedoc-assistant/internal/core/ports"
	"github.com/kirillkom/securedoc-assistant/internal/core/usecase"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/aiservice"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/broadcast/nats"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/extractor/spreadsheet"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/workerpool"
	"github.com/kirillkom/securedoc-assistant/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Uploader ports.DocumentUploader
	Chat     ports.ChatService
	Catalog  ports.DocumentCatalog
	Pool     *workerpool.Pool

	db      *sql.DB
	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db, cfg.EmbeddingDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	chunkStore := postgres.NewChunkStore(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init staging storage: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	breakerMetrics := metrics.NewBreakerMetrics(service, httpMetrics.Registerer())

	broadcaster, err := nats.NewWithOptions(cfg.NATSURL, cfg.StatusSubject, nats.Options{
		Name: "securedoc-" + service,
		ResilienceExecutor: resilience.NewExecutor(resilience.FastRetry(), logger).
			WithStateObserver(breakerMetrics.Observe),
		Logger: logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init status broadcaster: %w", err)
	}

	ai := aiservice.New(cfg.AIServiceURL, aiservice.Options{
		ConnectTimeout:     cfg.AIConnectTimeout,
		ReadTimeout:        cfg.AIReadTimeout,
		ResilienceExecutor: resilience.NewExecutor(aiResilienceConfig(cfg), logger).
			WithStateObserver(breakerMetrics.Observe),
		Logger:             logger,
	})

	textExtractor := extractor.NewRouter(
		plaintext.NewExtractor(),
		spreadsheet.NewExtractor(),
		pdftext.NewExtractor(),
	)

	pool, err := workerpool.New(cfg.IngestWorkers, cfg.IngestQueueSize, logger)
	if err != nil {
		broadcaster.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init worker pool: %w", err)
	}

	ingestionMetrics := metrics.NewIngestionMetrics(service, httpMetrics.Registerer())
	metrics.RegisterPoolGauges(service, httpMetrics.Registerer(), pool.Running, pool.Queued, pool.Cap(), pool.QueueCap())

	processUC := usecase.NewProcessDocumentUseCase(
		repo,
		chunkStore,
		storage,
		textExtractor,
		ai,
		broadcaster,
		ingestionMetrics,
		usecase.ProcessOptions{Timeout: cfg.IngestTimeout},
		logger,
	)
	ingestUC := usecase.NewIngestDocumentUseCase(storage, pool, processUC, logger)
	queryUC := usecase.NewQueryUseCase(ai, chunkStore, usecase.QueryOptions{
		CandidateLimit: cfg.RAGCandidateLimit,
		ContextSize:    cfg.RAGContextSize,
		RerankTopK:     cfg.RAGRerankTopK,
	}, logger)
	documents := usecase.NewDocumentService(repo, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: httpMetrics,

		Uploader: ingestUC,
		Chat:     queryUC,
		Catalog:  documents,
		Pool:     pool,

		db: db,
		closeFn: func() {
			if err := pool.Close(cfg.ShutdownTimeout); err != nil {
				logger.Warn("worker_pool_close_failed", "error", err)
			}
			broadcaster.Close()
			_ = db.Close()
		},
	}, nil
}

func aiResilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.SingleAttempt()
	rc.BreakerEnabled = cfg.AIBreakerEnabled
	if cfg.AIBreakerMinCalls > 0 {
		rc.BreakerMinRequests = uint32(cfg.AIBreakerMinCalls)
	}
	if cfg.AIBreakerOpenAfter > 0 {
		rc.BreakerOpenTimeout = cfg.AIBreakerOpenAfter
	}
	return rc
}

func (a *App) HealthCheck(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

// Close drains running ingestion tasks before releasing connections.
func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
