package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/securedoc-assistant/internal/config"
	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/broadcast/nats"
	"github.com/kirillkom/securedoc-assistant/internal/observability/logging"
)

const serviceName = "statuswatch"

// statuswatch prints every ingestion status update published while it runs.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subscriber, err := nats.NewWithOptions(cfg.NATSURL, cfg.StatusSubject, nats.Options{
		Name:   "securedoc-" + serviceName,
		Logger: logger,
	})
	if err != nil {
		logger.Error("nats_connect_failed", "error", err)
		os.Exit(1)
	}
	defer subscriber.Close()

	logger.Info("statuswatch_subscribed", "subject", cfg.StatusSubject)
	err = subscriber.SubscribeStatus(ctx, func(ctx context.Context, update domain.StatusUpdate) error {
		attrs := []any{
			"document_id", update.DocumentID,
			"filename", update.Filename,
			"status", update.Status,
		}
		if update.Status == domain.StatusFailed {
			logger.WarnContext(ctx, "ingestion_status", append(attrs, "error_message", update.ErrorMessage)...)
			return nil
		}
		logger.InfoContext(ctx, "ingestion_status", attrs...)
		return nil
	})
	if err != nil {
		logger.Error("statuswatch_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
