package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/securedoc-assistant/internal/core/domain"
	"github.com/kirillkom/securedoc-assistant/internal/infrastructure/resilience"
)

const DefaultSubject = "ingestion-status"

type publisher interface {
	Publish(subject string, data []byte) error
}

// Broadcaster publishes document status updates with NATS core publish:
// at-most-once, no replay for late subscribers.
type Broadcaster struct {
	conn      *nats.Conn
	publisher publisher
	subject   string
	executor  *resilience.Executor
	logger    *slog.Logger
}

type Options struct {
	Name                 string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*Broadcaster, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Broadcaster, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	name := options.Name
	if name == "" {
		name = "securedoc-assistant"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Broadcaster{
		conn:      conn,
		publisher: conn,
		subject:   subject,
		executor:  options.ResilienceExecutor,
		logger:    logger,
	}, nil
}

func (b *Broadcaster) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Broadcaster) PublishStatus(ctx context.Context, update domain.StatusUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return domain.WrapError(domain.ErrSerialization, "marshal status update", err)
	}

	call := func(_ context.Context) error {
		if err := b.publisher.Publish(b.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish_status", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	b.logger.DebugContext(ctx, "status_published", "document_id", update.DocumentID, "status", update.Status)
	return nil
}

// SubscribeStatus delivers every update to handler until ctx is done, then
// drains the subscription.
func (b *Broadcaster) SubscribeStatus(ctx context.Context, handler func(context.Context, domain.StatusUpdate) error) error {
	if b.conn == nil {
		return errors.New("nats subscribe: no connection")
	}
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		b.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (b *Broadcaster) handleMessage(ctx context.Context, msg *nats.Msg, handler func(context.Context, domain.StatusUpdate) error) {
	if ctx.Err() != nil {
		return
	}
	var update domain.StatusUpdate
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		b.logger.WarnContext(ctx, "status_update_decode_failed", "subject", msg.Subject, "error", err)
		return
	}
	if err := handler(ctx, update); err != nil {
		b.logger.ErrorContext(ctx, "status_handler_failed", "document_id", update.DocumentID, "error", err)
	}
}
