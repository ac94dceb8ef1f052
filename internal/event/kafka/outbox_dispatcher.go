package kafka

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/repository"
)

// MovementPublisher публикует пачку движений
type MovementPublisher interface {
	PublishMovements(ctx context.Context, movements []repository.Movement) error
}

// OutboxDispatcher читает журнал движений после курсора и публикует его в Kafka.
// Журнал сам служит outbox: записи не меняются, двигается только курсор.
type OutboxDispatcher struct {
	logger     *zap.Logger
	movements  repository.MovementRepository
	cursor     repository.OutboxCursor
	publisher  MovementPublisher
	batchSize  int
	interval   time.Duration
	maxRetries int
	backoff    time.Duration
}

// NewOutboxDispatcher создаёт новый outbox dispatcher
func NewOutboxDispatcher(
	logger *zap.Logger,
	movements repository.MovementRepository,
	cursor repository.OutboxCursor,
	publisher MovementPublisher,
	batchSize int,
	interval time.Duration,
	maxRetries int,
	backoff time.Duration,
) *OutboxDispatcher {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &OutboxDispatcher{
		logger:     logger,
		movements:  movements,
		cursor:     cursor,
		publisher:  publisher,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// Start запускает цикл публикации и блокируется до отмены ctx
func (d *OutboxDispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting outbox dispatcher",
		zap.Int("batch_size", d.batchSize),
		zap.Duration("interval", d.interval),
		zap.Int("max_retries", d.maxRetries),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	if _, err := d.processBatch(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("failed to process initial batch", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher context cancelled, stopping")
			return nil
		case <-ticker.C:
			if _, err := d.processBatch(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("failed to process batch", zap.Error(err))
			}
		}
	}
}

// processBatch публикует одну пачку и возвращает число опубликованных движений.
// При ошибке курсор не двигается, пачка уйдёт повторно на следующем тике.
func (d *OutboxDispatcher) processBatch(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	after, err := d.cursor.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load outbox cursor: %w", err)
	}

	batch, err := d.movements.ListAfter(ctx, after, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list movements after %d: %w", after, err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	ctx, span := otel.Tracer("warehouse/outbox").Start(ctx, "outbox.publish")
	span.SetAttributes(
		attribute.Int("outbox.batch_size", len(batch)),
		attribute.Int64("outbox.from_movement_id", batch[0].ID),
	)
	defer span.End()

	if err := d.publishWithRetry(ctx, batch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return 0, err
	}

	last := batch[len(batch)-1].ID
	if err := d.cursor.Save(ctx, last); err != nil {
		return 0, fmt.Errorf("save outbox cursor %d: %w", last, err)
	}

	d.logger.Info("outbox batch published",
		zap.Int("count", len(batch)),
		zap.Int64("from_movement_id", batch[0].ID),
		zap.Int64("to_movement_id", last),
	)
	return len(batch), nil
}

func (d *OutboxDispatcher) publishWithRetry(ctx context.Context, batch []repository.Movement) error {
	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		err := d.publisher.PublishMovements(ctx, batch)
		if err == nil {
			return nil
		}
		lastErr = err
		d.logger.Warn("failed to publish outbox batch",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", d.maxRetries),
		)

		if attempt < d.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.backoff * time.Duration(attempt)):
			}
		}
	}
	return fmt.Errorf("failed to publish batch after %d attempts: %w", d.maxRetries, lastErr)
}
