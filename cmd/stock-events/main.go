// Package main читает события движения запаса из Kafka и печатает их в лог.
//
// Утилита для отладки outbox: показывает, что публикует сервис склада.
// Брокеры и топик берутся из KAFKA_BROKERS и KAFKA_TOPIC
// (по умолчанию localhost:19092 и warehouse.stock.moved).
// KAFKA_GROUP_ID задаёт consumer group; без него чтение идёт с начала топика.
// Повторно доставленные движения (тот же event_id) пропускаются.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	eventkafka "github.com/shestoi/warehouse/internal/event/kafka"
	platformkafka "github.com/shestoi/warehouse/platform/kafka"
	platformlogging "github.com/shestoi/warehouse/platform/logging"
	"github.com/shestoi/warehouse/platform/observability"
)

const dedupTTL = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "stock-events",
		Env:         "local",
		Level:       "info",
		Format:      "console",
		AddCaller:   true,
	})
	if err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer platformlogging.Sync(logger)

	cfg := platformkafka.DefaultConfig()
	if err := platformkafka.LoadEnv(&cfg); err != nil {
		logger.Error("failed to load kafka config", zap.Error(err))
		os.Exit(1)
	}

	readerCfg := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  os.Getenv("KAFKA_GROUP_ID"),
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	if readerCfg.GroupID == "" {
		readerCfg.StartOffset = kafka.FirstOffset
	}
	reader := kafka.NewReader(readerCfg)
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Error("failed to close kafka reader", zap.Error(err))
		}
	}()

	processed := eventkafka.NewMemoryProcessedEventsStore()

	logger.Info("reading stock movement events",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.String("group_id", readerCfg.GroupID),
	)

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info("stopped")
				return
			}
			logger.Error("failed to read message", zap.Error(err))
			os.Exit(1)
		}

		var ev eventkafka.StockMovedEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			logger.Warn("skipping malformed event",
				zap.Error(err),
				zap.Int64("offset", m.Offset),
				zap.ByteString("value", m.Value),
			)
			continue
		}

		msgCtx := observability.ExtractKafkaHeaders(ctx, m)
		if dup, _ := processed.IsProcessed(msgCtx, ev.EventID); dup {
			logger.Debug("skipping duplicate event",
				zap.String("event_id", ev.EventID),
				zap.Int64("movement_id", ev.MovementID),
			)
			continue
		}
		_ = processed.MarkProcessed(msgCtx, ev.EventID, dedupTTL)

		observability.L(msgCtx, logger).Info("stock moved",
			zap.String("key", string(m.Key)),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int64("movement_id", ev.MovementID),
			zap.Int64("item_id", ev.ItemID),
			zap.String("direction", ev.Direction),
			zap.Int64("quantity", ev.Quantity),
			zap.Int64("post_stock", ev.PostStock),
			zap.String("occurred_at", ev.OccurredAt),
		)
	}
}
