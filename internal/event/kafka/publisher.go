package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/repository"
	"github.com/shestoi/warehouse/platform/observability"
)

const (
	// EventTypeStockMoved тип события движения запаса
	EventTypeStockMoved = "warehouse.stock.moved"
	eventVersion        = 1
)

// MessageWriter часть kafka.Writer, которая нужна публикатору
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StockMovedEvent JSON payload события
type StockMovedEvent struct {
	EventID      string `json:"event_id"`
	EventType    string `json:"event_type"`
	EventVersion int    `json:"event_version"`
	OccurredAt   string `json:"occurred_at"`
	MovementID   int64  `json:"movement_id"`
	ItemID       int64  `json:"item_id"`
	ItemCode     string `json:"item_code,omitempty"`
	Direction    string `json:"direction"`
	Quantity     int64  `json:"quantity"`
	PostStock    int64  `json:"post_stock"`
	HandlerID    int64  `json:"handler_id"`
	Remark       string `json:"remark,omitempty"`
}

// movementNamespace пространство имён для детерминированных event_id
var movementNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("warehouse/stock-movement"))

// MovementEventID возвращает event_id движения. Повторная публикация того же
// движения даёт тот же id, по нему потребитель отсекает дубли.
func MovementEventID(movementID int64) string {
	return uuid.NewSHA1(movementNamespace, []byte(strconv.FormatInt(movementID, 10))).String()
}

// NewStockMovedEvent формирует событие из записи журнала
func NewStockMovedEvent(m repository.Movement) StockMovedEvent {
	return StockMovedEvent{
		EventID:      MovementEventID(m.ID),
		EventType:    EventTypeStockMoved,
		EventVersion: eventVersion,
		OccurredAt:   m.OperatedAt.UTC().Format(time.RFC3339),
		MovementID:   m.ID,
		ItemID:       m.ItemID,
		ItemCode:     m.ItemCode,
		Direction:    m.Direction.String(),
		Quantity:     m.Quantity,
		PostStock:    m.PostStock,
		HandlerID:    m.HandlerID,
		Remark:       m.Remark,
	}
}

// MovementEventPublisher публикует движения запаса в Kafka
type MovementEventPublisher struct {
	logger *zap.Logger
	writer MessageWriter
	topic  string
}

// NewMovementEventPublisher создаёт новый Kafka publisher для событий движения запаса
func NewMovementEventPublisher(logger *zap.Logger, brokers []string, topic string) *MovementEventPublisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	return NewMovementEventPublisherWithWriter(logger, writer, topic)
}

// NewMovementEventPublisherWithWriter создаёт publisher поверх готового writer
func NewMovementEventPublisherWithWriter(logger *zap.Logger, writer MessageWriter, topic string) *MovementEventPublisher {
	return &MovementEventPublisher{
		logger: logger,
		writer: writer,
		topic:  topic,
	}
}

// Close закрывает Kafka writer
func (p *MovementEventPublisher) Close() error {
	return p.writer.Close()
}

// PublishMovements публикует движения одной пачкой. Ключ сообщения ID товара,
// поэтому события одного товара попадают в одну партицию по порядку.
func (p *MovementEventPublisher) PublishMovements(ctx context.Context, movements []repository.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(movements))
	for _, m := range movements {
		value, err := json.Marshal(NewStockMovedEvent(m))
		if err != nil {
			return fmt.Errorf("marshal movement %d: %w", m.ID, err)
		}
		msg := kafka.Message{
			Key:   []byte(strconv.FormatInt(m.ItemID, 10)),
			Value: value,
		}
		observability.InjectKafkaHeaders(ctx, &msg)
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("failed to publish stock movement events",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.Int("count", len(msgs)),
		)
		return err
	}

	p.logger.Debug("stock movement events published",
		zap.String("topic", p.topic),
		zap.Int("count", len(msgs)),
		zap.Int64("last_movement_id", movements[len(movements)-1].ID),
	)
	return nil
}
