package observability

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// kafkaHeaderCarrier адаптирует заголовки kafka.Message к propagation.TextMapCarrier
type kafkaHeaderCarrier struct {
	headers *[]kafka.Header
}

// NewKafkaHeaderCarrier создаёт carrier поверх заголовков сообщения
func NewKafkaHeaderCarrier(headers *[]kafka.Header) *kafkaHeaderCarrier {
	return &kafkaHeaderCarrier{headers: headers}
}

// Get возвращает значение по ключу (последнее, если ключ повторяется)
func (c *kafkaHeaderCarrier) Get(key string) string {
	hs := *c.headers
	for i := len(hs) - 1; i >= 0; i-- {
		if hs[i].Key == key {
			return string(hs[i].Value)
		}
	}
	return ""
}

// Set заменяет значение ключа или добавляет новый заголовок
func (c *kafkaHeaderCarrier) Set(key, value string) {
	hs := *c.headers
	for i := range hs {
		if hs[i].Key == key {
			hs[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(hs, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *kafkaHeaderCarrier) Keys() []string {
	out := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		out = append(out, h.Key)
	}
	return out
}

// InjectKafkaHeaders кладёт trace context из ctx в заголовки сообщения
func InjectKafkaHeaders(ctx context.Context, msg *kafka.Message) {
	otel.GetTextMapPropagator().Inject(ctx, NewKafkaHeaderCarrier(&msg.Headers))
}

// ExtractKafkaHeaders возвращает ctx с trace context из заголовков сообщения
func ExtractKafkaHeaders(ctx context.Context, msg kafka.Message) context.Context {
	headers := msg.Headers
	return otel.GetTextMapPropagator().Extract(ctx, NewKafkaHeaderCarrier(&headers))
}
