package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/shestoi/warehouse/internal/service"

// counters создаются через глобальный MeterProvider (noop, если OTel выключен)
func newCounter(name, description string) metric.Int64Counter {
	c, err := otel.Meter(meterName).Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
	}
	return c
}
