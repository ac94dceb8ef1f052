package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TraceFields возвращает trace_id и span_id текущего span (локального или
// пришедшего извне через заголовки). Без валидного span возвращает nil.
func TraceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// L возвращает base с trace-полями из ctx и дополнительными fields.
//
//	log := observability.L(ctx, s.logger, zap.Int64("operator_id", actor.UserID))
func L(ctx context.Context, base *zap.Logger, fields ...zap.Field) *zap.Logger {
	fields = append(TraceFields(ctx), fields...)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
