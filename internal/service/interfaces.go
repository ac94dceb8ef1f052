package service

import (
	"context"

	"github.com/shestoi/warehouse/internal/authctx"
)

// Candidate кандидат в товар, извлечённый из ответа модели.
// nil поле означает, что значение отсутствует (или не разобрано) и берётся значение по умолчанию.
type Candidate struct {
	Name          *string
	Unit          *string
	Specification *string
	Threshold     *int64
	Quantity      *int64
	// StartNumber учитывается только у первого кандидата пакета
	StartNumber *int64
}

// Extractor превращает свободный текст в список кандидатов.
// Нераспознанный ответ модели даёт пустой список без ошибки,
// сетевая ошибка оборачивает ErrUpstreamUnavailable.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Candidate, error)
}

// ReportWriter генерирует текст отчёта по готовому промпту
type ReportWriter interface {
	WriteReport(ctx context.Context, prompt string) (string, error)
}

// CodeLister список всех кодов товаров (отдельный запрос вместо выборки товаров целиком)
type CodeLister interface {
	ListAllCodes(ctx context.Context) ([]string, error)
}

// ItemCreator создание товара (реализуется ItemService)
type ItemCreator interface {
	AddItem(ctx context.Context, actor authctx.Actor, in ItemInput) (int64, error)
}

// StockReceiver приход товара (реализуется LedgerService)
type StockReceiver interface {
	CheckIn(ctx context.Context, actor authctx.Actor, itemID, qty int64, remark string) (int64, error)
}
