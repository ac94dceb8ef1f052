package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/authctx"
	"github.com/shestoi/warehouse/platform/observability"
)

const (
	defaultName          = "未知物品"
	defaultUnit          = "个"
	defaultSpecification = "普通"
	defaultThreshold     = int64(10)

	// InitialStockRemark примечание к автоматическому приходу при создании товара
	InitialStockRemark = "智能添加入库"
)

// CandidateOutcome результат обработки одного кандидата
type CandidateOutcome struct {
	Index  int
	ItemID int64
	Code   string
	// Err причина, по которой товар не создан
	Err error
	// SeededQuantity оприходованное количество; SeedErr ошибка прихода (товар всё равно создан)
	SeededQuantity int64
	SeedErr        error
}

// Added true, если товар создан
func (o CandidateOutcome) Added() bool {
	return o.Err == nil
}

// BatchResult итог пакетной загрузки
type BatchResult struct {
	Added    int
	Failed   int
	Outcomes []CandidateOutcome
}

// Success: что-то добавлено, либо добавлять было нечего
func (r BatchResult) Success() bool {
	return r.Added > 0 || (r.Added == 0 && r.Failed == 0)
}

// Message человекочитаемое описание итога
func (r BatchResult) Message() string {
	if r.Success() {
		return fmt.Sprintf("处理完成: 添加 %d, 失败 %d.", r.Added, r.Failed)
	}
	return fmt.Sprintf("添加物品失败 (处理 %d).", r.Failed)
}

// IngestService пакетное создание товаров из свободного текста
type IngestService struct {
	logger    *zap.Logger
	extractor Extractor
	codes     CodeLister
	items     ItemCreator
	stock     StockReceiver
	counter   metric.Int64Counter
}

// NewIngestService создаёт новый экземпляр IngestService
func NewIngestService(logger *zap.Logger, extractor Extractor, codes CodeLister, items ItemCreator, stock StockReceiver) *IngestService {
	return &IngestService{
		logger:    logger,
		extractor: extractor,
		codes:     codes,
		items:     items,
		stock:     stock,
		counter:   newCounter("warehouse.ingest.items", "Candidates processed by batch ingestion"),
	}
}

// Ingest извлекает кандидатов из text и создаёт товары строго по одному.
// Ошибка кандидата не прерывает пакет; фатальны только пустой ввод,
// недоступность модели и невозможность прочитать существующие коды.
func (s *IngestService) Ingest(ctx context.Context, actor authctx.Actor, text string) (BatchResult, error) {
	if strings.TrimSpace(text) == "" {
		return BatchResult{}, validationError("input cannot be empty")
	}

	log := observability.L(ctx, s.logger, zap.Int64("operator_id", actor.UserID))

	candidates, err := s.extractor.Extract(ctx, text)
	if err != nil {
		log.Error("candidate extraction failed", zap.Error(err))
		return BatchResult{}, fmt.Errorf("extract candidates: %w", err)
	}
	if len(candidates) == 0 {
		log.Warn("no candidates extracted", zap.Int("input_len", len(text)))
		return BatchResult{Outcomes: []CandidateOutcome{}}, nil
	}
	log.Info("candidates extracted", zap.Int("count", len(candidates)))

	codes, err := s.codes.ListAllCodes(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list item codes: %w", err)
	}
	alloc := NewCodeAllocator(codes)

	if start := candidates[0].StartNumber; start != nil {
		if alloc.StartAt(*start) {
			log.Info("using requested start number", zap.Int64("start_number", *start))
		} else {
			log.Warn("ignoring invalid start number", zap.Int64("start_number", *start))
		}
	}
	log.Debug("code allocation starts", zap.String("next_code", alloc.Next()), zap.Int("existing_codes", len(codes)))

	result := BatchResult{Outcomes: make([]CandidateOutcome, 0, len(candidates))}
	for i, c := range candidates {
		out := s.processCandidate(ctx, log, actor, alloc, i, c)
		if out.Added() {
			result.Added++
			s.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "added")))
		} else {
			result.Failed++
			s.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		}
		result.Outcomes = append(result.Outcomes, out)
	}

	log.Info("batch ingestion finished", zap.Int("added", result.Added), zap.Int("failed", result.Failed))
	return result, nil
}

func (s *IngestService) processCandidate(ctx context.Context, log *zap.Logger, actor authctx.Actor, alloc *CodeAllocator, index int, c Candidate) (out CandidateOutcome) {
	out.Index = index

	var (
		code      string
		committed bool
	)
	defer func() {
		if r := recover(); r != nil {
			if code != "" && !committed {
				alloc.Release(code)
			}
			out = CandidateOutcome{Index: index, Err: fmt.Errorf("unexpected error: %v", r)}
			log.Error("candidate processing panicked", zap.Int("index", index), zap.Any("panic", r))
		}
	}()

	in, qty, err := resolveCandidate(c)
	if err != nil {
		log.Warn("candidate rejected", zap.Int("index", index), zap.Error(err))
		out.Err = err
		return out
	}

	code = alloc.Reserve()
	in.Code = code

	id, err := s.items.AddItem(ctx, actor, in)
	if err != nil {
		alloc.Release(code)
		if errors.Is(err, ErrConflict) {
			// Код занят после чтения списка кодов, больше его не предлагаем
			alloc.Commit(code)
		}
		log.Error("failed to add item", zap.Int("index", index), zap.String("name", in.Name), zap.String("code", code), zap.Error(err))
		out.Err = err
		return out
	}
	alloc.Commit(code)
	committed = true
	out.ItemID, out.Code = id, code

	if qty == 0 {
		return out
	}

	if _, err := s.stock.CheckIn(ctx, actor, id, qty, InitialStockRemark); err != nil {
		// Товар уже создан и считается добавленным; приход нужно повторить вручную
		log.Warn("initial stock check-in failed, manual retry required",
			zap.Int64("item_id", id),
			zap.String("code", code),
			zap.Int64("quantity", qty),
			zap.Error(err))
		out.SeedErr = err
		return out
	}
	out.SeededQuantity = qty
	return out
}

// resolveCandidate применяет значения по умолчанию к отсутствующим полям.
// Присутствующее, но пустое поле или отрицательное число делает кандидата невалидным.
func resolveCandidate(c Candidate) (ItemInput, int64, error) {
	in := ItemInput{
		Name:          defaultName,
		Unit:          defaultUnit,
		Specification: defaultSpecification,
		Threshold:     defaultThreshold,
	}

	for _, f := range []struct {
		field string
		src   *string
		dst   *string
	}{
		{"name", c.Name, &in.Name},
		{"unit", c.Unit, &in.Unit},
		{"specification", c.Specification, &in.Specification},
	} {
		if f.src == nil {
			continue
		}
		v := strings.TrimSpace(*f.src)
		if v == "" {
			return ItemInput{}, 0, validationError("%s is empty", f.field)
		}
		*f.dst = v
	}

	if c.Threshold != nil {
		if *c.Threshold < 0 {
			return ItemInput{}, 0, validationError("threshold must be non-negative, got %d", *c.Threshold)
		}
		in.Threshold = *c.Threshold
	}

	var qty int64
	if c.Quantity != nil {
		if *c.Quantity < 0 {
			return ItemInput{}, 0, validationError("quantity must be non-negative, got %d", *c.Quantity)
		}
		qty = *c.Quantity
	}

	return in, qty, nil
}
