package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/authctx"
	"github.com/shestoi/warehouse/internal/repository"
	"github.com/shestoi/warehouse/platform/observability"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var itemOrderBy = map[string]struct{}{
	"": {}, "id": {}, "-id": {}, "name": {}, "-name": {}, "code": {}, "-code": {},
	"stock": {}, "-stock": {}, "updated_at": {}, "-updated_at": {},
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// ItemService реестр товаров. Остаток здесь не меняется.
type ItemService struct {
	logger *zap.Logger
	items  repository.ItemRepository
}

// NewItemService создаёт новый экземпляр ItemService
func NewItemService(logger *zap.Logger, items repository.ItemRepository) *ItemService {
	return &ItemService{
		logger: logger,
		items:  items,
	}
}

// ItemInput атрибуты товара при создании и редактировании
type ItemInput struct {
	Name          string
	Code          string
	Unit          string
	Specification string
	Threshold     int64
}

func (in ItemInput) normalize() ItemInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	in.Unit = strings.TrimSpace(in.Unit)
	in.Specification = strings.TrimSpace(in.Specification)
	return in
}

// Validate проверяет обязательные поля
func (in ItemInput) Validate() error {
	switch {
	case in.Name == "":
		return validationError("name is required")
	case in.Code == "":
		return validationError("code is required")
	case in.Unit == "":
		return validationError("unit is required")
	case in.Specification == "":
		return validationError("specification is required")
	case in.Threshold < 0:
		return validationError("threshold must be non-negative, got %d", in.Threshold)
	}
	return nil
}

// AddItem создаёт товар с нулевым остатком
func (s *ItemService) AddItem(ctx context.Context, actor authctx.Actor, in ItemInput) (int64, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return 0, err
	}

	if _, err := s.items.GetByCode(ctx, in.Code); err == nil {
		return 0, fmt.Errorf("%w: %s", ErrConflict, in.Code)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("get item by code: %w", err)
	}

	id, err := s.items.Insert(ctx, repository.Item{
		Name:          in.Name,
		Code:          in.Code,
		Unit:          in.Unit,
		Specification: in.Specification,
		Threshold:     in.Threshold,
		OperatorID:    actor.UserID,
	})
	if err != nil {
		// Гонка двух вставок с одним кодом ловится уникальным индексом
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%w: %s", ErrConflict, in.Code)
		}
		return 0, fmt.Errorf("insert item: %w", err)
	}

	observability.L(ctx, s.logger).Info("item created",
		zap.Int64("item_id", id),
		zap.String("code", in.Code),
		zap.Int64("operator_id", actor.UserID))
	return id, nil
}

// UpdateItem меняет атрибуты товара. Уникальность кода проверяется, только если код изменился.
func (s *ItemService) UpdateItem(ctx context.Context, actor authctx.Actor, id int64, in ItemInput) error {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return err
	}

	cur, err := s.items.GetByID(ctx, id)
	if err != nil {
		return fromRepo(err)
	}

	if cur.Code != in.Code {
		if _, err := s.items.GetByCode(ctx, in.Code); err == nil {
			return fmt.Errorf("%w: %s", ErrConflict, in.Code)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("get item by code: %w", err)
		}
	}

	err = s.items.Update(ctx, repository.Item{
		ID:            id,
		Name:          in.Name,
		Code:          in.Code,
		Unit:          in.Unit,
		Specification: in.Specification,
		Threshold:     in.Threshold,
		OperatorID:    actor.UserID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrConflict) {
			return fromRepo(err)
		}
		return fmt.Errorf("update item: %w", err)
	}

	observability.L(ctx, s.logger).Info("item updated", zap.Int64("item_id", id), zap.Int64("operator_id", actor.UserID))
	return nil
}

// GetItem возвращает товар по ID
func (s *ItemService) GetItem(ctx context.Context, id int64) (repository.Item, error) {
	it, err := s.items.GetByID(ctx, id)
	if err != nil {
		return repository.Item{}, fromRepo(err)
	}
	return it, nil
}

// DeleteItems удаляет товары по списку ID. Журнал движений сохраняется.
func (s *ItemService) DeleteItems(ctx context.Context, actor authctx.Actor, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, validationError("ids are required")
	}

	n, err := s.items.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete items: %w", err)
	}

	observability.L(ctx, s.logger).Info("items deleted",
		zap.Int64s("ids", ids),
		zap.Int64("deleted", n),
		zap.Int64("operator_id", actor.UserID))
	return n, nil
}

// ListItems возвращает страницу товаров
func (s *ItemService) ListItems(ctx context.Context, q repository.ItemQuery) (repository.Page[repository.Item], error) {
	if _, ok := itemOrderBy[q.OrderBy]; !ok {
		return repository.Page[repository.Item]{}, validationError("unsupported orderBy %q", q.OrderBy)
	}
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)

	page, err := s.items.List(ctx, q)
	if err != nil {
		return repository.Page[repository.Item]{}, fmt.Errorf("list items: %w", err)
	}
	return page, nil
}

// ListAllItems возвращает все товары по фильтру без пагинации
func (s *ItemService) ListAllItems(ctx context.Context, f repository.ItemFilter) ([]repository.Item, error) {
	items, err := s.items.ListAll(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list all items: %w", err)
	}
	return items, nil
}
