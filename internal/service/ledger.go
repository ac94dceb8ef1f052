package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/authctx"
	"github.com/shestoi/warehouse/internal/repository"
	"github.com/shestoi/warehouse/platform/observability"
)

// LedgerService журнал движений: приход и расход товара.
// Остаток меняется только здесь, вместе с записью в журнал в одной транзакции.
type LedgerService struct {
	logger    *zap.Logger
	store     repository.Store
	movements repository.MovementRepository
	now       func() time.Time
	counter   metric.Int64Counter
}

// NewLedgerService создаёт новый экземпляр LedgerService
func NewLedgerService(logger *zap.Logger, store repository.Store, movements repository.MovementRepository) *LedgerService {
	return &LedgerService{
		logger:    logger,
		store:     store,
		movements: movements,
		now:       time.Now,
		counter:   newCounter("warehouse.stock.movements", "Applied stock movements"),
	}
}

// CheckIn оприходует qty единиц товара. Возвращает ID записи журнала.
func (s *LedgerService) CheckIn(ctx context.Context, actor authctx.Actor, itemID, qty int64, remark string) (int64, error) {
	return s.apply(ctx, actor, itemID, repository.DirectionIn, qty, remark)
}

// CheckOut списывает qty единиц товара. Больше остатка списать нельзя.
func (s *LedgerService) CheckOut(ctx context.Context, actor authctx.Actor, itemID, qty int64, remark string) (int64, error) {
	return s.apply(ctx, actor, itemID, repository.DirectionOut, qty, remark)
}

func (s *LedgerService) apply(ctx context.Context, actor authctx.Actor, itemID int64, dir repository.Direction, qty int64, remark string) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, qty)
	}
	if actor.UserID <= 0 {
		return 0, fmt.Errorf("%w: handler is required", ErrInvalidArgument)
	}

	var (
		movementID int64
		postStock  int64
	)
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		items := tx.Items()

		item, err := items.GetByID(ctx, itemID)
		if err != nil {
			return fromRepo(err)
		}
		if dir == repository.DirectionOut && qty > item.StockQuantity {
			return &InsufficientStockError{ItemID: itemID, Current: item.StockQuantity, Requested: qty}
		}

		// Решение принимает условный UPDATE, проверка выше только для понятной ошибки
		n, err := items.AdjustStock(ctx, itemID, dir.Sign()*qty, actor.UserID)
		if err != nil {
			return fmt.Errorf("adjust stock: %w", err)
		}
		if n == 0 {
			cur, err := items.GetByID(ctx, itemID)
			if err != nil {
				return fromRepo(err)
			}
			return &InsufficientStockError{ItemID: itemID, Current: cur.StockQuantity, Requested: qty}
		}

		after, err := items.GetByID(ctx, itemID)
		if err != nil {
			return fromRepo(err)
		}
		postStock = after.StockQuantity

		movementID, err = tx.Movements().Append(ctx, repository.Movement{
			ItemID:     itemID,
			Direction:  dir,
			Quantity:   qty,
			HandlerID:  actor.UserID,
			Remark:     remark,
			PostStock:  postStock,
			OperatedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("append movement: %w", err)
		}
		return nil
	})

	log := observability.L(ctx, s.logger)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInsufficientStock) {
			log.Error("stock movement failed",
				zap.Int64("item_id", itemID),
				zap.Stringer("direction", dir),
				zap.Int64("quantity", qty),
				zap.Error(err))
		}
		return 0, err
	}

	s.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", dir.String())))
	log.Info("stock movement applied",
		zap.Int64("movement_id", movementID),
		zap.Int64("item_id", itemID),
		zap.Stringer("direction", dir),
		zap.Int64("quantity", qty),
		zap.Int64("post_stock", postStock),
		zap.Int64("handler_id", actor.UserID))

	return movementID, nil
}

// ListMovements возвращает страницу журнала по фильтру
func (s *LedgerService) ListMovements(ctx context.Context, q repository.MovementQuery) (repository.Page[repository.Movement], error) {
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return repository.Page[repository.Movement]{}, validationError("end date is before start date")
	}

	page, err := s.movements.List(ctx, q)
	if err != nil {
		return repository.Page[repository.Movement]{}, fmt.Errorf("list movements: %w", err)
	}
	return page, nil
}

// ListItemMovements возвращает весь журнал товара, новые записи первыми
func (s *LedgerService) ListItemMovements(ctx context.Context, itemID int64) ([]repository.Movement, error) {
	ms, err := s.movements.ListByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list item movements: %w", err)
	}
	return ms, nil
}
