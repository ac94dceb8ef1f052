package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Item представляет доменную модель товара на складе.
// StockQuantity меняется только через журнал движений (AdjustStock).
type Item struct {
	ID            int64
	Name          string
	Code          string
	Unit          string
	Specification string
	StockQuantity int64
	Threshold     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	OperatorID    int64
}

// Direction направление движения товара. В БД хранится как smallint.
type Direction int16

const (
	DirectionOut Direction = 0
	DirectionIn  Direction = 1
)

// Sign возвращает знак изменения остатка для направления
func (d Direction) Sign() int64 {
	if d == DirectionOut {
		return -1
	}
	return 1
}

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return fmt.Sprintf("Direction(%d)", int16(d))
	}
}

// ParseDirection разбирает направление из внешнего представления.
// Принимает "1"/"0", "IN"/"OUT" (в любом регистре) и 入库/出库.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "IN", "入库":
		return DirectionIn, nil
	case "0", "OUT", "出库":
		return DirectionOut, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Movement запись журнала движения товара. Только добавляется, не изменяется.
type Movement struct {
	ID         int64
	ItemID     int64
	Direction  Direction
	Quantity   int64
	HandlerID  int64
	Remark     string
	PostStock  int64
	OperatedAt time.Time

	// Заполняются при чтении (join с items), при удалённом товаре пустые
	ItemName          string
	ItemCode          string
	ItemUnit          string
	ItemSpecification string
}

// ItemFilter нечёткий фильтр по имени и коду
type ItemFilter struct {
	Name string
	Code string
}

// ItemQuery фильтр + сортировка + пагинация списка товаров
type ItemQuery struct {
	ItemFilter
	// OrderBy одно из: "id", "name", "code", "stock", "updated_at"; с префиксом "-" по убыванию
	OrderBy  string
	Page     int
	PageSize int
}

// MovementQuery фильтр журнала движений
type MovementQuery struct {
	ItemID    int64
	ItemName  string
	ItemCode  string
	Direction *Direction
	From      time.Time
	To        time.Time
	Page      int
	PageSize  int
}

// Page страница результата
type Page[T any] struct {
	Items    []T
	Total    int64
	Page     int
	PageSize int
}

// Offset возвращает смещение для страницы (нумерация с 1)
func Offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

// ItemStats агрегаты для дашборда
type ItemStats struct {
	TotalItems    int64
	TotalStock    int64
	LowStockCount int64
}

// DailyCount количество движений за день по направлению
type DailyCount struct {
	Day       string // YYYY-MM-DD
	Direction Direction
	Count     int64
}

// ItemRepository определяет интерфейс для работы с реестром товаров
// Service слой зависит от этого интерфейса, а не от конкретной реализации
type ItemRepository interface {
	// GetByID возвращает ErrNotFound, если товара нет
	GetByID(ctx context.Context, id int64) (Item, error)
	GetByCode(ctx context.Context, code string) (Item, error)
	// Insert возвращает ErrConflict при дубле кода
	Insert(ctx context.Context, item Item) (int64, error)
	// Update обновляет атрибуты товара, остаток не трогает
	Update(ctx context.Context, item Item) error
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	List(ctx context.Context, q ItemQuery) (Page[Item], error)
	ListAll(ctx context.Context, f ItemFilter) ([]Item, error)
	ListAllCodes(ctx context.Context) ([]string, error)
	// AdjustStock атомарно меняет остаток на delta, если результат не отрицательный.
	// Возвращает число изменённых строк (0 или 1).
	AdjustStock(ctx context.Context, id int64, delta int64, operatorID int64) (int64, error)
}

// MovementRepository журнал движений
type MovementRepository interface {
	Append(ctx context.Context, m Movement) (int64, error)
	List(ctx context.Context, q MovementQuery) (Page[Movement], error)
	ListByItem(ctx context.Context, itemID int64) ([]Movement, error)
	// ListAfter возвращает движения с id > afterID по возрастанию id
	ListAfter(ctx context.Context, afterID int64, limit int) ([]Movement, error)
}

// DashboardRepository агрегирующие запросы для дашборда
type DashboardRepository interface {
	ItemStats(ctx context.Context) (ItemStats, error)
	// CountMovements считает движения с from <= operated_at < to
	CountMovements(ctx context.Context, from, to time.Time) (int64, error)
	TopByStock(ctx context.Context, limit int) ([]Item, error)
	// DailyCounts группирует движения с from <= operated_at < to по дню и направлению
	DailyCounts(ctx context.Context, from, to time.Time) ([]DailyCount, error)
	LowStockItems(ctx context.Context) ([]Item, error)
}

// Tx набор репозиториев, работающих в одной транзакции
type Tx interface {
	Items() ItemRepository
	Movements() MovementRepository
}

// Store единица работы: fn выполняется атомарно, при ошибке изменения откатываются
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// OutboxCursor позиция последнего опубликованного движения
type OutboxCursor interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, movementID int64) error
}

// SessionRepository разрешает session_id в пользователя
type SessionRepository interface {
	// GetUserIDBySession возвращает ErrSessionNotFound, если сессия не найдена или истекла
	GetUserIDBySession(ctx context.Context, sessionID string) (int64, error)
}

// ErrNotFound возвращается, когда запись не найдена в хранилище
var ErrNotFound = errors.New("not found")

// ErrConflict возвращается при нарушении уникальности (код товара)
var ErrConflict = errors.New("conflict")

// ErrSessionNotFound возвращается, когда сессия не найдена или истекла
var ErrSessionNotFound = errors.New("session not found")
