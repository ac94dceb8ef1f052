package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/warehouse/internal/repository"
)

// Товар может быть удалён, поэтому LEFT JOIN и COALESCE
const movementSelect = `SELECT m.id, m.item_id, m.direction, m.quantity, m.handler_id, m.remark, m.post_stock, m.operated_at,
	COALESCE(i.name, ''), COALESCE(i.code, ''), COALESCE(i.unit, ''), COALESCE(i.specification, '')
	FROM stock_movements m
	LEFT JOIN items i ON i.id = m.item_id`

// MovementRepository реализует repository.MovementRepository используя PostgreSQL
type MovementRepository struct {
	q querier
}

// NewMovementRepository создаёт репозиторий журнала поверх пула
func NewMovementRepository(pool *pgxpool.Pool) *MovementRepository {
	return &MovementRepository{q: pool}
}

func collectMovements(rows pgx.Rows) ([]repository.Movement, error) {
	defer rows.Close()

	out := make([]repository.Movement, 0)
	for rows.Next() {
		var m repository.Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Direction, &m.Quantity, &m.HandlerID, &m.Remark, &m.PostStock, &m.OperatedAt,
			&m.ItemName, &m.ItemCode, &m.ItemUnit, &m.ItemSpecification); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Append добавляет запись в журнал и возвращает её ID
func (r *MovementRepository) Append(ctx context.Context, m repository.Movement) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx,
		`INSERT INTO stock_movements (item_id, direction, quantity, handler_id, remark, post_stock, operated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		m.ItemID, int16(m.Direction), m.Quantity, m.HandlerID, m.Remark, m.PostStock, m.OperatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// List возвращает страницу журнала, новые записи первыми
func (r *MovementRepository) List(ctx context.Context, q repository.MovementQuery) (repository.Page[repository.Movement], error) {
	w := &whereBuilder{}
	if q.ItemID > 0 {
		w.add("m.item_id = ?", q.ItemID)
	}
	if q.ItemName != "" {
		w.add("i.name ILIKE '%' || ? || '%'", q.ItemName)
	}
	if q.ItemCode != "" {
		w.add("i.code ILIKE '%' || ? || '%'", q.ItemCode)
	}
	if q.Direction != nil {
		w.add("m.direction = ?", int16(*q.Direction))
	}
	if !q.From.IsZero() {
		w.add("m.operated_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		w.add("m.operated_at < ?", q.To)
	}

	var total int64
	countSQL := `SELECT count(*) FROM stock_movements m LEFT JOIN items i ON i.id = m.item_id` + w.sql()
	if err := r.q.QueryRow(ctx, countSQL, w.args...).Scan(&total); err != nil {
		return repository.Page[repository.Movement]{}, err
	}

	sql := fmt.Sprintf(`%s%s ORDER BY m.operated_at DESC, m.id DESC LIMIT $%d OFFSET $%d`,
		movementSelect, w.sql(), w.next(), w.next()+1)
	args := append(w.args, q.PageSize, repository.Offset(q.Page, q.PageSize))

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return repository.Page[repository.Movement]{}, err
	}
	items, err := collectMovements(rows)
	if err != nil {
		return repository.Page[repository.Movement]{}, err
	}

	return repository.Page[repository.Movement]{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// ListByItem возвращает весь журнал по товару, новые записи первыми
func (r *MovementRepository) ListByItem(ctx context.Context, itemID int64) ([]repository.Movement, error) {
	rows, err := r.q.Query(ctx, movementSelect+` WHERE m.item_id = $1 ORDER BY m.operated_at DESC, m.id DESC`, itemID)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

// ListAfter возвращает движения с id > afterID по возрастанию id (для outbox)
func (r *MovementRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]repository.Movement, error) {
	rows, err := r.q.Query(ctx, movementSelect+` WHERE m.id > $1 ORDER BY m.id ASC LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}
