package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/warehouse/internal/repository"
)

// DashboardRepository агрегирующие запросы дашборда
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository создаёт DashboardRepository
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// ItemStats считает число товаров, суммарный остаток и число товаров с низким остатком
func (r *DashboardRepository) ItemStats(ctx context.Context) (repository.ItemStats, error) {
	var s repository.ItemStats
	err := r.pool.QueryRow(ctx,
		`SELECT count(*),
		        COALESCE(sum(stock_quantity), 0),
		        count(*) FILTER (WHERE stock_quantity <= threshold)
		 FROM items`).Scan(&s.TotalItems, &s.TotalStock, &s.LowStockCount)
	return s, err
}

func (r *DashboardRepository) CountMovements(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM stock_movements WHERE operated_at >= $1 AND operated_at < $2`,
		from, to).Scan(&n)
	return n, err
}

func (r *DashboardRepository) TopByStock(ctx context.Context, limit int) ([]repository.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY stock_quantity DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// DailyCounts группирует движения по календарному дню в часовом поясе from
// (смещение берётся на момент from).
func (r *DashboardRepository) DailyCounts(ctx context.Context, from, to time.Time) ([]repository.DailyCount, error) {
	_, offset := from.Zone()

	rows, err := r.pool.Query(ctx,
		`SELECT to_char((operated_at AT TIME ZONE 'UTC') + make_interval(secs => $3), 'YYYY-MM-DD') AS day,
		        direction,
		        count(*)
		 FROM stock_movements
		 WHERE operated_at >= $1 AND operated_at < $2
		 GROUP BY day, direction
		 ORDER BY day`,
		from, to, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.DailyCount, 0)
	for rows.Next() {
		var dc repository.DailyCount
		if err := rows.Scan(&dc.Day, &dc.Direction, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func (r *DashboardRepository) LowStockItems(ctx context.Context) ([]repository.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE stock_quantity <= threshold ORDER BY stock_quantity ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// OutboxCursor хранит id последнего опубликованного движения
type OutboxCursor struct {
	pool *pgxpool.Pool
}

// NewOutboxCursor создаёт OutboxCursor
func NewOutboxCursor(pool *pgxpool.Pool) *OutboxCursor {
	return &OutboxCursor{pool: pool}
}

func (c *OutboxCursor) Load(ctx context.Context) (int64, error) {
	var id int64
	err := c.pool.QueryRow(ctx, `SELECT last_movement_id FROM movement_outbox_cursor WHERE id = 1`).Scan(&id)
	return id, err
}

func (c *OutboxCursor) Save(ctx context.Context, movementID int64) error {
	_, err := c.pool.Exec(ctx,
		`UPDATE movement_outbox_cursor SET last_movement_id = $1, updated_at = now() WHERE id = 1`, movementID)
	return err
}
