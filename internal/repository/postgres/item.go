package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/warehouse/internal/repository"
)

const itemColumns = `id, name, code, unit, specification, stock_quantity, threshold, operator_id, created_at, updated_at`

var itemOrderBy = map[string]string{
	"":            "id DESC",
	"id":          "id ASC",
	"-id":         "id DESC",
	"name":        "name ASC, id ASC",
	"-name":       "name DESC, id DESC",
	"code":        "code ASC",
	"-code":       "code DESC",
	"stock":       "stock_quantity ASC, id ASC",
	"-stock":      "stock_quantity DESC, id DESC",
	"updated_at":  "updated_at ASC, id ASC",
	"-updated_at": "updated_at DESC, id DESC",
}

// ItemRepository реализует repository.ItemRepository используя PostgreSQL
type ItemRepository struct {
	q querier
}

// NewItemRepository создаёт репозиторий товаров поверх пула
func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{q: pool}
}

func scanItem(row pgx.Row) (repository.Item, error) {
	var it repository.Item
	err := row.Scan(&it.ID, &it.Name, &it.Code, &it.Unit, &it.Specification,
		&it.StockQuantity, &it.Threshold, &it.OperatorID, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func collectItems(rows pgx.Rows) ([]repository.Item, error) {
	defer rows.Close()

	items := make([]repository.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ItemRepository) getOne(ctx context.Context, where string, arg any) (repository.Item, error) {
	it, err := scanItem(r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Item{}, repository.ErrNotFound
		}
		return repository.Item{}, err
	}
	return it, nil
}

// GetByID получает товар по ID
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (repository.Item, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByCode получает товар по коду
func (r *ItemRepository) GetByCode(ctx context.Context, code string) (repository.Item, error) {
	return r.getOne(ctx, "code = $1", code)
}

// Insert создаёт товар с нулевым остатком и возвращает его ID
func (r *ItemRepository) Insert(ctx context.Context, it repository.Item) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx,
		`INSERT INTO items (name, code, unit, specification, stock_quantity, threshold, operator_id)
		 VALUES ($1, $2, $3, $4, 0, $5, $6)
		 RETURNING id`,
		it.Name, it.Code, it.Unit, it.Specification, it.Threshold, it.OperatorID).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, repository.ErrConflict
		}
		return 0, err
	}
	return id, nil
}

// Update обновляет атрибуты товара. stock_quantity не меняется.
func (r *ItemRepository) Update(ctx context.Context, it repository.Item) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE items
		 SET name = $2, code = $3, unit = $4, specification = $5, threshold = $6,
		     operator_id = $7, updated_at = now()
		 WHERE id = $1`,
		it.ID, it.Name, it.Code, it.Unit, it.Specification, it.Threshold, it.OperatorID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByIDs удаляет товары по списку ID. Журнал движений не трогается.
func (r *ItemRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func itemWhere(f repository.ItemFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Name != "" {
		w.add("name ILIKE '%' || ? || '%'", f.Name)
	}
	if f.Code != "" {
		w.add("code ILIKE '%' || ? || '%'", f.Code)
	}
	return w
}

// List возвращает страницу товаров по фильтру
func (r *ItemRepository) List(ctx context.Context, q repository.ItemQuery) (repository.Page[repository.Item], error) {
	orderBy, ok := itemOrderBy[q.OrderBy]
	if !ok {
		return repository.Page[repository.Item]{}, fmt.Errorf("unsupported order by %q", q.OrderBy)
	}

	w := itemWhere(q.ItemFilter)

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM items`+w.sql(), w.args...).Scan(&total); err != nil {
		return repository.Page[repository.Item]{}, err
	}

	sql := fmt.Sprintf(`SELECT %s FROM items%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		itemColumns, w.sql(), orderBy, w.next(), w.next()+1)
	args := append(w.args, q.PageSize, repository.Offset(q.Page, q.PageSize))

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return repository.Page[repository.Item]{}, err
	}
	items, err := collectItems(rows)
	if err != nil {
		return repository.Page[repository.Item]{}, err
	}

	return repository.Page[repository.Item]{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// ListAll возвращает все товары по фильтру без пагинации
func (r *ItemRepository) ListAll(ctx context.Context, f repository.ItemFilter) ([]repository.Item, error) {
	w := itemWhere(f)
	rows, err := r.q.Query(ctx, `SELECT `+itemColumns+` FROM items`+w.sql()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// ListAllCodes возвращает коды всех товаров
func (r *ItemRepository) ListAllCodes(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT code FROM items`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// AdjustStock атомарно меняет остаток. Строка блокируется UPDATE до конца транзакции,
// условие не даёт уйти в минус при конкурентных списаниях.
func (r *ItemRepository) AdjustStock(ctx context.Context, id int64, delta int64, operatorID int64) (int64, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE items
		 SET stock_quantity = stock_quantity + $2, operator_id = $3, updated_at = now()
		 WHERE id = $1 AND stock_quantity + $2 >= 0`,
		id, delta, operatorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
