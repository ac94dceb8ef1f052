package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/warehouse/internal/repository"
)

const uniqueViolation = "23505"

// querier общий интерфейс *pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store реализует repository.Store: единица работы в одной транзакции PostgreSQL
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создаёт Store поверх пула соединений
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type txRepos struct {
	items     *ItemRepository
	movements *MovementRepository
}

func (t txRepos) Items() repository.ItemRepository         { return t.items }
func (t txRepos) Movements() repository.MovementRepository { return t.movements }

// RunInTx выполняет fn в транзакции. Ошибка fn (или commit) откатывает все изменения.
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Гарантируем откат транзакции в случае ошибки
	defer tx.Rollback(ctx)

	if err := fn(txRepos{items: &ItemRepository{q: tx}, movements: &MovementRepository{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// whereBuilder собирает WHERE с позиционными плейсхолдерами $1, $2, ...
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// next возвращает номер следующего плейсхолдера
func (w *whereBuilder) next() int {
	return len(w.args) + 1
}
