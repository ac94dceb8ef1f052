package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shestoi/warehouse/internal/repository"
)

// Storage реализует все репозитории склада в памяти.
// Используется для разработки и тестирования.
// RunInTx держит мьютекс на всю единицу работы и восстанавливает снимок при ошибке.
type Storage struct {
	mu  sync.RWMutex
	now func() time.Time

	items          map[int64]repository.Item
	movements      []repository.Movement
	nextItemID     int64
	nextMovementID int64
	cursor         int64
}

// NewStorage создаёт пустое хранилище
func NewStorage() *Storage {
	return &Storage{
		now:   time.Now,
		items: make(map[int64]repository.Item),
	}
}

// WithClock подменяет часы (для тестов)
func (s *Storage) WithClock(now func() time.Time) *Storage {
	s.now = now
	return s
}

// Items возвращает репозиторий товаров, каждая операция под своим lock
func (s *Storage) Items() repository.ItemRepository { return itemRepo{s: s} }

// Movements возвращает репозиторий журнала, каждая операция под своим lock
func (s *Storage) Movements() repository.MovementRepository { return movementRepo{s: s} }

// Dashboard возвращает агрегирующий репозиторий
func (s *Storage) Dashboard() repository.DashboardRepository { return dashboardRepo{s: s} }

// Cursor возвращает позицию outbox
func (s *Storage) Cursor() repository.OutboxCursor { return cursorRepo{s: s} }

type txView struct{ s *Storage }

func (t txView) Items() repository.ItemRepository         { return itemRepo{s: t.s, inTx: true} }
func (t txView) Movements() repository.MovementRepository { return movementRepo{s: t.s, inTx: true} }

// RunInTx выполняет fn атомарно относительно других операций хранилища
func (s *Storage) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	itemsSnap := maps.Clone(s.items)
	movementsLen := len(s.movements)
	nextItemID, nextMovementID := s.nextItemID, s.nextMovementID

	if err := fn(txView{s: s}); err != nil {
		s.items = itemsSnap
		s.movements = s.movements[:movementsLen]
		s.nextItemID, s.nextMovementID = nextItemID, nextMovementID
		return err
	}
	return nil
}

// lock/rlock не берут мьютекс внутри RunInTx: он уже захвачен
func (s *Storage) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Storage) rlock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

type itemRepo struct {
	s    *Storage
	inTx bool
}

func (r itemRepo) GetByID(ctx context.Context, id int64) (repository.Item, error) {
	defer r.s.rlock(r.inTx)()

	it, ok := r.s.items[id]
	if !ok {
		return repository.Item{}, repository.ErrNotFound
	}
	return it, nil
}

func (r itemRepo) GetByCode(ctx context.Context, code string) (repository.Item, error) {
	defer r.s.rlock(r.inTx)()

	for _, it := range r.s.items {
		if it.Code == code {
			return it, nil
		}
	}
	return repository.Item{}, repository.ErrNotFound
}

func (r itemRepo) codeTaken(code string, exceptID int64) bool {
	for _, it := range r.s.items {
		if it.Code == code && it.ID != exceptID {
			return true
		}
	}
	return false
}

func (r itemRepo) Insert(ctx context.Context, it repository.Item) (int64, error) {
	defer r.s.lock(r.inTx)()

	if r.codeTaken(it.Code, 0) {
		return 0, repository.ErrConflict
	}

	r.s.nextItemID++
	now := r.s.now()
	it.ID = r.s.nextItemID
	it.StockQuantity = 0
	it.CreatedAt = now
	it.UpdatedAt = now
	r.s.items[it.ID] = it
	return it.ID, nil
}

func (r itemRepo) Update(ctx context.Context, it repository.Item) error {
	defer r.s.lock(r.inTx)()

	cur, ok := r.s.items[it.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.codeTaken(it.Code, it.ID) {
		return repository.ErrConflict
	}

	cur.Name = it.Name
	cur.Code = it.Code
	cur.Unit = it.Unit
	cur.Specification = it.Specification
	cur.Threshold = it.Threshold
	cur.OperatorID = it.OperatorID
	cur.UpdatedAt = r.s.now()
	r.s.items[it.ID] = cur
	return nil
}

func (r itemRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	defer r.s.lock(r.inTx)()

	var n int64
	for _, id := range ids {
		if _, ok := r.s.items[id]; ok {
			delete(r.s.items, id)
			n++
		}
	}
	return n, nil
}

func matchItem(it repository.Item, f repository.ItemFilter) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Code != "" && !strings.Contains(strings.ToLower(it.Code), strings.ToLower(f.Code)) {
		return false
	}
	return true
}

func (r itemRepo) filtered(f repository.ItemFilter) []repository.Item {
	out := make([]repository.Item, 0)
	for _, it := range r.s.items {
		if matchItem(it, f) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortItems(items []repository.Item, orderBy string) error {
	desc := strings.HasPrefix(orderBy, "-")
	key := strings.TrimPrefix(orderBy, "-")

	var less func(a, b repository.Item) bool
	switch key {
	case "":
		desc = true
		less = func(a, b repository.Item) bool { return a.ID < b.ID }
	case "id":
		less = func(a, b repository.Item) bool { return a.ID < b.ID }
	case "name":
		less = func(a, b repository.Item) bool { return a.Name < b.Name }
	case "code":
		less = func(a, b repository.Item) bool { return a.Code < b.Code }
	case "stock":
		less = func(a, b repository.Item) bool { return a.StockQuantity < b.StockQuantity }
	case "updated_at":
		less = func(a, b repository.Item) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return fmt.Errorf("unsupported order by %q", orderBy)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
	return nil
}

func paginate[T any](all []T, page, pageSize int) []T {
	from := repository.Offset(page, pageSize)
	if from >= len(all) {
		return []T{}
	}
	to := min(from+pageSize, len(all))
	return all[from:to]
}

func (r itemRepo) List(ctx context.Context, q repository.ItemQuery) (repository.Page[repository.Item], error) {
	defer r.s.rlock(r.inTx)()

	all := r.filtered(q.ItemFilter)
	if err := sortItems(all, q.OrderBy); err != nil {
		return repository.Page[repository.Item]{}, err
	}
	return repository.Page[repository.Item]{
		Items:    paginate(all, q.Page, q.PageSize),
		Total:    int64(len(all)),
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

func (r itemRepo) ListAll(ctx context.Context, f repository.ItemFilter) ([]repository.Item, error) {
	defer r.s.rlock(r.inTx)()
	return r.filtered(f), nil
}

func (r itemRepo) ListAllCodes(ctx context.Context) ([]string, error) {
	defer r.s.rlock(r.inTx)()

	codes := make([]string, 0, len(r.s.items))
	for _, it := range r.s.items {
		codes = append(codes, it.Code)
	}
	return codes, nil
}

func (r itemRepo) AdjustStock(ctx context.Context, id int64, delta int64, operatorID int64) (int64, error) {
	defer r.s.lock(r.inTx)()

	it, ok := r.s.items[id]
	if !ok || it.StockQuantity+delta < 0 {
		return 0, nil
	}
	it.StockQuantity += delta
	it.OperatorID = operatorID
	it.UpdatedAt = r.s.now()
	r.s.items[id] = it
	return 1, nil
}

type movementRepo struct {
	s    *Storage
	inTx bool
}

func (r movementRepo) withItem(m repository.Movement) repository.Movement {
	if it, ok := r.s.items[m.ItemID]; ok {
		m.ItemName = it.Name
		m.ItemCode = it.Code
		m.ItemUnit = it.Unit
		m.ItemSpecification = it.Specification
	}
	return m
}

func (r movementRepo) Append(ctx context.Context, m repository.Movement) (int64, error) {
	defer r.s.lock(r.inTx)()

	r.s.nextMovementID++
	m.ID = r.s.nextMovementID
	if m.OperatedAt.IsZero() {
		m.OperatedAt = r.s.now()
	}
	m.ItemName, m.ItemCode, m.ItemUnit, m.ItemSpecification = "", "", "", ""
	r.s.movements = append(r.s.movements, m)
	return m.ID, nil
}

// newestFirst сортирует как ORDER BY operated_at DESC, id DESC
func newestFirst(ms []repository.Movement) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].OperatedAt.Equal(ms[j].OperatedAt) {
			return ms[i].OperatedAt.After(ms[j].OperatedAt)
		}
		return ms[i].ID > ms[j].ID
	})
}

func (r movementRepo) List(ctx context.Context, q repository.MovementQuery) (repository.Page[repository.Movement], error) {
	defer r.s.rlock(r.inTx)()

	all := make([]repository.Movement, 0)
	for _, m := range r.s.movements {
		m = r.withItem(m)
		switch {
		case q.ItemID > 0 && m.ItemID != q.ItemID:
			continue
		case q.ItemName != "" && !strings.Contains(strings.ToLower(m.ItemName), strings.ToLower(q.ItemName)):
			continue
		case q.ItemCode != "" && !strings.Contains(strings.ToLower(m.ItemCode), strings.ToLower(q.ItemCode)):
			continue
		case q.Direction != nil && m.Direction != *q.Direction:
			continue
		case !q.From.IsZero() && m.OperatedAt.Before(q.From):
			continue
		case !q.To.IsZero() && !m.OperatedAt.Before(q.To):
			continue
		}
		all = append(all, m)
	}
	newestFirst(all)

	return repository.Page[repository.Movement]{
		Items:    paginate(all, q.Page, q.PageSize),
		Total:    int64(len(all)),
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

func (r movementRepo) ListByItem(ctx context.Context, itemID int64) ([]repository.Movement, error) {
	defer r.s.rlock(r.inTx)()

	out := make([]repository.Movement, 0)
	for _, m := range r.s.movements {
		if m.ItemID == itemID {
			out = append(out, r.withItem(m))
		}
	}
	newestFirst(out)
	return out, nil
}

func (r movementRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]repository.Movement, error) {
	defer r.s.rlock(r.inTx)()

	out := make([]repository.Movement, 0)
	// movements добавляются с возрастающим id
	for _, m := range r.s.movements {
		if m.ID > afterID {
			out = append(out, r.withItem(m))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type dashboardRepo struct{ s *Storage }

func (r dashboardRepo) ItemStats(ctx context.Context) (repository.ItemStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var st repository.ItemStats
	for _, it := range r.s.items {
		st.TotalItems++
		st.TotalStock += it.StockQuantity
		if it.StockQuantity <= it.Threshold {
			st.LowStockCount++
		}
	}
	return st, nil
}

func (r dashboardRepo) CountMovements(ctx context.Context, from, to time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, m := range r.s.movements {
		if !m.OperatedAt.Before(from) && m.OperatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r dashboardRepo) TopByStock(ctx context.Context, limit int) ([]repository.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := slices.Collect(maps.Values(r.s.items))
	sort.Slice(all, func(i, j int) bool {
		if all[i].StockQuantity != all[j].StockQuantity {
			return all[i].StockQuantity > all[j].StockQuantity
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r dashboardRepo) DailyCounts(ctx context.Context, from, to time.Time) ([]repository.DailyCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type key struct {
		day string
		dir repository.Direction
	}
	counts := make(map[key]int64)
	for _, m := range r.s.movements {
		if m.OperatedAt.Before(from) || !m.OperatedAt.Before(to) {
			continue
		}
		counts[key{day: m.OperatedAt.In(from.Location()).Format(time.DateOnly), dir: m.Direction}]++
	}

	out := make([]repository.DailyCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, repository.DailyCount{Day: k.day, Direction: k.dir, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Direction < out[j].Direction
	})
	return out, nil
}

func (r dashboardRepo) LowStockItems(ctx context.Context) ([]repository.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]repository.Item, 0)
	for _, it := range r.s.items {
		if it.StockQuantity <= it.Threshold {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StockQuantity != out[j].StockQuantity {
			return out[i].StockQuantity < out[j].StockQuantity
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type cursorRepo struct{ s *Storage }

func (c cursorRepo) Load(ctx context.Context) (int64, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.s.cursor, nil
}

func (c cursorRepo) Save(ctx context.Context, movementID int64) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.cursor = movementID
	return nil
}
