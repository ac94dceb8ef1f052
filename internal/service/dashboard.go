package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/repository"
)

const (
	topItemLimit = 5
	trendDays    = 7
)

// TopItem товар из топа по остатку
type TopItem struct {
	Name     string
	Quantity int64
}

// TrendPoint число движений за день по направлениям
type TrendPoint struct {
	Date string // YYYY-MM-DD
	In   int64
	Out  int64
}

// DashboardSummary снимок показателей склада
type DashboardSummary struct {
	TotalItemCount        int64
	TotalStockQuantity    int64
	LowStockItemCount     int64
	TodayTransactionCount int64
	TopItemsByStock       []TopItem
	// RecentTransactionTrend ровно trendDays точек, от старых к новым
	RecentTransactionTrend []TrendPoint
	LowStockItems          []repository.Item
}

// DashboardService собирает снимок из нескольких независимых запросов.
// Согласованность между запросами не гарантируется; кеша нет.
type DashboardService struct {
	logger *zap.Logger
	repo   repository.DashboardRepository
	now    func() time.Time
}

// NewDashboardService создаёт новый экземпляр DashboardService
func NewDashboardService(logger *zap.Logger, repo repository.DashboardRepository) *DashboardService {
	return &DashboardService{
		logger: logger,
		repo:   repo,
		now:    time.Now,
	}
}

// WithClock подменяет часы
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Summary возвращает актуальный снимок показателей
func (s *DashboardService) Summary(ctx context.Context) (DashboardSummary, error) {
	today := startOfDay(s.now())
	tomorrow := today.AddDate(0, 0, 1)

	stats, err := s.repo.ItemStats(ctx)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("item stats: %w", err)
	}

	todayCount, err := s.repo.CountMovements(ctx, today, tomorrow)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("count today movements: %w", err)
	}

	top, err := s.repo.TopByStock(ctx, topItemLimit)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("top items: %w", err)
	}
	topItems := make([]TopItem, 0, len(top))
	for _, it := range top {
		topItems = append(topItems, TopItem{Name: it.Name, Quantity: it.StockQuantity})
	}

	start := today.AddDate(0, 0, -(trendDays - 1))
	counts, err := s.repo.DailyCounts(ctx, start, tomorrow)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("daily counts: %w", err)
	}

	low, err := s.repo.LowStockItems(ctx)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("low stock items: %w", err)
	}

	return DashboardSummary{
		TotalItemCount:         stats.TotalItems,
		TotalStockQuantity:     stats.TotalStock,
		LowStockItemCount:      stats.LowStockCount,
		TodayTransactionCount:  todayCount,
		TopItemsByStock:        topItems,
		RecentTransactionTrend: buildTrend(start, counts),
		LowStockItems:          low,
	}, nil
}

// buildTrend раскладывает счётчики по дням, дни без движений заполняются нулями
func buildTrend(start time.Time, counts []repository.DailyCount) []TrendPoint {
	byDay := make(map[string]*TrendPoint, len(counts))
	trend := make([]TrendPoint, trendDays)
	for i := range trend {
		trend[i].Date = start.AddDate(0, 0, i).Format(time.DateOnly)
		byDay[trend[i].Date] = &trend[i]
	}

	for _, c := range counts {
		p, ok := byDay[c.Day]
		if !ok {
			continue
		}
		switch c.Direction {
		case repository.DirectionIn:
			p.In += c.Count
		case repository.DirectionOut:
			p.Out += c.Count
		}
	}
	return trend
}
