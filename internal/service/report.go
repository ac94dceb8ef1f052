package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/warehouse/platform/observability"
)

// SummaryProvider источник снимка для отчёта (реализуется DashboardService)
type SummaryProvider interface {
	Summary(ctx context.Context) (DashboardSummary, error)
}

// DailyReport сгенерированный отчёт
type DailyReport struct {
	Content     string
	GeneratedAt time.Time
}

// ReportService ежедневный отчёт по складу на основе снимка дашборда
type ReportService struct {
	logger    *zap.Logger
	dashboard SummaryProvider
	writer    ReportWriter
	now       func() time.Time
}

// NewReportService создаёт новый экземпляр ReportService
func NewReportService(logger *zap.Logger, dashboard SummaryProvider, writer ReportWriter) *ReportService {
	return &ReportService{
		logger:    logger,
		dashboard: dashboard,
		writer:    writer,
		now:       time.Now,
	}
}

// DailyReport собирает снимок и просит модель оформить его в Markdown
func (s *ReportService) DailyReport(ctx context.Context) (DailyReport, error) {
	log := observability.L(ctx, s.logger)
	log.Info("generating daily report")

	summary, err := s.dashboard.Summary(ctx)
	if err != nil {
		return DailyReport{}, fmt.Errorf("dashboard summary: %w", err)
	}

	content, err := s.writer.WriteReport(ctx, BuildReportPrompt(summary))
	if err != nil {
		log.Error("daily report generation failed", zap.Error(err))
		return DailyReport{}, fmt.Errorf("write report: %w", err)
	}

	log.Info("daily report generated", zap.Int("length", len(content)))
	return DailyReport{Content: content, GeneratedAt: s.now()}, nil
}

// BuildReportPrompt формирует промпт отчёта из снимка дашборда
func BuildReportPrompt(d DashboardSummary) string {
	var b strings.Builder
	b.WriteString("任务：分析以下仓库数据，生成一份简洁、专业的日报，总结当日仓库情况和值得关注的事项。\n\n")
	b.WriteString("仓库数据：\n")

	fmt.Fprintf(&b, "1. 物品种类总数: %d\n", d.TotalItemCount)
	fmt.Fprintf(&b, "2. 总库存量: %d\n", d.TotalStockQuantity)
	fmt.Fprintf(&b, "3. 低库存物品数: %d\n", d.LowStockItemCount)
	fmt.Fprintf(&b, "4. 今日操作次数: %d\n\n", d.TodayTransactionCount)

	b.WriteString("5. 库存量Top物品:\n")
	if len(d.TopItemsByStock) == 0 {
		b.WriteString("   (无数据)\n")
	}
	for _, it := range d.TopItemsByStock {
		fmt.Fprintf(&b, "   - %s: %d\n", it.Name, it.Quantity)
	}
	b.WriteString("\n")

	b.WriteString("6. 近7日出入库趋势:\n")
	if len(d.RecentTransactionTrend) == 0 {
		b.WriteString("   (无数据)\n")
	}
	for _, p := range d.RecentTransactionTrend {
		fmt.Fprintf(&b, "   - %s 入库: %d 出库: %d\n", p.Date, p.In, p.Out)
	}
	b.WriteString("\n")

	b.WriteString("7. 低库存预警物品:\n")
	if len(d.LowStockItems) == 0 {
		b.WriteString("   (无预警物品)\n")
	}
	for _, it := range d.LowStockItems {
		fmt.Fprintf(&b, "   - %s (当前库存: %d, 阈值: %d)\n", it.Name, it.StockQuantity, it.Threshold)
	}
	b.WriteString("\n")

	b.WriteString("要求：\n")
	b.WriteString("1. 使用标准Markdown语法\n")
	b.WriteString("2. 使用\"# 仓库动态日报\"作为一级标题\n")
	b.WriteString("3. 使用\"## 总体概况\"作为二级标题，简要总结当天仓库状态\n")
	b.WriteString("4. 使用\"## 库存亮点\"作为二级标题，分析库存量最高的物品和特点\n")
	b.WriteString("5. 使用\"## 预警信息\"作为二级标题，重点提示低库存物品情况\n")
	b.WriteString("6. 使用\"## 趋势分析\"作为二级标题，分析近7日出入库走势\n")
	b.WriteString("7. 使用\"## 建议行动\"作为二级标题，提出1-3条基于数据的具体的建设性建议\n")
	b.WriteString("8. 关键数据使用**粗体**突出显示\n")
	b.WriteString("9. 使用清晰、专业的语言，适合商业环境阅读\n")
	b.WriteString("10. 总字数控制在600字以内\n")

	return b.String()
}
