package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/shestoi/warehouse/internal/repository"
	"github.com/shestoi/warehouse/internal/service"
)

// PageRequest параметры пагинации (нумерация с 1)
type PageRequest struct {
	Current  int `json:"current"`
	PageSize int `json:"pageSize"`
}

// PageResponse страница результата
type PageResponse[T any] struct {
	Current  int   `json:"current"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	List     []T   `json:"list"`
}

func toPageResponse[S, T any](p repository.Page[S], conv func(S) T) PageResponse[T] {
	list := make([]T, 0, len(p.Items))
	for _, it := range p.Items {
		list = append(list, conv(it))
	}
	return PageResponse[T]{Current: p.Page, PageSize: p.PageSize, Total: p.Total, List: list}
}

// ItemQueryRequest тело POST /api/item/listItem и /api/item/listAllItem
type ItemQueryRequest struct {
	PageRequest
	Name       string `json:"name"`
	ItemNumber string `json:"itemNumber"`
	OrderBy    string `json:"orderBy"`
}

// ItemRequest тело POST /api/item/addItem и /api/item/updateItem
type ItemRequest struct {
	ID            *int64 `json:"id"`
	Name          string `json:"name"`
	ItemNumber    string `json:"itemNumber"`
	Unit          string `json:"unit"`
	Specification string `json:"specification"`
	Threshold     *int64 `json:"threshold"`
}

func (r ItemRequest) toInput() service.ItemInput {
	in := service.ItemInput{
		Name:          r.Name,
		Code:          r.ItemNumber,
		Unit:          r.Unit,
		Specification: r.Specification,
	}
	if r.Threshold != nil {
		in.Threshold = *r.Threshold
	}
	return in
}

// ItemResponse товар в ответе
type ItemResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ItemNumber    string    `json:"itemNumber"`
	Unit          string    `json:"unit"`
	Specification string    `json:"specification"`
	StockQuantity int64     `json:"stockQuantity"`
	Threshold     int64     `json:"threshold"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	OperatorID    int64     `json:"operatorId"`
}

func toItemResponse(it repository.Item) ItemResponse {
	return ItemResponse{
		ID:            it.ID,
		Name:          it.Name,
		ItemNumber:    it.Code,
		Unit:          it.Unit,
		Specification: it.Specification,
		StockQuantity: it.StockQuantity,
		Threshold:     it.Threshold,
		CreatedAt:     it.CreatedAt,
		UpdatedAt:     it.UpdatedAt,
		OperatorID:    it.OperatorID,
	}
}

func toItemResponses(items []repository.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	return out
}

// MovementRequest тело POST /api/transaction/checkIn и checkOut.
// Исполнитель берётся из сессии, handlerId из тела игнорируется.
type MovementRequest struct {
	ItemID   *int64 `json:"itemId"`
	Quantity *int64 `json:"quantity"`
	Remark   string `json:"remark"`
}

// MovementQueryRequest тело POST /api/transaction/listTransaction
type MovementQueryRequest struct {
	PageRequest
	ItemID        int64  `json:"itemId"`
	ItemName      string `json:"itemName"`
	ItemNumber    string `json:"itemNumber"`
	OperationType string `json:"operationType"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
}

func (r MovementQueryRequest) toQuery(loc *time.Location) (repository.MovementQuery, error) {
	q := repository.MovementQuery{
		ItemID:   r.ItemID,
		ItemName: strings.TrimSpace(r.ItemName),
		ItemCode: strings.TrimSpace(r.ItemNumber),
		Page:     r.Current,
		PageSize: r.PageSize,
	}
	if r.OperationType != "" {
		d, err := repository.ParseDirection(r.OperationType)
		if err != nil {
			return q, fmt.Errorf("%w: %v", service.ErrValidation, err)
		}
		q.Direction = &d
	}

	var err error
	if q.From, _, err = parseDate(r.StartDate, loc); err != nil {
		return q, err
	}
	to, dateOnly, err := parseDate(r.EndDate, loc)
	if err != nil {
		return q, err
	}
	if dateOnly {
		// Конечная дата без времени включает весь день
		to = to.AddDate(0, 0, 1)
	}
	q.To = to
	return q, nil
}

// parseDate принимает YYYY-MM-DD, "YYYY-MM-DD HH:MM:SS" или RFC3339; пустая строка даёт нулевое время
func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, nil
	}
	if t, err := time.ParseInLocation(time.DateTime, s, loc); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: invalid date %q", service.ErrValidation, s)
}

// MovementResponse запись журнала в ответе
type MovementResponse struct {
	ID            int64     `json:"id"`
	ItemID        int64     `json:"itemId"`
	ItemName      string    `json:"itemName"`
	ItemNumber    string    `json:"itemNumber"`
	Unit          string    `json:"unit"`
	Specification string    `json:"specification"`
	OperationType string    `json:"operationType"`
	Quantity      int64     `json:"quantity"`
	HandlerID     int64     `json:"handlerId"`
	Remark        string    `json:"remark"`
	PostStock     int64     `json:"postStock"`
	OperationTime time.Time `json:"operationTime"`
}

func toMovementResponse(m repository.Movement) MovementResponse {
	return MovementResponse{
		ID:            m.ID,
		ItemID:        m.ItemID,
		ItemName:      m.ItemName,
		ItemNumber:    m.ItemCode,
		Unit:          m.ItemUnit,
		Specification: m.ItemSpecification,
		OperationType: m.Direction.String(),
		Quantity:      m.Quantity,
		HandlerID:     m.HandlerID,
		Remark:        m.Remark,
		PostStock:     m.PostStock,
		OperationTime: m.OperatedAt,
	}
}

// IngestRequest тело POST /api/ai/parseAndAddItems
type IngestRequest struct {
	Input string `json:"input"`
}

// IngestResponse итог пакетной загрузки
type IngestResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	AddedCount  int    `json:"addedCount"`
	FailedCount int    `json:"failedCount"`
}

// TopItemResponse элемент topItemsByStock
type TopItemResponse struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// TrendPointResponse элемент recentTransactionTrend
type TrendPointResponse struct {
	Date string `json:"date"`
	In   int64  `json:"in"`
	Out  int64  `json:"out"`
}

// DashboardResponse ответ GET /api/dashboard/summary
type DashboardResponse struct {
	TotalItemCount         int64                `json:"totalItemCount"`
	TotalStockQuantity     int64                `json:"totalStockQuantity"`
	LowStockItemCount      int64                `json:"lowStockItemCount"`
	TodayTransactionCount  int64                `json:"todayTransactionCount"`
	TopItemsByStock        []TopItemResponse    `json:"topItemsByStock"`
	RecentTransactionTrend []TrendPointResponse `json:"recentTransactionTrend"`
	LowStockItems          []ItemResponse       `json:"lowStockItems"`
}

func toDashboardResponse(s service.DashboardSummary) DashboardResponse {
	top := make([]TopItemResponse, 0, len(s.TopItemsByStock))
	for _, it := range s.TopItemsByStock {
		top = append(top, TopItemResponse{Name: it.Name, Quantity: it.Quantity})
	}
	trend := make([]TrendPointResponse, 0, len(s.RecentTransactionTrend))
	for _, p := range s.RecentTransactionTrend {
		trend = append(trend, TrendPointResponse{Date: p.Date, In: p.In, Out: p.Out})
	}
	return DashboardResponse{
		TotalItemCount:         s.TotalItemCount,
		TotalStockQuantity:     s.TotalStockQuantity,
		LowStockItemCount:      s.LowStockItemCount,
		TodayTransactionCount:  s.TodayTransactionCount,
		TopItemsByStock:        top,
		RecentTransactionTrend: trend,
		LowStockItems:          toItemResponses(s.LowStockItems),
	}
}

// ReportResponse ответ GET /api/dashboard/aiReport
type ReportResponse struct {
	Success   bool   `json:"success"`
	Content   string `json:"content,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Message   string `json:"message,omitempty"`
}

// DeleteResponse ответ POST /api/item/deleteItem
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// CurrentStock заполняется при нехватке остатка
	CurrentStock *int64 `json:"currentStock,omitempty"`
}
