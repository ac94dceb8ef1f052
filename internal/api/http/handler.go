package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/authctx"
	"github.com/shestoi/warehouse/internal/repository"
	"github.com/shestoi/warehouse/internal/service"
)

// Handler содержит HTTP-обработчики склада.
// Зависит от service слоя, про хранилище и модель не знает.
type Handler struct {
	logger    *zap.Logger
	items     *service.ItemService
	ledger    *service.LedgerService
	ingest    *service.IngestService
	dashboard *service.DashboardService
	reports   *service.ReportService
	location  *time.Location
}

// NewHandler создаёт новый HTTP handler
func NewHandler(
	logger *zap.Logger,
	items *service.ItemService,
	ledger *service.LedgerService,
	ingest *service.IngestService,
	dashboard *service.DashboardService,
	reports *service.ReportService,
) *Handler {
	return &Handler{
		logger:    logger,
		items:     items,
		ledger:    ledger,
		ingest:    ingest,
		dashboard: dashboard,
		reports:   reports,
		location:  time.Local,
	}
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %v", err)
	}
	return nil
}

// actor достаёт пользователя, положенного middleware
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (authctx.Actor, bool) {
	a, ok := authctx.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "session is required"})
	}
	return a, ok
}

// ListItem обрабатывает POST /api/item/listItem
func (h *Handler) ListItem(w http.ResponseWriter, r *http.Request) {
	var req ItemQueryRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}

	page, err := h.items.ListItems(r.Context(), repository.ItemQuery{
		ItemFilter: repository.ItemFilter{Name: strings.TrimSpace(req.Name), Code: strings.TrimSpace(req.ItemNumber)},
		OrderBy:    req.OrderBy,
		Page:       req.Current,
		PageSize:   req.PageSize,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page, toItemResponse))
}

// ListAllItem обрабатывает POST /api/item/listAllItem (все товары по фильтру, без пагинации)
func (h *Handler) ListAllItem(w http.ResponseWriter, r *http.Request) {
	var req ItemQueryRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}

	items, err := h.items.ListAllItems(r.Context(), repository.ItemFilter{
		Name: strings.TrimSpace(req.Name),
		Code: strings.TrimSpace(req.ItemNumber),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponses(items))
}

// AddItem обрабатывает POST /api/item/addItem, возвращает ID товара
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req ItemRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}

	id, err := h.items.AddItem(r.Context(), actor, req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// UpdateItem обрабатывает POST /api/item/updateItem, возвращает ID товара
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req ItemRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if req.ID == nil || *req.ID <= 0 {
		h.badRequest(w, "id is required")
		return
	}

	if err := h.items.UpdateItem(r.Context(), actor, *req.ID, req.toInput()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, *req.ID)
}

// GetItem обрабатывает GET /api/item/getItem?id=
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(w, "id must be a positive integer")
		return
	}

	it, err := h.items.GetItem(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(it))
}

// DeleteItem обрабатывает POST /api/item/deleteItem, тело: массив ID
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var ids []int64
	if err := decodeBody(r, &ids); err != nil {
		h.badRequest(w, err.Error())
		return
	}

	n, err := h.items.DeleteItems(r.Context(), actor, ids)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: n})
}

// ListTransaction обрабатывает POST /api/transaction/listTransaction
func (h *Handler) ListTransaction(w http.ResponseWriter, r *http.Request) {
	var req MovementQueryRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}

	q, err := req.toQuery(h.location)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.ledger.ListMovements(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page, toMovementResponse))
}

// ListItemTransaction обрабатывает GET /api/transaction/listItemTransaction?itemId=
func (h *Handler) ListItemTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("itemId"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(w, "itemId must be a positive integer")
		return
	}

	ms, err := h.ledger.ListItemMovements(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]MovementResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMovementResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// CheckIn обрабатывает POST /api/transaction/checkIn, возвращает ID записи журнала
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, repository.DirectionIn)
}

// CheckOut обрабатывает POST /api/transaction/checkOut, возвращает ID записи журнала
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, repository.DirectionOut)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request, dir repository.Direction) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req MovementRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if req.ItemID == nil || req.Quantity == nil {
		h.badRequest(w, "itemId and quantity are required")
		return
	}

	var (
		id  int64
		err error
	)
	if dir == repository.DirectionIn {
		id, err = h.ledger.CheckIn(r.Context(), actor, *req.ItemID, *req.Quantity, req.Remark)
	} else {
		id, err = h.ledger.CheckOut(r.Context(), actor, *req.ItemID, *req.Quantity, req.Remark)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// DashboardSummary обрабатывает GET /api/dashboard/summary
func (h *Handler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.dashboard.Summary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(s))
}

// DailyReport обрабатывает GET /api/dashboard/aiReport и /api/ai/dailyReport
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.DailyReport(r.Context())
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("daily report failed", zap.Error(err))
		}
		writeJSON(w, status, ReportResponse{Success: false, Message: "生成日报失败: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{
		Success:   true,
		Content:   report.Content,
		Timestamp: report.GeneratedAt.UnixMilli(),
	})
}

// ParseAndAddItems обрабатывает POST /api/ai/parseAndAddItems.
// Ответ всегда в форме IngestResponse, в том числе при ошибке.
func (h *Handler) ParseAndAddItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req IngestRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, IngestResponse{Success: false, Message: err.Error()})
		return
	}

	res, err := h.ingest.Ingest(r.Context(), actor, req.Input)
	if err != nil {
		status := statusFor(err)
		msg := "处理请求时发生内部错误: " + err.Error()
		if errors.Is(err, service.ErrValidation) {
			msg = "Input cannot be empty."
		}
		if status >= http.StatusInternalServerError {
			h.logger.Error("batch ingestion failed", zap.Int("status", status), zap.Error(err))
		}
		writeJSON(w, status, IngestResponse{Success: false, Message: msg})
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		Success:     res.Success(),
		Message:     res.Message(),
		AddedCount:  res.Added,
		FailedCount: res.Failed,
	})
}
