package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/repository/memory"
	"github.com/shestoi/warehouse/internal/service"
)

const testSession = "sid-1"

type fakeExtractor struct {
	candidates []service.Candidate
	err        error
}

func (f fakeExtractor) Extract(context.Context, string) ([]service.Candidate, error) {
	return f.candidates, f.err
}

type fakeWriter struct {
	content string
	err     error
}

func (f fakeWriter) WriteReport(context.Context, string) (string, error) {
	return f.content, f.err
}

type testServer struct {
	srv     *httptest.Server
	storage *memory.Storage
}

func newTestServer(t *testing.T, extractor service.Extractor, writer service.ReportWriter) *testServer {
	t.Helper()
	log := zap.NewNop()
	storage := memory.NewStorage()

	items := service.NewItemService(log, storage.Items())
	ledger := service.NewLedgerService(log, storage, storage.Movements())
	ingest := service.NewIngestService(log, extractor, storage.Items(), items, ledger)
	dashboard := service.NewDashboardService(log, storage.Dashboard())
	reports := service.NewReportService(log, dashboard, writer)

	h := NewHandler(log, items, ledger, ingest, dashboard, reports)
	router := NewRouter(h, RouterConfig{
		Sessions:       memory.NewSessionRepository(map[string]int64{testSession: 7}),
		HealthTimeout:  time.Second,
		AllowedOrigins: []string{"*"},
		ServiceName:    "warehouse",
	}, log)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, storage: storage}
}

func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-session-id", testSession)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) addItem(t *testing.T, name, code string, threshold int64) int64 {
	t.Helper()
	var id int64
	status := s.do(t, http.MethodPost, "/api/item/addItem",
		map[string]any{"name": name, "itemNumber": code, "unit": "个", "specification": "普通", "threshold": threshold}, &id)
	require.Equal(t, http.StatusOK, status)
	return id
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, fakeExtractor{}, fakeWriter{})

	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_SessionRequired(t *testing.T) {
	s := newTestServer(t, fakeExtractor{}, fakeWriter{})

	for _, sid := range []string{"", "unknown"} {
		req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/dashboard/summary", nil)
		require.NoError(t, err)
		if sid != "" {
			req.Header.Set("x-session-id", sid)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "sid=%q", sid)
	}
}

func TestItemEndpoints(t *testing.T) {
	s := newTestServer(t, fakeExtractor{}, fakeWriter{})
	id := s.addItem(t, "鼠标", "M-1", 5)

	var item ItemResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/item/getItem?id="+itoa(id), nil, &item))
	assert.Equal(t, "M-1", item.ItemNumber)
	assert.Equal(t, int64(7), item.OperatorID)

	var errResp ErrorResponse
	status := s.do(t, http.MethodPost, "/api/item/addItem",
		map[string]any{"name": "键盘", "itemNumber": "M-1", "unit": "个", "specification": "普通"}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, errResp.Success)

	status = s.do(t, http.MethodPost, "/api/item/addItem", map[string]any{"itemNumber": "K-1"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var updatedID int64
	status = s.do(t, http.MethodPost, "/api/item/updateItem",
		map[string]any{"id": id, "name": "无线鼠标", "itemNumber": "M-1", "unit": "个", "specification": "logi", "threshold": 5}, &updatedID)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, updatedID)

	var page PageResponse[ItemResponse]
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/item/listItem",
		map[string]any{"current": 1, "pageSize": 10, "name": "无线"}, &page))
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "logi", page.List[0].Specification)

	var all []ItemResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/item/listAllItem", map[string]any{}, &all))
	assert.Len(t, all, 1)

	var del DeleteResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/item/deleteItem", []int64{id}, &del))
	assert.Equal(t, int64(1), del.Deleted)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/item/getItem?id="+itoa(id), nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/item/getItem?id=abc", nil, nil))
}

func TestTransactionEndpoints(t *testing.T) {
	s := newTestServer(t, fakeExtractor{}, fakeWriter{})
	id := s.addItem(t, "鼠标", "M-1", 5)

	var movementID int64
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/transaction/checkIn",
		map[string]any{"itemId": id, "quantity": 5, "remark": "采购"}, &movementID))
	assert.Positive(t, movementID)

	var errResp ErrorResponse
	status := s.do(t, http.MethodPost, "/api/transaction/checkOut", map[string]any{"itemId": id, "quantity": 6}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, errResp.CurrentStock)
	assert.Equal(t, int64(5), *errResp.CurrentStock)

	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPost, "/api/transaction/checkIn", map[string]any{"itemId": id, "quantity": 0}, nil))
	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPost, "/api/transaction/checkIn", map[string]any{"itemId": id}, nil))
	assert.Equal(t, http.StatusNotFound,
		s.do(t, http.MethodPost, "/api/transaction/checkIn", map[string]any{"itemId": 999, "quantity": 1}, nil))

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/transaction/checkOut",
		map[string]any{"itemId": id, "quantity": 5}, nil))

	var page PageResponse[MovementResponse]
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/transaction/listTransaction",
		map[string]any{"current": 1, "pageSize": 10, "operationType": "IN", "itemName": "鼠"}, &page))
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, "IN", page.List[0].OperationType)
	assert.Equal(t, "M-1", page.List[0].ItemNumber)
	assert.Equal(t, int64(5), page.List[0].PostStock)
	assert.Equal(t, int64(7), page.List[0].HandlerID)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/transaction/listTransaction",
		map[string]any{"operationType": "SIDEWAYS"}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/transaction/listTransaction",
		map[string]any{"startDate": "2024-05-10", "endDate": "2024-05-01"}, nil))

	var history []MovementResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/transaction/listItemTransaction?itemId="+itoa(id), nil, &history))
	require.Len(t, history, 2)
	assert.Equal(t, "OUT", history[0].OperationType)
	assert.Equal(t, int64(0), history[0].PostStock)
}

func TestParseAndAddItems(t *testing.T) {
	name := "鼠标"
	qty := int64(2)

	t.Run("success", func(t *testing.T) {
		s := newTestServer(t, fakeExtractor{candidates: []service.Candidate{{Name: &name, Quantity: &qty}}}, fakeWriter{})
		var resp IngestResponse
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/ai/parseAndAddItems", IngestRequest{Input: "2个鼠标"}, &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 1, resp.AddedCount)
		assert.Equal(t, "处理完成: 添加 1, 失败 0.", resp.Message)
	})

	t.Run("empty input", func(t *testing.T) {
		s := newTestServer(t, fakeExtractor{}, fakeWriter{})
		var resp IngestResponse
		require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/ai/parseAndAddItems", IngestRequest{Input: " "}, &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "Input cannot be empty.", resp.Message)
	})

	t.Run("model unavailable", func(t *testing.T) {
		s := newTestServer(t, fakeExtractor{err: service.ErrUpstreamUnavailable}, fakeWriter{})
		var resp IngestResponse
		require.Equal(t, http.StatusBadGateway, s.do(t, http.MethodPost, "/api/ai/parseAndAddItems", IngestRequest{Input: "x"}, &resp))
		assert.False(t, resp.Success)
	})
}

func TestDashboardAndReport(t *testing.T) {
	s := newTestServer(t, fakeExtractor{}, fakeWriter{content: "# 仓库动态日报"})
	s.addItem(t, "胶水", "G-1", 3)

	var summary DashboardResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/dashboard/summary", nil, &summary))
	assert.Equal(t, int64(1), summary.TotalItemCount)
	assert.Equal(t, int64(1), summary.LowStockItemCount)
	assert.Len(t, summary.RecentTransactionTrend, 7)
	require.Len(t, summary.LowStockItems, 1)
	assert.Equal(t, "G-1", summary.LowStockItems[0].ItemNumber)

	var report ReportResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/dashboard/aiReport", nil, &report))
	assert.True(t, report.Success)
	assert.Equal(t, "# 仓库动态日报", report.Content)
	assert.Positive(t, report.Timestamp)

	failing := newTestServer(t, fakeExtractor{}, fakeWriter{err: service.ErrUpstreamUnavailable})
	require.Equal(t, http.StatusBadGateway, failing.do(t, http.MethodGet, "/api/ai/dailyReport", nil, &report))
	assert.False(t, report.Success)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
