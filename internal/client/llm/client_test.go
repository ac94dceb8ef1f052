package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/service"
)

// newTestServer отвечает status и body и сохраняет последний запрос
func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *chatRequest) {
	t.Helper()
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newTestClient(url string) *Client {
	return NewClient(zap.NewNop(), Config{URL: url, APIKey: "test-key", Model: "glm-4", Timeout: 2 * time.Second})
}

func contentResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantLen int
	}{
		{
			name:    "array wrapped in prose",
			status:  http.StatusOK,
			body:    contentResponse("好的，结果如下：\n```json\n[{\"name\":\"鼠标\",\"quantity\":2}, {\"name\":\"键盘\"}]\n```"),
			wantLen: 2,
		},
		{name: "no array", status: http.StatusOK, body: contentResponse("我无法理解"), wantLen: 0},
		{name: "broken json", status: http.StatusOK, body: contentResponse("[{\"name\": }]"), wantLen: 0},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`, wantLen: 0},
		{name: "missing content", status: http.StatusOK, body: `{"choices":[{"message":{}}]}`, wantLen: 0},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"overloaded"}`, wantLen: 0},
		{name: "non json body", status: http.StatusOK, body: `<html>`, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body)
			got, err := NewExtractor(newTestClient(srv.URL)).Extract(context.Background(), "2 个鼠标")
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestExtractor_RequestShape(t *testing.T) {
	srv, req := newTestServer(t, http.StatusOK, contentResponse("[]"))

	_, err := NewExtractor(newTestClient(srv.URL)).Extract(context.Background(), "10个梨")
	require.NoError(t, err)

	assert.Equal(t, "glm-4", req.Model)
	assert.InDelta(t, 0.01, req.Temperature, 1e-9)
	assert.False(t, req.Stream)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "\"10个梨\"")
	assert.Contains(t, req.Messages[0].Content, "startNumber")
}

func TestExtractor_FieldDecoding(t *testing.T) {
	content := `[{"name":"梨","quantity":"10","unit":"个","threshold":"abc","startNumber":88},
		{"name":"苹果","quantity":5.7,"specification":null,"threshold":3},
		{"name":123,"unit":""}]`
	srv, _ := newTestServer(t, http.StatusOK, contentResponse(content))

	got, err := NewExtractor(newTestClient(srv.URL)).Extract(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, got, 3)

	pear := got[0]
	require.NotNil(t, pear.Name)
	assert.Equal(t, "梨", *pear.Name)
	require.NotNil(t, pear.Quantity)
	assert.Equal(t, int64(10), *pear.Quantity)
	assert.Nil(t, pear.Threshold)
	require.NotNil(t, pear.StartNumber)
	assert.Equal(t, int64(88), *pear.StartNumber)
	assert.Nil(t, pear.Specification)

	apple := got[1]
	assert.Equal(t, int64(5), *apple.Quantity)
	assert.Equal(t, int64(3), *apple.Threshold)
	assert.Nil(t, apple.Specification)
	assert.Nil(t, apple.Unit)

	third := got[2]
	assert.Equal(t, "123", *third.Name)
	require.NotNil(t, third.Unit)
	assert.Equal(t, "", *third.Unit)
}

func TestExtractor_TransportErrorIsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewExtractor(newTestClient(url)).Extract(context.Background(), "x")
	require.ErrorIs(t, err, service.ErrUpstreamUnavailable)
}

func TestExtractor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(zap.NewNop(), Config{URL: srv.URL, APIKey: "test-key", Model: "glm-4", Timeout: 50 * time.Millisecond})
	_, err := NewExtractor(client).Extract(context.Background(), "x")
	require.ErrorIs(t, err, service.ErrUpstreamUnavailable)
}

func TestReporter_WriteReport(t *testing.T) {
	t.Run("content", func(t *testing.T) {
		srv, req := newTestServer(t, http.StatusOK, contentResponse("# 仓库动态日报"))
		got, err := NewReporter(newTestClient(srv.URL)).WriteReport(context.Background(), "prompt")
		require.NoError(t, err)
		assert.Equal(t, "# 仓库动态日报", got)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		assert.Equal(t, "prompt", req.Messages[0].Content)
	})

	t.Run("missing choices", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusOK, `{}`)
		got, err := NewReporter(newTestClient(srv.URL)).WriteReport(context.Background(), "prompt")
		require.NoError(t, err)
		assert.Equal(t, reportBadFormat, got)
	})

	t.Run("missing content", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant"}}]}`)
		got, err := NewReporter(newTestClient(srv.URL)).WriteReport(context.Background(), "prompt")
		require.NoError(t, err)
		assert.Equal(t, reportBadContent, got)
	})

	t.Run("bad status", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusUnauthorized, `{"error":"bad key"}`)
		_, err := NewReporter(newTestClient(srv.URL)).WriteReport(context.Background(), "prompt")
		require.ErrorIs(t, err, errUnexpectedStatus)
	})
}
