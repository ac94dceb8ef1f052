package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandler_NoChecks(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(time.Second)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_FailingCheck(t *testing.T) {
	ok := Check{Name: "redis", Fn: func(ctx context.Context) error { return nil }}
	bad := Check{Name: "postgres", Fn: func(ctx context.Context) error { return errors.New("connection refused") }}

	rec := httptest.NewRecorder()
	Handler(time.Second, ok, bad)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "not ready", body.Status)
	require.Equal(t, map[string]string{"postgres": "connection refused"}, body.Checks)
}
