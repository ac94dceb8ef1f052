package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/authctx"
	"github.com/shestoi/warehouse/internal/repository"
)

type resolverFunc func(ctx context.Context, sid string) (int64, error)

func (f resolverFunc) GetUserIDBySession(ctx context.Context, sid string) (int64, error) {
	return f(ctx, sid)
}

func TestWithActor(t *testing.T) {
	resolver := resolverFunc(func(_ context.Context, sid string) (int64, error) {
		switch sid {
		case "ok":
			return 42, nil
		case "broken":
			return 0, errors.New("redis down")
		}
		return 0, repository.ErrSessionNotFound
	})

	tests := []struct {
		name       string
		sid        string
		wantStatus int
	}{
		{name: "missing header", sid: "", wantStatus: http.StatusUnauthorized},
		{name: "unknown session", sid: "nope", wantStatus: http.StatusUnauthorized},
		{name: "store failure", sid: "broken", wantStatus: http.StatusServiceUnavailable},
		{name: "valid session", sid: "ok", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got authctx.Actor
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = authctx.ActorFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			if tt.sid != "" {
				req.Header.Set(SessionHeader, tt.sid)
			}
			rec := httptest.NewRecorder()
			WithActor(resolver, zap.NewNop())(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, authctx.Actor{UserID: 42, SessionID: "ok"}, got)
			}
		})
	}
}
