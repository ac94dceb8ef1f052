package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/authctx"
	"github.com/shestoi/warehouse/internal/repository"
	"github.com/shestoi/warehouse/platform/observability"
)

// SessionHeader заголовок с идентификатором сессии
const SessionHeader = "x-session-id"

// SessionResolver находит пользователя по session_id
type SessionResolver interface {
	GetUserIDBySession(ctx context.Context, sessionID string) (int64, error)
}

// WithActor читает x-session-id, находит пользователя и кладёт Actor в context.
// Нет заголовка или неизвестная сессия дают 401.
func WithActor(sessions SessionResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := r.Header.Get(SessionHeader)
			if sid == "" {
				writeError(w, http.StatusUnauthorized, "session_id is required")
				return
			}

			userID, err := sessions.GetUserIDBySession(r.Context(), sid)
			if err != nil {
				if errors.Is(err, repository.ErrSessionNotFound) {
					writeError(w, http.StatusUnauthorized, "session not found")
					return
				}
				observability.LoggerFromContext(r.Context(), logger).Error("session lookup failed", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "session store unavailable")
				return
			}

			ctx := authctx.WithActor(r.Context(), authctx.Actor{UserID: userID, SessionID: sid})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}
