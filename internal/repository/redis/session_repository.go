package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/repository"
)

const hashFieldUserID = "user_id"

// SessionRepository читает сессии, выданные IAM, из Redis hash session:<id>
type SessionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSessionRepository создаёт новый Redis session repository
func NewSessionRepository(client *redis.Client, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		client: client,
		logger: logger,
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// GetUserIDBySession получает user_id по session_id из Redis hash
func (r *SessionRepository) GetUserIDBySession(ctx context.Context, sessionID string) (int64, error) {
	raw, err := r.client.HGet(ctx, sessionKey(sessionID), hashFieldUserID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("session hash not found", zap.String("session_id", sessionID))
			return 0, repository.ErrSessionNotFound
		}
		r.logger.Error("failed to get session hash from redis",
			zap.Error(err),
			zap.String("session_id", sessionID),
		)
		return 0, fmt.Errorf("failed to get session: %w", err)
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		r.logger.Warn("session hash has invalid user_id",
			zap.String("session_id", sessionID),
			zap.String("user_id", raw),
		)
		return 0, repository.ErrSessionNotFound
	}

	return userID, nil
}
