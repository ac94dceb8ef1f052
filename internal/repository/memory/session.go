package memory

import (
	"context"
	"sync"

	"github.com/shestoi/warehouse/internal/repository"
)

// SessionRepository хранит сессии в памяти (локальная разработка без Redis)
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]int64
}

// NewSessionRepository создаёт хранилище сессий, заполненное seed (session_id -> user_id)
func NewSessionRepository(seed map[string]int64) *SessionRepository {
	sessions := make(map[string]int64, len(seed))
	for k, v := range seed {
		sessions[k] = v
	}
	return &SessionRepository{sessions: sessions}
}

func (r *SessionRepository) GetUserIDBySession(ctx context.Context, sessionID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.sessions[sessionID]
	if !ok {
		return 0, repository.ErrSessionNotFound
	}
	return userID, nil
}
