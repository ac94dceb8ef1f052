package authctx

import (
	"context"
)

// Actor пользователь, от имени которого выполняется операция.
// Передаётся явно во все операции записи реестра и журнала.
type Actor struct {
	UserID    int64
	SessionID string
}

type ctxKeyActor struct{}

var actorKey = ctxKeyActor{}

// WithActor сохраняет Actor в контексте (используется HTTP middleware)
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext возвращает Actor из контекста, если он был установлен
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
