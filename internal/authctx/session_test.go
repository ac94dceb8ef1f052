package authctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorFromContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), Actor{UserID: 7, SessionID: "sid"})
	a, ok := ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, Actor{UserID: 7, SessionID: "sid"}, a)
}
