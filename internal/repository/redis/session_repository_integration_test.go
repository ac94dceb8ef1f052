//go:build integration

package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/repository"
)

func TestSessionRepository_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewSessionRepository(client, zap.NewNop())

	require.NoError(t, client.HSet(ctx, "session:good", "user_id", "42").Err())
	require.NoError(t, client.HSet(ctx, "session:bad", "user_id", "abc").Err())

	userID, err := repo.GetUserIDBySession(ctx, "good")
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)

	_, err = repo.GetUserIDBySession(ctx, "bad")
	require.True(t, errors.Is(err, repository.ErrSessionNotFound))

	_, err = repo.GetUserIDBySession(ctx, "missing")
	require.True(t, errors.Is(err, repository.ErrSessionNotFound))
}
