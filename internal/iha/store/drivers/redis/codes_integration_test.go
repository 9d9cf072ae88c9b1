//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a throwaway Redis server and returns its address.
func setupRedisContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mappedPort.Port())
}

func TestCodeStoreAgainstRedis(t *testing.T) {
	ctx := context.Background()

	s, err := NewCodeStore(ctx, Config{Addr: setupRedisContainer(t), KeyPrefix: "it:code:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	hash := cryptox.FingerprintToken("integration-code")
	require.NoError(t, s.Save(ctx, testCode(hash, time.Minute)))

	got, err := s.Consume(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, "test", got.ClientID)

	_, err = s.Consume(ctx, hash)
	require.ErrorIs(t, err, store.ErrNotFound)
}
