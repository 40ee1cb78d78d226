package redisstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/arbiter/core/broker"
	"github.com/dmitrymomot/arbiter/core/broker/registrytest"
	"github.com/dmitrymomot/arbiter/integration/database/redis"
	"github.com/dmitrymomot/arbiter/integration/registry/redisstore"
)

func TestRegistry(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: url, RetryAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	prefix := "arbiter:test:" + broker.NewRequestID().String() + ":"
	t.Cleanup(func() {
		_ = client.Del(context.Background(), prefix+"pending", prefix+"retired", prefix+"seq").Err()
	})

	registrytest.Run(t, func(t *testing.T) broker.Registry {
		return redisstore.New(client, redisstore.WithPrefix(prefix))
	})
}
