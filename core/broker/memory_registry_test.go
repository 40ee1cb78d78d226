package broker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/arbiter/core/broker"
	"github.com/dmitrymomot/arbiter/core/broker/registrytest"
)

func TestMemoryRegistry(t *testing.T) {
	t.Parallel()

	registrytest.Run(t, func(t *testing.T) broker.Registry {
		return broker.NewMemoryRegistry()
	})
}

func TestMemoryRegistry_LastSeqIgnoresRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := broker.NewMemoryRegistry()

	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, broker.PendingRequest{ID: "a", Seq: 7}))
	require.NoError(t, tx.Rollback(ctx))

	last, err := r.LastSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)

	tx, err = r.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, broker.PendingRequest{ID: "b", Seq: 4}))
	_, err = tx.Take(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	last, err = r.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), last)
}
