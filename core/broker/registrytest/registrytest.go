// Package registrytest holds the behavior every broker.Registry backend must share.
// Backend test files call Run with a constructor for a ready-to-use registry.
package registrytest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/arbiter/core/broker"
	"github.com/dmitrymomot/arbiter/core/ledger"
)

var seq atomic.Uint64

func newRequest() broker.PendingRequest {
	return broker.PendingRequest{
		ID:        broker.NewRequestID(),
		Requester: ledger.Address("0xrequester"),
		Selector:  "fulfill",
		Spec:      "value",
		Data:      []byte{0x01, 0x02},
		Seq:       1_000_000 + seq.Add(1),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func insert(t *testing.T, r broker.Registry, reqs ...broker.PendingRequest) {
	t.Helper()
	ctx := context.Background()
	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	for _, req := range reqs {
		require.NoError(t, tx.Insert(ctx, req))
	}
	require.NoError(t, tx.Commit(ctx))
}

func take(t *testing.T, r broker.Registry, id broker.RequestID) {
	t.Helper()
	ctx := context.Background()
	tx, err := r.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Take(ctx, id)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
}

func pendingIDs(t *testing.T, r broker.Registry, among ...broker.RequestID) []broker.RequestID {
	t.Helper()
	all, err := r.Pending(context.Background())
	require.NoError(t, err)

	want := make(map[broker.RequestID]bool, len(among))
	for _, id := range among {
		want[id] = true
	}

	var out []broker.RequestID
	for _, req := range all {
		if want[req.ID] {
			out = append(out, req.ID)
		}
	}
	return out
}

// Run exercises newRegistry against the registry contract. Subtests run sequentially
// because backends may share one database.
func Run(t *testing.T, newRegistry func(t *testing.T) broker.Registry) {
	t.Helper()

	t.Run("committed insert is visible", func(t *testing.T) {
		r := newRegistry(t)
		req := newRequest()
		insert(t, r, req)

		got, err := r.Get(context.Background(), req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)
		assert.Equal(t, req.Requester, got.Requester)
		assert.Equal(t, req.Selector, got.Selector)
		assert.Equal(t, req.Spec, got.Spec)
		assert.Equal(t, req.Data, got.Data)
		assert.Equal(t, req.Seq, got.Seq)
		assert.True(t, req.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("uncommitted insert is invisible", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		req := newRequest()

		tx, err := r.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Insert(ctx, req))

		_, err = r.Get(ctx, req.ID)
		require.ErrorIs(t, err, broker.ErrUnknownRequest)

		require.NoError(t, tx.Rollback(ctx))
		_, err = r.Get(ctx, req.ID)
		require.ErrorIs(t, err, broker.ErrUnknownRequest)
	})

	t.Run("pending is ordered by sequence", func(t *testing.T) {
		r := newRegistry(t)
		a, b, c := newRequest(), newRequest(), newRequest()
		insert(t, r, c, a, b)

		assert.Equal(t, []broker.RequestID{a.ID, b.ID, c.ID}, pendingIDs(t, r, a.ID, b.ID, c.ID))
	})

	t.Run("duplicate of pending id rejected", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		req := newRequest()
		insert(t, r, req)

		tx, err := r.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx) //nolint:errcheck
		require.ErrorIs(t, tx.Insert(ctx, req), broker.ErrDuplicateRequest)
	})

	t.Run("duplicate within one transaction rejected", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		req := newRequest()

		tx, err := r.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx) //nolint:errcheck
		require.NoError(t, tx.Insert(ctx, req))
		require.ErrorIs(t, tx.Insert(ctx, req), broker.ErrDuplicateRequest)
	})

	t.Run("retired id is never reissued", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		req := newRequest()
		insert(t, r, req)
		take(t, r, req.ID)

		tx, err := r.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx) //nolint:errcheck
		require.ErrorIs(t, tx.Insert(ctx, req), broker.ErrDuplicateRequest)
	})

	t.Run("take retires exactly once", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		req := newRequest()
		insert(t, r, req)

		tx, err := r.Begin(ctx)
		require.NoError(t, err)
		got, err := tx.Take(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)
		_, err = tx.Take(ctx, req.ID)
		require.ErrorIs(t, err, broker.ErrUnknownRequest)
		require.NoError(t, tx.Commit(ctx))

		_, err = r.Get(ctx, req.ID)
		require.ErrorIs(t, err, broker.ErrUnknownRequest)

		tx, err = r.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx) //nolint:errcheck
		_, err = tx.Take(ctx, req.ID)
		require.ErrorIs(t, err, broker.ErrUnknownRequest)
	})

	t.Run("take of unknown id", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)

		tx, err := r.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx) //nolint:errcheck
		_, err = tx.Take(ctx, broker.RequestID("9"))
		require.ErrorIs(t, err, broker.ErrUnknownRequest)
	})

	t.Run("rolled back take keeps request pending", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		req := newRequest()
		insert(t, r, req)

		tx, err := r.Begin(ctx)
		require.NoError(t, err)
		_, err = tx.Take(ctx, req.ID)
		require.NoError(t, err)
		require.NoError(t, tx.Rollback(ctx))

		_, err = r.Get(ctx, req.ID)
		require.NoError(t, err)
		take(t, r, req.ID)
	})

	t.Run("insert and take in one transaction", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		req := newRequest()

		tx, err := r.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Insert(ctx, req))
		_, err = tx.Take(ctx, req.ID)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))

		_, err = r.Get(ctx, req.ID)
		require.ErrorIs(t, err, broker.ErrUnknownRequest)

		tx, err = r.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx) //nolint:errcheck
		require.ErrorIs(t, tx.Insert(ctx, req), broker.ErrDuplicateRequest)
	})

	t.Run("last sequence covers retired requests", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		retired, live := newRequest(), newRequest()
		insert(t, r, retired)
		take(t, r, retired.ID)

		last, err := r.LastSeq(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, last, retired.Seq)

		insert(t, r, live)
		last, err = r.LastSeq(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, last, live.Seq)
	})
}
