package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/arbiter/core/ledger"
)

type Pinged struct {
	N int `json:"n"`
}

type recorder struct {
	mu     sync.Mutex
	name   string
	log    *[]string
	failOn string
}

func (r *recorder) Commit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "commit" {
		return errors.New("commit refused")
	}
	*r.log = append(*r.log, r.name+":commit")
	return nil
}

func (r *recorder) Rollback(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.log = append(*r.log, r.name+":rollback")
	return nil
}

type collectingPublisher struct {
	mu       sync.Mutex
	payloads []any
	err      error
}

func (p *collectingPublisher) Publish(ctx context.Context, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return p.err
}

const emitter = ledger.Address("0xabc")

func TestRun_CommitsInOrder(t *testing.T) {
	t.Parallel()

	var log []string
	pub := &collectingPublisher{}
	l := ledger.New(ledger.WithPublisher(pub))

	applied := false
	err := l.Run(context.Background(), func(ctx context.Context) error {
		u := ledger.MustUnit(ctx)
		require.NoError(t, u.Enlist("a", &recorder{name: "a", log: &log}))
		require.NoError(t, u.Enlist("b", &recorder{name: "b", log: &log}))
		u.Apply(func() { applied = true })
		u.Emit(emitter, Pinged{N: 1})
		u.Emit(emitter, Pinged{N: 2})
		assert.False(t, applied)
		return nil
	})
	require.NoError(t, err)

	assert.True(t, applied)
	assert.Equal(t, []string{"a:commit", "b:commit"}, log)

	entries := l.Journal().Events(emitter)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(1), entries[0].Seq)
	assert.Equal(t, uint64(2), entries[1].Seq)
	assert.Equal(t, "Pinged", entries[0].Name)
	assert.Equal(t, Pinged{N: 2}, entries[1].Payload)
	assert.Equal(t, []any{Pinged{N: 1}, Pinged{N: 2}}, pub.payloads)
}

func TestRun_ErrorRollsBack(t *testing.T) {
	t.Parallel()

	var log []string
	l := ledger.New()
	boom := errors.New("boom")

	applied := false
	err := l.Run(context.Background(), func(ctx context.Context) error {
		u := ledger.MustUnit(ctx)
		require.NoError(t, u.Enlist("a", &recorder{name: "a", log: &log}))
		require.NoError(t, u.Enlist("b", &recorder{name: "b", log: &log}))
		u.Apply(func() { applied = true })
		u.Emit(emitter, Pinged{N: 1})
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.False(t, applied)
	assert.Equal(t, []string{"b:rollback", "a:rollback"}, log)
	assert.Empty(t, l.Journal().All())
}

func TestRun_CommitFailure(t *testing.T) {
	t.Parallel()

	var log []string
	l := ledger.New()

	applied := false
	err := l.Run(context.Background(), func(ctx context.Context) error {
		u := ledger.MustUnit(ctx)
		require.NoError(t, u.Enlist("a", &recorder{name: "a", log: &log, failOn: "commit"}))
		require.NoError(t, u.Enlist("b", &recorder{name: "b", log: &log}))
		u.Apply(func() { applied = true })
		u.Emit(emitter, Pinged{})
		return nil
	})
	require.ErrorIs(t, err, ledger.ErrCommitFailed)

	assert.False(t, applied)
	assert.Equal(t, []string{"b:rollback"}, log)
	assert.Zero(t, l.Journal().Len())
}

func TestRun_PanicRollsBack(t *testing.T) {
	t.Parallel()

	var log []string
	l := ledger.New()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = l.Run(context.Background(), func(ctx context.Context) error {
			u := ledger.MustUnit(ctx)
			require.NoError(t, u.Enlist("a", &recorder{name: "a", log: &log}))
			panic("kaboom")
		})
	})
	assert.Equal(t, []string{"a:rollback"}, log)

	// The ledger stays usable after a panic.
	require.NoError(t, l.Run(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestRun_NestedJoinsOuterUnit(t *testing.T) {
	t.Parallel()

	l := ledger.New()

	err := l.Run(context.Background(), func(ctx context.Context) error {
		outer := ledger.MustUnit(ctx)
		var log []string
		require.NoError(t, outer.Enlist("registry", &recorder{name: "registry", log: &log}))

		return l.Run(ctx, func(ctx context.Context) error {
			inner := ledger.MustUnit(ctx)
			assert.Same(t, outer, inner)

			p, ok := inner.Lookup("registry")
			require.True(t, ok)
			assert.NotNil(t, p)

			inner.Emit(emitter, Pinged{N: 7})
			assert.Zero(t, l.Journal().Len())
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Journal().Len())
}

func TestRun_NestedErrorAbortsOuter(t *testing.T) {
	t.Parallel()

	l := ledger.New()
	boom := errors.New("inner failed")

	err := l.Run(context.Background(), func(ctx context.Context) error {
		ledger.MustUnit(ctx).Emit(emitter, Pinged{N: 1})
		return l.Run(ctx, func(ctx context.Context) error {
			ledger.MustUnit(ctx).Emit(emitter, Pinged{N: 2})
			return boom
		})
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, l.Journal().Len())
}

func TestRun_DistinctLedgersDoNotShareUnits(t *testing.T) {
	t.Parallel()

	a := ledger.New()
	b := ledger.New()

	err := a.Run(context.Background(), func(ctx context.Context) error {
		outer := ledger.MustUnit(ctx)
		return b.Run(ctx, func(ctx context.Context) error {
			assert.NotSame(t, outer, ledger.MustUnit(ctx))
			return nil
		})
	})
	require.NoError(t, err)
}

func TestRun_ReentryThroughForeignUnitFails(t *testing.T) {
	t.Parallel()

	a := ledger.New()
	b := ledger.New()

	done := make(chan error, 1)
	go func() {
		done <- a.Run(context.Background(), func(ctx context.Context) error {
			ledger.MustUnit(ctx).Emit(emitter, Pinged{N: 1})
			return b.Run(ctx, func(ctx context.Context) error {
				return a.Run(ctx, func(context.Context) error { return nil })
			})
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ledger.ErrReentrant)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return when re-entered through another ledger")
	}
	assert.Equal(t, 0, a.Journal().Len())

	// The lock was released: the ledger stays usable.
	require.NoError(t, a.Run(context.Background(), func(context.Context) error { return nil }))
}

func TestRun_PublishFailureDoesNotUndoCommit(t *testing.T) {
	t.Parallel()

	pub := &collectingPublisher{err: errors.New("bus down")}
	l := ledger.New(ledger.WithPublisher(pub))

	err := l.Run(context.Background(), func(ctx context.Context) error {
		ledger.MustUnit(ctx).Emit(emitter, Pinged{N: 1})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, l.Journal().Len())
}

func TestUnitFrom_OutsideRun(t *testing.T) {
	t.Parallel()

	_, err := ledger.UnitFrom(context.Background())
	require.ErrorIs(t, err, ledger.ErrNoUnit)
	assert.Panics(t, func() { ledger.MustUnit(context.Background()) })
}

func TestUnit_ClosedAfterRun(t *testing.T) {
	t.Parallel()

	l := ledger.New()
	var leaked *ledger.Unit
	require.NoError(t, l.Run(context.Background(), func(ctx context.Context) error {
		leaked = ledger.MustUnit(ctx)
		return nil
	}))

	var log []string
	require.ErrorIs(t, leaked.Enlist("late", &recorder{name: "late", log: &log}), ledger.ErrUnitClosed)
	assert.Panics(t, func() { leaked.Emit(emitter, Pinged{}) })
}

func TestRun_Serializes(t *testing.T) {
	t.Parallel()

	l := ledger.New()
	counter := 0

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Run(context.Background(), func(ctx context.Context) error {
				v := counter
				ledger.MustUnit(ctx).Apply(func() { counter = v + 1 })
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestJournal(t *testing.T) {
	t.Parallel()

	other := ledger.Address("0xdef")
	l := ledger.New(ledger.WithJournalCapacity(3))

	for i := 1; i <= 4; i++ {
		from := emitter
		if i%2 == 0 {
			from = other
		}
		require.NoError(t, l.Run(context.Background(), func(ctx context.Context) error {
			ledger.MustUnit(ctx).Emit(from, Pinged{N: i})
			return nil
		}))
	}

	all := l.Journal().All()
	require.Len(t, all, 3)
	assert.Equal(t, uint64(2), all[0].Seq)

	latest, ok := l.Journal().Latest(other)
	require.True(t, ok)
	assert.Equal(t, Pinged{N: 4}, latest.Payload)

	_, ok = l.Journal().Latest(ledger.Address("0x000"))
	assert.False(t, ok)

	assert.Len(t, l.Journal().Events(emitter), 1)
}
