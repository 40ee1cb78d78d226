package health_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/arbiter/core/health"
	"github.com/dmitrymomot/arbiter/core/logger"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	dbDown := errors.New("db down")
	cacheDown := errors.New("cache down")

	require.NoError(t, health.Readiness(context.Background(), logger.Discard()))
	require.NoError(t, health.Readiness(context.Background(), logger.Discard(), ok, nil, ok))

	err := health.Readiness(context.Background(), logger.Discard(),
		ok,
		func(context.Context) error { return dbDown },
		func(context.Context) error { return cacheDown },
	)
	require.ErrorIs(t, err, health.ErrNotReady)
	require.ErrorIs(t, err, dbDown)
	require.ErrorIs(t, err, cacheDown)
}

func TestMonitor(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	failing.Store(true)

	out := &syncBuffer{}
	log := logger.New(logger.WithOutput(out), logger.WithLevel(slog.LevelDebug))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- health.Monitor(log, 5*time.Millisecond, func(context.Context) error {
			if failing.Load() {
				return errors.New("registry unavailable")
			}
			return nil
		})(ctx)()
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "service became unready")
	}, time.Second, 5*time.Millisecond)

	failing.Store(false)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "service is ready again")
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
