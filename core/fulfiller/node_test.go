package fulfiller_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/arbiter/core/broker"
	"github.com/dmitrymomot/arbiter/core/event"
	"github.com/dmitrymomot/arbiter/core/fulfiller"
	"github.com/dmitrymomot/arbiter/core/ledger"
	"github.com/dmitrymomot/arbiter/core/requester"
)

const (
	owner       = ledger.Address("0xowner")
	node        = ledger.Address("0xnode")
	oracleAddr  = ledger.Address("0xoracle")
	arbiterAddr = ledger.Address("0xarbiter")
)

type submission struct {
	caller ledger.Address
	id     broker.RequestID
	data   []byte
}

type fakeOracle struct {
	mu    sync.Mutex
	errs  []error
	calls []submission
}

func (o *fakeOracle) Fulfill(ctx context.Context, caller ledger.Address, id broker.RequestID, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, submission{caller: caller, id: id, data: data})
	if len(o.errs) == 0 {
		return nil
	}
	err := o.errs[0]
	o.errs = o.errs[1:]
	return err
}

func (o *fakeOracle) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

func newNode(t *testing.T, oracle fulfiller.Oracle) *fulfiller.Node {
	t.Helper()
	n, err := fulfiller.NewNode(node, oracle,
		fulfiller.WithJob("receipt", fulfiller.StaticText{Text: "ok"}),
		fulfiller.WithRetry(3, time.Millisecond, 5*time.Millisecond),
	)
	require.NoError(t, err)
	return n
}

func TestNewNode(t *testing.T) {
	t.Parallel()

	_, err := fulfiller.NewNode("", &fakeOracle{})
	require.ErrorIs(t, err, fulfiller.ErrInvalidConfig)
	_, err = fulfiller.NewNode(node, nil)
	require.ErrorIs(t, err, fulfiller.ErrInvalidConfig)

	n, err := fulfiller.NewNode(node, &fakeOracle{})
	require.NoError(t, err)
	assert.Equal(t, node, n.Address())
}

func TestHandleRequest(t *testing.T) {
	t.Parallel()

	req := broker.OracleRequest{ID: "req-1", Requester: arbiterAddr, Spec: "receipt"}

	t.Run("submits as the node", func(t *testing.T) {
		t.Parallel()
		oracle := &fakeOracle{}
		require.NoError(t, newNode(t, oracle).HandleRequest(context.Background(), req))

		require.Len(t, oracle.calls, 1)
		assert.Equal(t, submission{caller: node, id: "req-1", data: []byte("ok")}, oracle.calls[0])
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()
		oracle := &fakeOracle{errs: []error{errors.New("registry unavailable"), errors.New("registry unavailable")}}
		require.NoError(t, newNode(t, oracle).HandleRequest(context.Background(), req))
		assert.Equal(t, 3, oracle.count())
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		t.Parallel()
		transient := errors.New("registry unavailable")
		oracle := &fakeOracle{errs: []error{transient, transient, transient, transient, transient}}
		err := newNode(t, oracle).HandleRequest(context.Background(), req)
		require.ErrorIs(t, err, transient)
		assert.Equal(t, 4, oracle.count())
	})

	t.Run("final errors are not retried", func(t *testing.T) {
		t.Parallel()
		for _, final := range []error{broker.ErrUnknownRequest, broker.ErrUnauthorizedFulfiller} {
			oracle := &fakeOracle{errs: []error{final}}
			err := newNode(t, oracle).HandleRequest(context.Background(), req)
			require.ErrorIs(t, err, final)
			assert.Equal(t, 1, oracle.count())
		}
	})

	t.Run("no job", func(t *testing.T) {
		t.Parallel()
		oracle := &fakeOracle{}
		err := newNode(t, oracle).HandleRequest(context.Background(), broker.OracleRequest{ID: "x", Spec: "weather"})
		require.ErrorIs(t, err, fulfiller.ErrNoJob)
		assert.Zero(t, oracle.count())

		// The processor handler acknowledges unknown specs.
		require.NoError(t, newNode(t, oracle).Handler().Handle(context.Background(), broker.OracleRequest{ID: "x", Spec: "weather"}))
	})

	t.Run("job failure", func(t *testing.T) {
		t.Parallel()
		oracle := &fakeOracle{}
		boom := errors.New("source down")
		n, err := fulfiller.NewNode(node, oracle, fulfiller.WithJob("value", fulfiller.JobFunc(
			func(context.Context, broker.OracleRequest) ([]byte, error) { return nil, boom },
		)))
		require.NoError(t, err)

		require.ErrorIs(t, n.HandleRequest(context.Background(), broker.OracleRequest{ID: "x", Spec: "value"}), boom)
		assert.Zero(t, oracle.count())
	})
}

func TestHandler_Timeout(t *testing.T) {
	t.Parallel()

	stuck := fulfiller.JobFunc(func(ctx context.Context, _ broker.OracleRequest) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	oracle := &fakeOracle{}
	n, err := fulfiller.NewNode(node, oracle,
		fulfiller.WithJob("value", stuck),
		fulfiller.WithHandlerTimeout(20*time.Millisecond),
	)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- n.Handler().Handle(context.Background(), broker.OracleRequest{ID: "slow", Spec: "value"})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("handler ignored its timeout")
	}
	assert.Zero(t, oracle.count())
}

func TestNode_CompletesChainOverBus(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := event.NewChannelBus()
	l := ledger.New(ledger.WithPublisher(event.NewPublisher(bus)))

	b, err := broker.New(l, oracleAddr, owner)
	require.NoError(t, err)
	a, err := requester.New(l, arbiterAddr, owner, b)
	require.NoError(t, err)
	require.NoError(t, b.Attach(a.Address(), a))
	require.NoError(t, b.SetAuthorization(ctx, owner, node, true))

	n, err := fulfiller.NewNode(node, b, fulfiller.WithJobs(fulfiller.Jobs{
		"value":   fulfiller.StaticValue{Value: big.NewInt(50000)},
		"receipt": fulfiller.StaticText{Text: "Transaction complete."},
	}))
	require.NoError(t, err)

	p := event.NewProcessor(event.WithEventSource(bus), event.WithHandler(n.Handler()))
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx)() }()

	_, err = a.Initiate(ctx, owner)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return string(a.Receipt()) == "Transaction complete."
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(50000), a.Amount().Int64())
	pending, err := b.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	cancel()
	require.NoError(t, <-done)
}
