package fulfiller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dmitrymomot/arbiter/core/broker"
	"github.com/dmitrymomot/arbiter/core/event"
	"github.com/dmitrymomot/arbiter/core/ledger"
	"github.com/dmitrymomot/arbiter/core/logger"
)

// Oracle is the broker surface a node submits to.
type Oracle interface {
	Fulfill(ctx context.Context, caller ledger.Address, id broker.RequestID, data []byte) error
}

// Node answers oracle requests as the principal at addr.
type Node struct {
	addr   ledger.Address
	oracle Oracle
	jobs   Jobs
	logger *slog.Logger

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	handlerTimeout  time.Duration
}

// Option configures a Node.
type Option func(*Node)

// WithJobs adds jobs. Later definitions of a spec replace earlier ones.
func WithJobs(jobs Jobs) Option {
	return func(n *Node) {
		for spec, job := range jobs {
			n.jobs[spec] = job
		}
	}
}

// WithJob registers job for spec.
func WithJob(spec string, job Job) Option {
	return func(n *Node) {
		if spec != "" && job != nil {
			n.jobs[spec] = job
		}
	}
}

// WithRetry sets the retry budget for transient submission failures.
func WithRetry(maxRetries uint64, initial, ceiling time.Duration) Option {
	return func(n *Node) {
		n.maxRetries = maxRetries
		if initial > 0 {
			n.initialInterval = initial
		}
		if ceiling > 0 {
			n.maxInterval = ceiling
		}
	}
}

// WithHandlerTimeout bounds one request, job and retries included. Zero disables the bound.
func WithHandlerTimeout(d time.Duration) Option {
	return func(n *Node) {
		if d >= 0 {
			n.handlerTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(n *Node) {
		if log != nil {
			n.logger = log
		}
	}
}

// NewNode creates a node submitting to oracle as addr.
func NewNode(addr ledger.Address, oracle Oracle, opts ...Option) (*Node, error) {
	if addr.IsZero() || oracle == nil {
		return nil, ErrInvalidConfig
	}

	n := &Node{
		addr:            addr,
		oracle:          oracle,
		jobs:            make(Jobs),
		logger:          logger.Discard(),
		maxRetries:      5,
		initialInterval: 100 * time.Millisecond,
		maxInterval:     5 * time.Second,
		handlerTimeout:  time.Minute,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n, nil
}

// Address returns the principal the node fulfills as.
func (n *Node) Address() ledger.Address {
	return n.addr
}

// Handler returns the event handler to register on an event.Processor.
// Requests without a job are logged and acknowledged so they do not fail the processor.
func (n *Node) Handler() event.Handler {
	return event.NewHandlerFunc(event.ApplyDecorators(
		n.answer,
		event.WithTimeout[broker.OracleRequest](n.handlerTimeout),
	))
}

func (n *Node) answer(ctx context.Context, req broker.OracleRequest) error {
	err := n.HandleRequest(ctx, req)
	if errors.Is(err, ErrNoJob) {
		n.logger.WarnContext(ctx, "no job for request",
			logger.RequestID(req.ID.String()),
			logger.Spec(req.Spec))
		return nil
	}
	return err
}

// HandleRequest computes and submits the answer for req.
func (n *Node) HandleRequest(ctx context.Context, req broker.OracleRequest) error {
	job, ok := n.jobs[req.Spec]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoJob, req.Spec)
	}

	data, err := job.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("job %q failed: %w", req.Spec, err)
	}

	attempts := 0
	submit := func() error {
		attempts++
		err := n.oracle.Fulfill(ctx, n.addr, req.ID, data)
		if errors.Is(err, broker.ErrUnauthorizedFulfiller) || errors.Is(err, broker.ErrUnknownRequest) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		n.logger.WarnContext(ctx, "fulfillment failed, retrying",
			logger.RequestID(req.ID.String()),
			logger.RetryCount(attempts),
			logger.Duration(next),
			logger.Error(err))
	}

	if err := backoff.RetryNotify(submit, n.policy(ctx), notify); err != nil {
		n.logger.ErrorContext(ctx, "fulfillment failed",
			logger.RequestID(req.ID.String()),
			logger.Spec(req.Spec),
			logger.Error(err))
		return fmt.Errorf("failed to fulfill request %s: %w", req.ID, err)
	}

	n.logger.InfoContext(ctx, "request fulfilled",
		logger.RequestID(req.ID.String()),
		logger.Spec(req.Spec),
		logger.Address("requester", req.Requester.String()))

	return nil
}

func (n *Node) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = n.initialInterval
	exp.MaxInterval = n.maxInterval
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, n.maxRetries), ctx)
}
