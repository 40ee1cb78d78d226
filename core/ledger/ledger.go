package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/arbiter/core/logger"
)

type publisher interface {
	Publish(ctx context.Context, payload any) error
}

// Ledger serializes operations and commits them atomically.
type Ledger struct {
	mu        sync.Mutex
	journal   *Journal
	publisher publisher
	logger    *slog.Logger
	now       func() time.Time
	capacity  int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher forwards every committed notification to p (typically an *event.Publisher).
func WithPublisher(p publisher) Option {
	return func(l *Ledger) {
		if p != nil {
			l.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.logger = log
		}
	}
}

// WithJournalCapacity bounds the number of retained journal entries. Zero keeps everything.
func WithJournalCapacity(n int) Option {
	return func(l *Ledger) {
		if n >= 0 {
			l.capacity = n
		}
	}
}

// WithClock overrides the time source used to stamp journal entries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		logger: logger.Discard(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.journal = newJournal(l.capacity)
	return l
}

// Journal returns the log of committed notifications.
func (l *Ledger) Journal() *Journal {
	return l.journal
}

// Run executes fn as one atomic operation. When ctx already carries a unit of this
// ledger, fn joins it and nothing is committed until the outermost Run returns.
// Reaching this ledger again through a unit of another ledger fails with ErrReentrant,
// since the outer unit still holds the lock.
func (l *Ledger) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if u, err := UnitFrom(ctx); err == nil {
		if u.ledger == l {
			return fn(ctx)
		}
		for p := u.parent; p != nil; p = p.parent {
			if p.ledger == l {
				return ErrReentrant
			}
		}
	}

	l.mu.Lock()
	entries, err := l.run(ctx, fn)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.publish(ctx, entries)
	return nil
}

func (l *Ledger) run(ctx context.Context, fn func(ctx context.Context) error) (entries []Entry, err error) {
	u := &Unit{ledger: l}
	if outer, err := UnitFrom(ctx); err == nil {
		u.parent = outer
	}

	defer func() {
		if r := recover(); r != nil {
			l.rollback(ctx, u)
			panic(r)
		}
	}()

	if err := fn(withUnit(ctx, u)); err != nil {
		l.rollback(ctx, u)
		return nil, err
	}

	participants, applies, pending := u.close()
	for i, p := range participants {
		if err := p.Commit(ctx); err != nil {
			for _, rest := range participants[i+1:] {
				if rbErr := rest.Rollback(ctx); rbErr != nil {
					l.logger.ErrorContext(ctx, "participant rollback failed", logger.Error(rbErr))
				}
			}
			return nil, fmt.Errorf("%w: %w", ErrCommitFailed, err)
		}
	}

	for _, apply := range applies {
		apply()
	}

	return l.journal.append(pending, l.now()), nil
}

func (l *Ledger) rollback(ctx context.Context, u *Unit) {
	participants, _, _ := u.close()
	for i := len(participants) - 1; i >= 0; i-- {
		if err := participants[i].Rollback(ctx); err != nil {
			l.logger.ErrorContext(ctx, "participant rollback failed", logger.Error(err))
		}
	}
}

// publish hands committed entries to the publisher. Failures are logged only; the
// operation is already committed and the journal holds the authoritative record.
func (l *Ledger) publish(ctx context.Context, entries []Entry) {
	if l.publisher == nil {
		return
	}
	for _, e := range entries {
		if err := l.publisher.Publish(ctx, e.Payload); err != nil {
			l.logger.ErrorContext(ctx, "failed to publish notification",
				logger.Address("emitter", e.Emitter.String()),
				logger.Event(e.Name),
				slog.Uint64("seq", e.Seq),
				logger.Error(err))
		}
	}
}
