package broker

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/dmitrymomot/arbiter/core/ledger"
)

// Settlement charges requesters for registering requests. Charge runs inside the
// registering unit (see ledger.UnitFrom); implementations holding state should stage it
// on that unit so a rejected registration is not billed.
type Settlement interface {
	Charge(ctx context.Context, payer, payee ledger.Address, amount *big.Int) error
}

// Option configures a Broker.
type Option func(*Broker)

// WithRegistry sets the pending-request store. Defaults to a MemoryRegistry.
func WithRegistry(r Registry) Option {
	return func(b *Broker) {
		if r != nil {
			b.registry = r
		}
	}
}

// WithIDGenerator overrides request id generation.
func WithIDGenerator(fn func() RequestID) Option {
	return func(b *Broker) {
		if fn != nil {
			b.newID = fn
		}
	}
}

// WithMaxIDAttempts bounds id regeneration after collisions. Defaults to 5.
func WithMaxIDAttempts(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.maxIDAttempts = n
		}
	}
}

// WithFee charges amount through s for every registered request.
func WithFee(s Settlement, amount *big.Int) Option {
	return func(b *Broker) {
		if s != nil && amount != nil && amount.Sign() > 0 {
			b.settlement = s
			b.fee = new(big.Int).Set(amount)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Broker) {
		if log != nil {
			b.logger = log
		}
	}
}

// WithClock overrides the time source for PendingRequest.CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}
