package requester

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/dmitrymomot/arbiter/core/broker"
	"github.com/dmitrymomot/arbiter/core/ledger"
	"github.com/dmitrymomot/arbiter/core/logger"
	"github.com/dmitrymomot/arbiter/core/ownable"
	"github.com/dmitrymomot/arbiter/pkg/abi"
)

// Oracle is the broker surface the arbiter depends on.
type Oracle interface {
	Address() ledger.Address
	Ledger() *ledger.Ledger
	Register(ctx context.Context, caller ledger.Address, req broker.Request) (broker.RequestID, error)
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Arbiter) {
		if log != nil {
			a.logger = log
		}
	}
}

// Arbiter requests a value from its oracle and follows up with a receipt request.
type Arbiter struct {
	ledger *ledger.Ledger
	addr   ledger.Address
	oracle Oracle
	owner  *ownable.Ownable
	logger *slog.Logger

	mu      sync.RWMutex
	amount  *big.Int
	receipt []byte
	slots   map[Slot]slotStatus
}

// New deploys an arbiter at addr owned by owner and bound to oracle.
// The caller still has to attach it to the broker.
func New(l *ledger.Ledger, addr, owner ledger.Address, oracle Oracle, opts ...Option) (*Arbiter, error) {
	if l == nil || oracle == nil || addr.IsZero() {
		return nil, ErrInvalidAddress
	}
	// Callbacks run inside the oracle's unit; a second ledger would have to lock it again.
	if oracle.Ledger() != l {
		return nil, ErrLedgerMismatch
	}

	o, err := ownable.New(addr, owner)
	if err != nil {
		return nil, err
	}

	a := &Arbiter{
		ledger: l,
		addr:   addr,
		oracle: oracle,
		owner:  o,
		logger: logger.Discard(),
		amount: new(big.Int),
		slots:  make(map[Slot]slotStatus, len(chain)),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Address returns where the arbiter is deployed.
func (a *Arbiter) Address() ledger.Address {
	return a.addr
}

// Amount returns the last delivered value.
func (a *Arbiter) Amount() *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return new(big.Int).Set(a.amount)
}

// Receipt returns the last delivered receipt.
func (a *Arbiter) Receipt() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return bytes.Clone(a.receipt)
}

// Owner returns the principal allowed to initiate requests.
func (a *Arbiter) Owner() ledger.Address {
	return a.owner.Owner()
}

// TransferOwnership hands the arbiter to newOwner.
func (a *Arbiter) TransferOwnership(ctx context.Context, caller, newOwner ledger.Address) error {
	return a.ledger.Run(ctx, func(ctx context.Context) error {
		return a.owner.TransferOwnership(ctx, caller, newOwner)
	})
}

// Slot reports the state of slot and the id tracked for it.
func (a *Arbiter) Slot(s Slot) (SlotState, broker.RequestID) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := a.slots[s]
	return st.state, st.id
}

// Initiate starts a new chain with a value request.
func (a *Arbiter) Initiate(ctx context.Context, caller ledger.Address) (broker.RequestID, error) {
	var id broker.RequestID
	err := a.ledger.Run(ctx, func(ctx context.Context) error {
		if err := a.owner.RequireOwner(caller); err != nil {
			return err
		}
		if a.inFlight() {
			return ErrRequestInFlight
		}

		var err error
		id, err = a.request(ctx, SlotValue)
		if err != nil {
			return err
		}
		ledger.MustUnit(ctx).Emit(a.addr, ChainlinkRequested{ID: id, Slot: SlotValue})
		return nil
	})
	if err != nil {
		return "", err
	}

	a.logger.InfoContext(ctx, "request initiated",
		logger.RequestID(id.String()),
		logger.Address("requester", a.addr.String()))

	return id, nil
}

// HandleFulfillment is the callback the broker invokes with fulfillment data.
func (a *Arbiter) HandleFulfillment(ctx context.Context, caller ledger.Address, f broker.Fulfillment) error {
	if caller != a.oracle.Address() {
		return ErrCallerNotBroker
	}

	slot, ok := slotOf(f.Selector)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSelector, f.Selector)
	}

	return a.ledger.Run(ctx, func(ctx context.Context) error {
		if st, id := a.Slot(slot); st != Pending || id != f.ID {
			return ErrStaleOrUnknownID
		}

		switch slot {
		case SlotValue:
			return a.storeValue(ctx, f)
		default:
			return a.storeReceipt(ctx, f)
		}
	})
}

func (a *Arbiter) storeValue(ctx context.Context, f broker.Fulfillment) error {
	value, err := abi.DecodeUint256(f.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	unit := ledger.MustUnit(ctx)
	unit.Apply(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.amount = value
		a.slots[SlotValue] = slotStatus{state: Fulfilled, id: f.ID}
	})

	next, err := a.request(ctx, SlotReceipt)
	if err != nil {
		return fmt.Errorf("failed to request receipt: %w", err)
	}

	unit.Emit(a.addr, FollowUpRequested{ID: next, Previous: f.ID})
	unit.Emit(a.addr, ChainlinkRequested{ID: next, Slot: SlotReceipt})
	unit.Emit(a.addr, ChainlinkFulfilled{ID: f.ID, Slot: SlotValue})

	a.logger.DebugContext(ctx, "value stored",
		logger.RequestID(f.ID.String()),
		slog.String("amount", value.String()),
		slog.String("follow_up_id", next.String()))

	return nil
}

func (a *Arbiter) storeReceipt(ctx context.Context, f broker.Fulfillment) error {
	receipt := bytes.Clone(f.Data)

	unit := ledger.MustUnit(ctx)
	unit.Apply(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.receipt = receipt
		a.slots[SlotReceipt] = slotStatus{state: Fulfilled, id: f.ID}
	})
	unit.Emit(a.addr, ChainlinkFulfilled{ID: f.ID, Slot: SlotReceipt})

	a.logger.DebugContext(ctx, "receipt stored", logger.RequestID(f.ID.String()))
	return nil
}

// request registers slot's request with the oracle and tracks its id once committed.
func (a *Arbiter) request(ctx context.Context, slot Slot) (broker.RequestID, error) {
	id, err := a.oracle.Register(ctx, a.addr, slot.request())
	if err != nil {
		return "", err
	}

	ledger.MustUnit(ctx).Apply(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.slots[slot] = slotStatus{state: Pending, id: id}
	})
	return id, nil
}

func (a *Arbiter) inFlight() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range chain {
		if a.slots[s].state == Pending {
			return true
		}
	}
	return false
}
