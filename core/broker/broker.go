package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/arbiter/core/ledger"
	"github.com/dmitrymomot/arbiter/core/logger"
	"github.com/dmitrymomot/arbiter/core/ownable"
)

// Broker accepts requests from attached requesters and dispatches authorized fulfillments.
type Broker struct {
	ledger *ledger.Ledger
	addr   ledger.Address
	owner  *ownable.Ownable

	registry      Registry
	newID         func() RequestID
	maxIDAttempts int
	settlement    Settlement
	fee           *big.Int
	logger        *slog.Logger
	now           func() time.Time

	// seq may have gaps: numbers taken by rolled back registrations are not reissued.
	// It continues from the registry's LastSeq, read on the first registration.
	seq       atomic.Uint64
	seqLoaded atomic.Bool

	mu         sync.RWMutex
	callbacks  map[ledger.Address]Callback
	authorized map[ledger.Address]bool
}

type unitKey struct{ b *Broker }

// New creates a broker at addr owned by owner. No principal is authorized to fulfill
// until the owner grants it with SetAuthorization.
func New(l *ledger.Ledger, addr, owner ledger.Address, opts ...Option) (*Broker, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil ledger", ErrInvalidRequest)
	}
	if addr.IsZero() {
		return nil, ErrInvalidAddress
	}

	o, err := ownable.New(addr, owner)
	if err != nil {
		return nil, err
	}

	b := &Broker{
		ledger:        l,
		addr:          addr,
		owner:         o,
		registry:      NewMemoryRegistry(),
		newID:         NewRequestID,
		maxIDAttempts: 5,
		logger:        logger.Discard(),
		now:           time.Now,
		callbacks:     make(map[ledger.Address]Callback),
		authorized:    make(map[ledger.Address]bool),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Ledger returns the ledger the broker commits on. Requesters must share it.
func (b *Broker) Ledger() *ledger.Ledger {
	return b.ledger
}

// Address returns the broker's own address, the caller identity passed to callbacks.
func (b *Broker) Address() ledger.Address {
	return b.addr
}

// Owner returns the principal allowed to change the authorization set.
func (b *Broker) Owner() ledger.Address {
	return b.owner.Owner()
}

// TransferOwnership hands the broker to newOwner.
func (b *Broker) TransferOwnership(ctx context.Context, caller, newOwner ledger.Address) error {
	return b.ledger.Run(ctx, func(ctx context.Context) error {
		return b.owner.TransferOwnership(ctx, caller, newOwner)
	})
}

// Attach binds the requester deployed at addr to its callback.
func (b *Broker) Attach(addr ledger.Address, cb Callback) error {
	if addr.IsZero() || cb == nil {
		return ErrInvalidAddress
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.callbacks[addr]; ok {
		return ErrAlreadyAttached
	}
	b.callbacks[addr] = cb
	return nil
}

// SetAuthorization grants or revokes the right of principal to submit fulfillments.
func (b *Broker) SetAuthorization(ctx context.Context, caller, principal ledger.Address, allowed bool) error {
	return b.ledger.Run(ctx, func(ctx context.Context) error {
		if err := b.owner.RequireOwner(caller); err != nil {
			return err
		}
		if principal.IsZero() {
			return ErrInvalidAddress
		}

		unit := ledger.MustUnit(ctx)
		unit.Apply(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if allowed {
				b.authorized[principal] = true
			} else {
				delete(b.authorized, principal)
			}
		})
		unit.Emit(b.addr, AuthorizationChanged{Principal: principal, Allowed: allowed})
		return nil
	})
}

// IsAuthorized reports whether principal may submit fulfillments.
func (b *Broker) IsAuthorized(principal ledger.Address) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.authorized[principal]
}

// Register stores a new pending request on behalf of caller and returns its id.
func (b *Broker) Register(ctx context.Context, caller ledger.Address, req Request) (RequestID, error) {
	if req.Selector == "" {
		return "", fmt.Errorf("%w: empty selector", ErrInvalidRequest)
	}

	var id RequestID
	err := b.ledger.Run(ctx, func(ctx context.Context) error {
		if _, ok := b.callback(caller); !ok {
			return ErrUnknownRequester
		}

		tx, err := b.tx(ctx)
		if err != nil {
			return err
		}

		if b.settlement != nil {
			if err := b.settlement.Charge(ctx, caller, b.addr, b.fee); err != nil {
				return fmt.Errorf("%w: %w", ErrFeeRejected, err)
			}
		}

		seq, err := b.nextSeq(ctx)
		if err != nil {
			return err
		}

		rec := PendingRequest{
			Requester: caller,
			Selector:  req.Selector,
			Spec:      req.Spec,
			Data:      req.Data,
			Seq:       seq,
			CreatedAt: b.now(),
		}
		if err := b.insert(ctx, tx, &rec); err != nil {
			return err
		}

		ledger.MustUnit(ctx).Emit(b.addr, OracleRequest{
			ID:        rec.ID,
			Requester: rec.Requester,
			Selector:  rec.Selector,
			Spec:      rec.Spec,
			Data:      rec.Data,
			Seq:       rec.Seq,
		})
		id = rec.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	b.logger.DebugContext(ctx, "request registered",
		logger.RequestID(id.String()),
		logger.Address("requester", caller.String()),
		logger.Selector(req.Selector),
		logger.Spec(req.Spec))

	return id, nil
}

func (b *Broker) nextSeq(ctx context.Context) (uint64, error) {
	if !b.seqLoaded.Load() {
		last, err := b.registry.LastSeq(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to load request sequence: %w", err)
		}
		for {
			cur := b.seq.Load()
			if last <= cur || b.seq.CompareAndSwap(cur, last) {
				break
			}
		}
		b.seqLoaded.Store(true)
	}
	return b.seq.Add(1), nil
}

func (b *Broker) insert(ctx context.Context, tx RegistryTx, rec *PendingRequest) error {
	for attempt := 1; ; attempt++ {
		rec.ID = b.newID()
		err := tx.Insert(ctx, *rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateRequest) {
			return fmt.Errorf("failed to store request: %w", err)
		}
		if attempt >= b.maxIDAttempts {
			return fmt.Errorf("%w after %d attempts", ErrIDExhausted, attempt)
		}
	}
}

// Fulfill delivers data for the pending request id. Only authorized principals may call it.
// The pending record is taken and the requester callback invoked in one atomic unit.
func (b *Broker) Fulfill(ctx context.Context, caller ledger.Address, id RequestID, data []byte) error {
	var requester ledger.Address
	err := b.ledger.Run(ctx, func(ctx context.Context) error {
		if !b.IsAuthorized(caller) {
			return ErrUnauthorizedFulfiller
		}

		tx, err := b.tx(ctx)
		if err != nil {
			return err
		}

		rec, err := tx.Take(ctx, id)
		if err != nil {
			return err
		}
		requester = rec.Requester

		cb, ok := b.callback(rec.Requester)
		if !ok {
			return ErrUnknownRequester
		}

		f := Fulfillment{ID: rec.ID, Selector: rec.Selector, Data: data}
		if err := cb.HandleFulfillment(ctx, b.addr, f); err != nil {
			return fmt.Errorf("%w: %w", ErrCallbackFailed, err)
		}

		ledger.MustUnit(ctx).Emit(b.addr, RequestFulfilled{ID: rec.ID, Requester: rec.Requester})
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorizedFulfiller) {
			b.logger.WarnContext(ctx, "fulfillment rejected",
				logger.RequestID(id.String()),
				logger.Address("caller", caller.String()),
				logger.Error(err))
		}
		return err
	}

	b.logger.DebugContext(ctx, "request fulfilled",
		logger.RequestID(id.String()),
		logger.Address("requester", requester.String()),
		logger.Address("fulfiller", caller.String()))

	return nil
}

// Get returns the live pending request id.
func (b *Broker) Get(ctx context.Context, id RequestID) (PendingRequest, error) {
	return b.registry.Get(ctx, id)
}

// Pending lists live requests in registration order.
func (b *Broker) Pending(ctx context.Context) ([]PendingRequest, error) {
	return b.registry.Pending(ctx)
}

func (b *Broker) callback(addr ledger.Address) (Callback, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cb, ok := b.callbacks[addr]
	return cb, ok
}

// tx returns the registry transaction of the current unit, opening one if needed.
func (b *Broker) tx(ctx context.Context) (RegistryTx, error) {
	unit, err := ledger.UnitFrom(ctx)
	if err != nil {
		return nil, err
	}

	key := unitKey{b}
	if p, ok := unit.Lookup(key); ok {
		return p.(RegistryTx), nil
	}

	tx, err := b.registry.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin registry transaction: %w", err)
	}
	if err := unit.Enlist(key, tx); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return tx, nil
}
