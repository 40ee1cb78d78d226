// Package ownable implements single-owner authority for ledger actors.
package ownable

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrymomot/arbiter/core/ledger"
)

var (
	ErrUnauthorized = errors.New("caller is not the owner")
	ErrInvalidOwner = errors.New("invalid owner address")
)

// OwnershipTransferred is emitted when ownership moves to a new principal.
type OwnershipTransferred struct {
	Previous ledger.Address `json:"previous"`
	New      ledger.Address `json:"new"`
}

// Ownable holds the owner of the actor at self.
type Ownable struct {
	mu    sync.RWMutex
	self  ledger.Address
	owner ledger.Address
}

// New returns an Ownable for the actor at self owned by owner.
func New(self, owner ledger.Address) (*Ownable, error) {
	if owner.IsZero() {
		return nil, ErrInvalidOwner
	}
	return &Ownable{self: self, owner: owner}, nil
}

// Owner returns the current owner.
func (o *Ownable) Owner() ledger.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owner
}

// RequireOwner returns ErrUnauthorized unless caller is the owner.
func (o *Ownable) RequireOwner(caller ledger.Address) error {
	if caller.IsZero() || caller != o.Owner() {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership hands ownership to newOwner. It must run inside a ledger unit;
// the new owner takes effect when the unit commits.
func (o *Ownable) TransferOwnership(ctx context.Context, caller, newOwner ledger.Address) error {
	unit, err := ledger.UnitFrom(ctx)
	if err != nil {
		return err
	}
	if err := o.RequireOwner(caller); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return ErrInvalidOwner
	}

	previous := o.Owner()
	unit.Apply(func() {
		o.mu.Lock()
		o.owner = newOwner
		o.mu.Unlock()
	})
	unit.Emit(o.self, OwnershipTransferred{Previous: previous, New: newOwner})

	return nil
}
