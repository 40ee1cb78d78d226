package ledger

import (
	"context"
	"sync"
)

// Participant is a resource with its own transaction that commits with the unit.
type Participant interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type pendingEntry struct {
	emitter Address
	payload any
}

// Unit collects the staged effects of one operation.
type Unit struct {
	ledger *Ledger
	parent *Unit // unit of another ledger this one runs inside, if any

	mu           sync.Mutex
	participants []Participant
	keys         map[any]Participant
	applies      []func()
	entries      []pendingEntry
	closed       bool
}

type unitCtx struct{}

func withUnit(ctx context.Context, u *Unit) context.Context {
	return context.WithValue(ctx, unitCtx{}, u)
}

// UnitFrom returns the unit the context runs in.
func UnitFrom(ctx context.Context) (*Unit, error) {
	if u, ok := ctx.Value(unitCtx{}).(*Unit); ok && u != nil {
		return u, nil
	}
	return nil, ErrNoUnit
}

// MustUnit is like UnitFrom but panics outside Run.
func MustUnit(ctx context.Context) *Unit {
	u, err := UnitFrom(ctx)
	if err != nil {
		panic(err)
	}
	return u
}

// Enlist adds a participant under key. Participants commit in enlistment order.
// A nested call looks the participant up by the same key to reuse the open transaction.
func (u *Unit) Enlist(key any, p Participant) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrUnitClosed
	}
	if u.keys == nil {
		u.keys = make(map[any]Participant)
	}
	u.keys[key] = p
	u.participants = append(u.participants, p)
	return nil
}

// Lookup returns the participant enlisted under key.
func (u *Unit) Lookup(key any) (Participant, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.keys[key]
	return p, ok
}

// Apply stages an in-memory mutation. It runs only after every participant committed.
func (u *Unit) Apply(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		panic(ErrUnitClosed)
	}
	u.applies = append(u.applies, fn)
}

// Emit stages a notification from emitter.
func (u *Unit) Emit(emitter Address, payload any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		panic(ErrUnitClosed)
	}
	u.entries = append(u.entries, pendingEntry{emitter: emitter, payload: payload})
}

func (u *Unit) close() ([]Participant, []func(), []pendingEntry) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	return u.participants, u.applies, u.entries
}
