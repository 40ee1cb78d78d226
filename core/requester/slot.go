package requester

import "github.com/dmitrymomot/arbiter/core/broker"

// Slot is one request kind of the chain. Its value doubles as the job spec.
type Slot string

const (
	SlotValue   Slot = "value"
	SlotReceipt Slot = "receipt"
)

// Callback selectors the broker delivers fulfillments to.
const (
	SelectorFulfill      = "fulfill"
	SelectorStoreReceipt = "storeReceipt"
)

// SlotState is the lifecycle position of a slot.
type SlotState int

const (
	Idle SlotState = iota
	Pending
	Fulfilled
)

func (s SlotState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	default:
		return "unknown"
	}
}

// chain lists the slots in request order.
var chain = [...]Slot{SlotValue, SlotReceipt}

func (s Slot) selector() string {
	if s == SlotReceipt {
		return SelectorStoreReceipt
	}
	return SelectorFulfill
}

func (s Slot) request() broker.Request {
	return broker.Request{Selector: s.selector(), Spec: string(s)}
}

func slotOf(selector string) (Slot, bool) {
	switch selector {
	case SelectorFulfill:
		return SlotValue, true
	case SelectorStoreReceipt:
		return SlotReceipt, true
	default:
		return "", false
	}
}

type slotStatus struct {
	state SlotState
	id    broker.RequestID
}
