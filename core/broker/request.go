package broker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/arbiter/core/ledger"
)

// RequestID identifies a request for the whole lifetime of a broker.
type RequestID string

// NewRequestID returns a random (uuid v4) id.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

func (id RequestID) String() string {
	return string(id)
}

// Request is what a requester asks for.
type Request struct {
	// Selector names the callback operation the fulfillment is delivered to.
	Selector string
	// Spec tells the fulfiller what data to produce.
	Spec string
	// Data carries optional request parameters.
	Data []byte
}

// PendingRequest is a registered request awaiting its single fulfillment.
type PendingRequest struct {
	ID        RequestID      `json:"id"`
	Requester ledger.Address `json:"requester"`
	Selector  string         `json:"selector"`
	Spec      string         `json:"spec"`
	Data      []byte         `json:"data,omitempty"`
	Seq       uint64         `json:"seq"`
	CreatedAt time.Time      `json:"created_at"`
}

// Fulfillment is delivered to the requester's callback.
type Fulfillment struct {
	ID       RequestID
	Selector string
	Data     []byte
}

// Callback is implemented by requesters. caller is the address of the invoking broker.
type Callback interface {
	HandleFulfillment(ctx context.Context, caller ledger.Address, f Fulfillment) error
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(ctx context.Context, caller ledger.Address, f Fulfillment) error

func (fn CallbackFunc) HandleFulfillment(ctx context.Context, caller ledger.Address, f Fulfillment) error {
	return fn(ctx, caller, f)
}
