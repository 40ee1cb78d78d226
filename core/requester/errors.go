package requester

import (
	"errors"

	"github.com/dmitrymomot/arbiter/core/ownable"
)

var (
	ErrCallerNotBroker  = errors.New("caller is not the bound broker")
	ErrStaleOrUnknownID = errors.New("request id is not pending for this slot")
	ErrUnknownSelector  = errors.New("unknown callback selector")
	ErrMalformedPayload = errors.New("malformed fulfillment payload")
	ErrRequestInFlight  = errors.New("a request is already in flight")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrLedgerMismatch   = errors.New("arbiter and oracle run on different ledgers")

	ErrUnauthorized = ownable.ErrUnauthorized
	ErrInvalidOwner = ownable.ErrInvalidOwner
)
