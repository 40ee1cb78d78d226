package broker

import (
	"errors"

	"github.com/dmitrymomot/arbiter/core/ownable"
)

var (
	ErrUnauthorizedFulfiller = errors.New("caller is not an authorized fulfiller")
	ErrUnknownRequest        = errors.New("unknown request")
	ErrUnknownRequester      = errors.New("requester is not attached to the broker")
	ErrDuplicateRequest      = errors.New("request id already issued")
	ErrIDExhausted           = errors.New("failed to generate a unique request id")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrAlreadyAttached       = errors.New("requester already attached")
	ErrCallbackFailed        = errors.New("fulfillment callback failed")
	ErrFeeRejected           = errors.New("request fee rejected")
	ErrTxDone                = errors.New("registry transaction already finished")

	ErrUnauthorized = ownable.ErrUnauthorized
	ErrInvalidOwner = ownable.ErrInvalidOwner
)
