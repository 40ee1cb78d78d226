// Package requester implements Arbiter, a requester that asks a broker for a numeric value
// and, once it arrives, chains a follow-up request for a receipt.
//
// Only the owner may start a chain with Initiate. The broker delivers fulfillments through
// HandleFulfillment, which rejects any caller other than the bound broker and any id that
// is not the tracked pending id of its slot. A "value" fulfillment carries a 32-byte
// uint256 (see pkg/abi); a "receipt" fulfillment is stored byte for byte.
//
//	a, err := requester.New(l, "0xarbiter", owner, b)
//	if err != nil {
//		return err
//	}
//	if err := b.Attach(a.Address(), a); err != nil {
//		return err
//	}
//	id, err := a.Initiate(ctx, owner)
//
// A new chain cannot be initiated while either slot is pending (ErrRequestInFlight).
package requester
