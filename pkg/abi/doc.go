// Package abi encodes the fixed-width payloads exchanged between the broker and requesters.
//
// Numeric fulfillments travel as a single 32-byte big-endian unsigned word, the same
// layout an EVM contract uses for uint256. Hex helpers accept and produce the "0x"
// prefixed form fulfilling nodes usually submit.
//
//	data, err := abi.EncodeUint256(big.NewInt(50000))
//	if err != nil {
//		// value is negative or wider than 256 bits
//	}
//	fmt.Println(abi.FormatHex(data)) // 0x000...c350
//
//	v, err := abi.DecodeUint256(data)
//	// v == 50000
//
// # Errors
//
//   - ErrInvalidLength: payload is not exactly 32 bytes
//   - ErrNegative: value is below zero
//   - ErrOverflow: value does not fit into 256 bits
//   - ErrInvalidHex: string is not valid hex
package abi
