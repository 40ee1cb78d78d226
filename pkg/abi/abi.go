package abi

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// WordSize is the width of an encoded uint256.
const WordSize = 32

var (
	ErrInvalidLength = errors.New("abi: payload must be exactly 32 bytes")
	ErrNegative      = errors.New("abi: negative value")
	ErrOverflow      = errors.New("abi: value exceeds 256 bits")
	ErrInvalidHex    = errors.New("abi: invalid hex string")
)

// EncodeUint256 returns v as a 32-byte big-endian word.
func EncodeUint256(v *big.Int) ([]byte, error) {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 {
		return nil, ErrNegative
	}
	if v.BitLen() > WordSize*8 {
		return nil, ErrOverflow
	}

	out := make([]byte, WordSize)
	v.FillBytes(out)
	return out, nil
}

// MustEncodeUint256 is like EncodeUint256 but panics on error.
func MustEncodeUint256(v *big.Int) []byte {
	out, err := EncodeUint256(v)
	if err != nil {
		panic(err)
	}
	return out
}

// DecodeUint256 reads a 32-byte big-endian word.
func DecodeUint256(data []byte) (*big.Int, error) {
	if len(data) != WordSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, len(data))
	}
	return new(big.Int).SetBytes(data), nil
}

// ParseHex decodes a hex string with or without the 0x prefix.
func ParseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHex, err)
	}
	return out, nil
}

// FormatHex returns data as a 0x-prefixed lowercase hex string.
func FormatHex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}
