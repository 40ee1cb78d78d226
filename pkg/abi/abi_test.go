package abi_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/arbiter/pkg/abi"
)

func TestEncodeUint256(t *testing.T) {
	t.Parallel()

	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	tests := []struct {
		name string
		in   *big.Int
		hex  string
		err  error
	}{
		{"zero", big.NewInt(0), "0x" + strings.Repeat("0", 64), nil},
		{"nil is zero", nil, "0x" + strings.Repeat("0", 64), nil},
		{"price", big.NewInt(50000), "0x" + strings.Repeat("0", 60) + "c350", nil},
		{"max", maxUint256, "0x" + strings.Repeat("f", 64), nil},
		{"overflow", new(big.Int).Add(maxUint256, big.NewInt(1)), "", abi.ErrOverflow},
		{"negative", big.NewInt(-1), "", abi.ErrNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := abi.EncodeUint256(tt.in)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, out, abi.WordSize)
			assert.Equal(t, tt.hex, abi.FormatHex(out))
		})
	}
}

func TestDecodeUint256(t *testing.T) {
	t.Parallel()

	t.Run("round trip of the reference price", func(t *testing.T) {
		t.Parallel()
		v, err := abi.DecodeUint256(abi.MustEncodeUint256(big.NewInt(50000)))
		require.NoError(t, err)
		assert.Equal(t, int64(50000), v.Int64())
	})

	t.Run("wrong length", func(t *testing.T) {
		t.Parallel()
		for _, n := range []int{0, 1, 31, 33, 64} {
			_, err := abi.DecodeUint256(make([]byte, n))
			assert.ErrorIs(t, err, abi.ErrInvalidLength, "length %d", n)
		}
	})

	t.Run("text is not a number", func(t *testing.T) {
		t.Parallel()
		_, err := abi.DecodeUint256([]byte("Transaction complete."))
		assert.ErrorIs(t, err, abi.ErrInvalidLength)
	})
}

func TestParseHex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []byte
		err  error
	}{
		{"prefixed", "0xc350", []byte{0xc3, 0x50}, nil},
		{"bare", "c350", []byte{0xc3, 0x50}, nil},
		{"odd length", "0x9", []byte{0x09}, nil},
		{"upper prefix", "0XFF", []byte{0xff}, nil},
		{"empty", "0x", []byte{}, nil},
		{"garbage", "0xzz", nil, abi.ErrInvalidHex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := abi.ParseHex(tt.in)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
