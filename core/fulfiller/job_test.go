package fulfiller_test

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/arbiter/core/broker"
	"github.com/dmitrymomot/arbiter/core/fulfiller"
	"github.com/dmitrymomot/arbiter/pkg/abi"
)

const jobsYAML = `
jobs:
  - spec: value
    type: uint256
    value: "50000"
  - spec: receipt
    type: text
    value: Transaction complete.
  - spec: raw
    type: hex
    value: "0xdeadbeef"
`

func TestParseJobs(t *testing.T) {
	t.Parallel()

	jobs, err := fulfiller.ParseJobs([]byte(jobsYAML))
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	ctx := context.Background()

	data, err := jobs["value"].Run(ctx, broker.OracleRequest{Spec: "value"})
	require.NoError(t, err)
	v, err := abi.DecodeUint256(data)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), v.Int64())

	data, err = jobs["receipt"].Run(ctx, broker.OracleRequest{Spec: "receipt"})
	require.NoError(t, err)
	assert.Equal(t, "Transaction complete.", string(data))

	data, err = jobs["raw"].Run(ctx, broker.OracleRequest{Spec: "raw"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data)
}

func TestParseJobs_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "jobs: [::"},
		{"missing spec", "jobs:\n  - type: text\n    value: x\n"},
		{"duplicate spec", "jobs:\n  - spec: a\n    type: text\n  - spec: a\n    type: text\n"},
		{"unknown type", "jobs:\n  - spec: a\n    type: float\n    value: '1.5'\n"},
		{"bad integer", "jobs:\n  - spec: a\n    type: uint256\n    value: abc\n"},
		{"negative integer", "jobs:\n  - spec: a\n    type: uint256\n    value: '-1'\n"},
		{"bad hex", "jobs:\n  - spec: a\n    type: hex\n    value: 0xzz\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := fulfiller.ParseJobs([]byte(tt.yaml))
			require.ErrorIs(t, err, fulfiller.ErrInvalidJob)
		})
	}
}

func TestLoadJobs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(jobsYAML), 0o600))

	jobs, err := fulfiller.LoadJobs(path)
	require.NoError(t, err)
	assert.Contains(t, jobs, "value")

	_, err = fulfiller.LoadJobs(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestStaticValue_Overflow(t *testing.T) {
	t.Parallel()

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := fulfiller.StaticValue{Value: tooBig}.Run(context.Background(), broker.OracleRequest{})
	require.ErrorIs(t, err, abi.ErrOverflow)
}
