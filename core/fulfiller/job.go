package fulfiller

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/arbiter/core/broker"
	"github.com/dmitrymomot/arbiter/pkg/abi"
)

// Job produces the fulfillment data for a request.
type Job interface {
	Run(ctx context.Context, req broker.OracleRequest) ([]byte, error)
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context, req broker.OracleRequest) ([]byte, error)

func (fn JobFunc) Run(ctx context.Context, req broker.OracleRequest) ([]byte, error) {
	return fn(ctx, req)
}

// StaticValue answers with a fixed uint256.
type StaticValue struct {
	Value *big.Int
}

func (j StaticValue) Run(context.Context, broker.OracleRequest) ([]byte, error) {
	return abi.EncodeUint256(j.Value)
}

// StaticText answers with a fixed string.
type StaticText struct {
	Text string
}

func (j StaticText) Run(context.Context, broker.OracleRequest) ([]byte, error) {
	return []byte(j.Text), nil
}

// Jobs maps a request spec to the job answering it.
type Jobs map[string]Job

type jobsFile struct {
	Jobs []jobDef `yaml:"jobs"`
}

type jobDef struct {
	Spec  string `yaml:"spec"`
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// Job types accepted in YAML definitions.
const (
	TypeUint256 = "uint256"
	TypeText    = "text"
	TypeHex     = "hex"
)

// LoadJobs reads job definitions from a YAML file.
func LoadJobs(path string) (Jobs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}
	return ParseJobs(data)
}

// ParseJobs parses YAML job definitions.
func ParseJobs(data []byte) (Jobs, error) {
	var file jobsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	jobs := make(Jobs, len(file.Jobs))
	for i, def := range file.Jobs {
		if def.Spec == "" {
			return nil, fmt.Errorf("%w: job %d has no spec", ErrInvalidJob, i)
		}
		if _, ok := jobs[def.Spec]; ok {
			return nil, fmt.Errorf("%w: duplicate spec %q", ErrInvalidJob, def.Spec)
		}

		job, err := def.build()
		if err != nil {
			return nil, fmt.Errorf("%w: spec %q: %w", ErrInvalidJob, def.Spec, err)
		}
		jobs[def.Spec] = job
	}

	return jobs, nil
}

func (d jobDef) build() (Job, error) {
	switch d.Type {
	case TypeUint256:
		v, ok := new(big.Int).SetString(d.Value, 0)
		if !ok {
			return nil, fmt.Errorf("not an integer: %q", d.Value)
		}
		if _, err := abi.EncodeUint256(v); err != nil {
			return nil, err
		}
		return StaticValue{Value: v}, nil
	case TypeText:
		return StaticText{Text: d.Value}, nil
	case TypeHex:
		raw, err := abi.ParseHex(d.Value)
		if err != nil {
			return nil, err
		}
		return JobFunc(func(context.Context, broker.OracleRequest) ([]byte, error) {
			return raw, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown type %q", d.Type)
	}
}
