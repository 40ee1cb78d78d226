package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokerSettings struct {
	Registry string        `env:"CONFIG_TEST_REGISTRY" envDefault:"memory"`
	Timeout  time.Duration `env:"CONFIG_TEST_TIMEOUT" envDefault:"5s"`
	Brokers  []string      `env:"CONFIG_TEST_BROKERS" envSeparator:","`
}

type strictSettings struct {
	Port int `env:"CONFIG_TEST_PORT"`
}

type requiredSettings struct {
	Owner string `env:"CONFIG_TEST_OWNER,required"`
}

func forget[T any]() {
	cache.Delete(reflect.TypeFor[T]())
}

func TestLoad_DefaultsAndCache(t *testing.T) {
	forget[brokerSettings]()
	t.Setenv("CONFIG_TEST_BROKERS", "a:9092,b:9092")

	var first brokerSettings
	require.NoError(t, Load(&first))
	assert.Equal(t, "memory", first.Registry)
	assert.Equal(t, 5*time.Second, first.Timeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, first.Brokers)

	t.Setenv("CONFIG_TEST_REGISTRY", "redis")

	var second brokerSettings
	require.NoError(t, Load(&second))
	assert.Equal(t, "memory", second.Registry, "cached value is returned")
}

func TestLoad_ParseError(t *testing.T) {
	forget[strictSettings]()
	t.Setenv("CONFIG_TEST_PORT", "not-an-int")

	var cfg strictSettings
	err := Load(&cfg)
	require.ErrorIs(t, err, ErrParsingConfig)
}

func TestMustLoad_PanicsOnMissingRequired(t *testing.T) {
	forget[requiredSettings]()

	var cfg requiredSettings
	assert.Panics(t, func() { MustLoad(&cfg) })

	t.Setenv("CONFIG_TEST_OWNER", "0xowner")
	require.NotPanics(t, func() { MustLoad(&cfg) })
	assert.Equal(t, "0xowner", cfg.Owner)
}

func TestLoad_NilTarget(t *testing.T) {
	require.ErrorIs(t, Load[brokerSettings](nil), ErrParsingConfig)
}
