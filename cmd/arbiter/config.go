package main

import (
	"time"

	"github.com/dmitrymomot/arbiter/core/ledger"
	"github.com/dmitrymomot/arbiter/integration/database/pg"
	"github.com/dmitrymomot/arbiter/integration/database/redis"
	"github.com/dmitrymomot/arbiter/integration/transport/kafka"
)

type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"arbiter"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Registry string `env:"ARBITER_REGISTRY" envDefault:"memory"` // memory | redis | postgres
	Bus      string `env:"ARBITER_BUS" envDefault:"memory"`      // memory | kafka
	JobsFile string `env:"ARBITER_JOBS_FILE"`
	Demo     bool   `env:"ARBITER_DEMO" envDefault:"false"`

	Owner   ledger.Address `env:"ARBITER_OWNER" envDefault:"0xowner"`
	Node    ledger.Address `env:"ARBITER_NODE" envDefault:"0xnode"`
	Oracle  ledger.Address `env:"ARBITER_ORACLE_ADDRESS" envDefault:"0xoracle"`
	Arbiter ledger.Address `env:"ARBITER_ADDRESS" envDefault:"0xarbiter"`

	JournalCapacity int           `env:"ARBITER_JOURNAL_CAPACITY" envDefault:"10000"`
	HealthInterval  time.Duration `env:"ARBITER_HEALTH_INTERVAL" envDefault:"30s"`
	DemoTimeout     time.Duration `env:"ARBITER_DEMO_TIMEOUT" envDefault:"30s"`
	HandlerTimeout  time.Duration `env:"ARBITER_HANDLER_TIMEOUT" envDefault:"1m"`

	Redis redis.Config
	DB    pg.Config
	Kafka kafka.Config
}
