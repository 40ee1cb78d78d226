package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/arbiter/core/broker"
	"github.com/dmitrymomot/arbiter/core/config"
	"github.com/dmitrymomot/arbiter/core/event"
	"github.com/dmitrymomot/arbiter/core/fulfiller"
	"github.com/dmitrymomot/arbiter/core/health"
	"github.com/dmitrymomot/arbiter/core/ledger"
	"github.com/dmitrymomot/arbiter/core/logger"
	"github.com/dmitrymomot/arbiter/core/requester"
	"github.com/dmitrymomot/arbiter/integration/database/pg"
	"github.com/dmitrymomot/arbiter/integration/database/redis"
	"github.com/dmitrymomot/arbiter/integration/registry/pgstore"
	"github.com/dmitrymomot/arbiter/integration/registry/pgstore/migrations"
	"github.com/dmitrymomot/arbiter/integration/registry/redisstore"
	"github.com/dmitrymomot/arbiter/integration/transport/kafka"
)

type eventBus interface {
	Publish(ctx context.Context, data []byte) error
	Events() <-chan []byte
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg)

	log := newLogger(cfg)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("arbiter stopped with error", logger.Error(err))
		os.Exit(1)
	}

	log.Info("arbiter stopped")
}

func newLogger(cfg Config) *slog.Logger {
	var env logger.Option
	switch cfg.AppEnv {
	case "production":
		env = logger.WithProduction(cfg.AppName)
	case "staging":
		env = logger.WithStaging(cfg.AppName)
	default:
		env = logger.WithDevelopment(cfg.AppName)
	}
	return logger.New(env, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var checks []health.Check
	eg, ctx := errgroup.WithContext(ctx)

	registry, check, cleanup, err := openRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	if check != nil {
		checks = append(checks, check)
	}

	bus, busCheck, err := openBus(ctx, cfg, log, eg)
	if err != nil {
		return err
	}
	if busCheck != nil {
		checks = append(checks, busCheck)
	}

	l := ledger.New(
		ledger.WithPublisher(event.NewPublisher(bus, event.WithPublisherLogger(log))),
		ledger.WithLogger(log.With(logger.Component("ledger"))),
		ledger.WithJournalCapacity(cfg.JournalCapacity),
	)

	oracle, arbiter, err := deploy(ctx, cfg, l, registry, log)
	if err != nil {
		return err
	}

	if pending, err := oracle.Pending(ctx); err == nil && len(pending) > 0 {
		log.WarnContext(ctx, "registry holds requests from a previous run",
			logger.Count("pending", len(pending)))
	}

	node, err := newNode(cfg, oracle, log)
	if err != nil {
		return err
	}

	processor := event.NewProcessor(
		event.WithEventSource(bus),
		event.WithHandler(node.Handler()),
		event.WithProcessorLogger(log.With(logger.Component("processor"))),
	)
	checks = append(checks, processor.Healthcheck)

	eg.Go(processor.Run(ctx))
	eg.Go(health.Monitor(log, cfg.HealthInterval, checks...)(ctx))

	if cfg.Demo {
		eg.Go(func() error {
			defer cancel()
			return demo(ctx, cfg, arbiter, log)
		})
	}

	log.InfoContext(ctx, "arbiter started",
		slog.String("registry", cfg.Registry),
		slog.String("bus", cfg.Bus),
		logger.Address("oracle", oracle.Address().String()),
		logger.Address("arbiter", arbiter.Address().String()),
		logger.Address("node", node.Address().String()))

	return eg.Wait()
}

func openRegistry(ctx context.Context, cfg Config, log *slog.Logger) (broker.Registry, health.Check, func(), error) {
	switch cfg.Registry {
	case "", "memory":
		return broker.NewMemoryRegistry(), nil, func() {}, nil

	case "redis":
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redisstore.New(client), redis.Healthcheck(client), func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := pg.Connect(ctx, cfg.DB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.MigrateFS(ctx, pool, cfg.DB, migrations.FS, ".", log.With(logger.Component("migration"))); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return pgstore.New(pool), pg.Healthcheck(pool), pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown registry %q", cfg.Registry)
	}
}

func openBus(ctx context.Context, cfg Config, log *slog.Logger, eg *errgroup.Group) (eventBus, health.Check, error) {
	switch cfg.Bus {
	case "", "memory":
		bus := event.NewChannelBus(event.WithChannelLogger(log.With(logger.Component("bus"))))
		eg.Go(bus.Run(ctx))
		return bus, bus.Healthcheck, nil

	case "kafka":
		bus, err := kafka.New(cfg.Kafka, kafka.WithLogger(log.With(logger.Component("kafka"))))
		if err != nil {
			return nil, nil, err
		}
		eg.Go(bus.Run(ctx))
		eg.Go(func() error {
			<-ctx.Done()
			if err := bus.Close(); err != nil && !errors.Is(err, kafka.ErrBusClosed) {
				return err
			}
			return nil
		})
		return bus, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown bus %q", cfg.Bus)
	}
}

// deploy creates the oracle and the arbiter bound to it, then hands the oracle to the
// node, which authorizes itself as fulfiller.
func deploy(ctx context.Context, cfg Config, l *ledger.Ledger, registry broker.Registry, log *slog.Logger) (*broker.Broker, *requester.Arbiter, error) {
	oracle, err := broker.New(l, cfg.Oracle, cfg.Owner,
		broker.WithRegistry(registry),
		broker.WithLogger(log.With(logger.Component("broker"))),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to deploy oracle: %w", err)
	}

	arbiter, err := requester.New(l, cfg.Arbiter, cfg.Owner, oracle,
		requester.WithLogger(log.With(logger.Component("arbiter"))),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to deploy arbiter: %w", err)
	}
	if err := oracle.Attach(arbiter.Address(), arbiter); err != nil {
		return nil, nil, err
	}

	if err := oracle.TransferOwnership(ctx, cfg.Owner, cfg.Node); err != nil {
		return nil, nil, fmt.Errorf("failed to hand oracle to node: %w", err)
	}
	if err := oracle.SetAuthorization(ctx, cfg.Node, cfg.Node, true); err != nil {
		return nil, nil, fmt.Errorf("failed to authorize node: %w", err)
	}

	return oracle, arbiter, nil
}

func newNode(cfg Config, oracle *broker.Broker, log *slog.Logger) (*fulfiller.Node, error) {
	jobs := fulfiller.Jobs{
		string(requester.SlotValue):   fulfiller.StaticValue{Value: big.NewInt(50000)},
		string(requester.SlotReceipt): fulfiller.StaticText{Text: "Transaction complete."},
	}
	if cfg.JobsFile != "" {
		loaded, err := fulfiller.LoadJobs(cfg.JobsFile)
		if err != nil {
			return nil, err
		}
		jobs = loaded
	}

	return fulfiller.NewNode(cfg.Node, oracle,
		fulfiller.WithJobs(jobs),
		fulfiller.WithHandlerTimeout(cfg.HandlerTimeout),
		fulfiller.WithLogger(log.With(logger.Component("node"))),
	)
}

func demo(ctx context.Context, cfg Config, arbiter *requester.Arbiter, log *slog.Logger) error {
	id, err := arbiter.Initiate(ctx, cfg.Owner)
	if err != nil {
		return fmt.Errorf("failed to initiate request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DemoTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request chain %s did not complete: %w", id, ctx.Err())
		case <-ticker.C:
			if state, _ := arbiter.Slot(requester.SlotReceipt); state != requester.Fulfilled {
				continue
			}
			log.InfoContext(ctx, "request chain completed",
				logger.RequestID(id.String()),
				slog.String("amount", arbiter.Amount().String()),
				slog.String("receipt", string(arbiter.Receipt())))
			return nil
		}
	}
}
