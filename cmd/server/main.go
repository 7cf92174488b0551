// Command server wires every tier of the currency service together:
// the edge HTTP surface, the correlator (C3), the bounded worker pool
// (C2), the freshness-aware ledger (C4), the dedup ledger and its
// sweeper (C5), and the upstream rates client. Grounded on the
// teacher's own composition root conventions (pkg/config.Load,
// pkg/logger.Init, adapter constructors returning an interface plus an
// error) since the teacher's service templates ship only a go.mod.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	appconfig "github.com/EvgeniOk14/CurrencyServiceProject/internal/config"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/correlator"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/dedup"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/edge"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/ledger"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/upstream"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/workerpool"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/cache"
	cacheredis "github.com/EvgeniOk14/CurrencyServiceProject/pkg/cache/adapters/redis"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/database"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/document"
	docmongo "github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/document/adapters/mongodb"
	sqlpkg "github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/sql"
	sqlmysql "github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/sql/adapters/mysql"
	sqlpostgres "github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/sql/adapters/postgres"
	sqlsqlite "github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/sql/adapters/sqlite"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/logger"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging"
	kafkabroker "github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging/adapters/kafka"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/resilience"
)

func main() {
	if err := run(); err != nil {
		logger.L().Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := openSQL(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open relational store: %w", err)
	}
	defer sqlDB.Close()

	accel, err := cacheredis.New(cache.Config{
		Driver: "redis",
		Host:   cfg.Cache.RedisHost,
		Port:   cfg.Cache.RedisPort,
		DB:     cfg.Cache.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to cache accelerator: %w", err)
	}
	defer accel.Close()

	docStore, err := docmongo.New(document.Config{
		Driver:   database.DriverMongoDB,
		Host:     cfg.Dedup.MongoHost,
		Port:     cfg.Dedup.MongoPort,
		User:     cfg.Dedup.MongoUser,
		Password: cfg.Dedup.MongoPassword,
		Database: cfg.Dedup.MongoDatabase,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to dedup document store: %w", err)
	}
	defer docStore.Close()

	broker, err := kafkabroker.New(kafkabroker.Config{
		Brokers:               cfg.Bus.Brokers,
		TransactionalIDPrefix: cfg.Bus.TransactionalIDPrefix,
		EnableIdempotence:     cfg.Bus.EnableIdempotence,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer broker.Close()

	store := ledger.New(sqlDB, accel, time.Duration(cfg.Cache.FreshnessSec)*time.Second)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}

	dedupLedger := dedup.New(docStore, time.Duration(cfg.Dedup.TTLDays)*24*time.Hour)
	if err := dedupLedger.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure dedup ledger indexes: %w", err)
	}
	sweeper := dedup.NewSweeper(dedupLedger, cfg.Dedup.HardPurgeDays)

	upstreamClient := upstream.New(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		APIKey:  cfg.Upstream.APIKey,
		Timeout: 10 * time.Second,
	}, resilience.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.Backoff(),
		MaxBackoff:     cfg.Retry.Cap(),
		Multiplier:     cfg.Retry.Multiplier,
	})

	pool := workerpool.New(cfg.Pool)
	pool.Start(ctx)

	requestProducer, err := broker.Producer(correlator.TopicRequest)
	if err != nil {
		return fmt.Errorf("failed to create request producer: %w", err)
	}
	fetchProducer, err := broker.Producer(ledger.TopicFetch)
	if err != nil {
		return fmt.Errorf("failed to create fetch producer: %w", err)
	}
	responseProducer, err := broker.Producer(correlator.TopicResponse)
	if err != nil {
		return fmt.Errorf("failed to create response producer: %w", err)
	}
	dltProducer, err := broker.Producer(messaging.TopicDeadLetter)
	if err != nil {
		return fmt.Errorf("failed to create dead-letter producer: %w", err)
	}

	requestConsumer, err := broker.Consumer(correlator.TopicRequest, cfg.Bus.GroupID+"-cache-request")
	if err != nil {
		return fmt.Errorf("failed to create request consumer: %w", err)
	}
	fetchConsumer, err := broker.Consumer(ledger.TopicFetch, cfg.Bus.GroupID+"-cache-fetch")
	if err != nil {
		return fmt.Errorf("failed to create fetch consumer: %w", err)
	}
	responseConsumer, err := broker.Consumer(correlator.TopicResponse, cfg.Bus.GroupID+"-edge-response")
	if err != nil {
		return fmt.Errorf("failed to create response consumer: %w", err)
	}

	corr := correlator.New(requestProducer, pool)
	requestHandler := ledger.NewRequestSideHandler(store, dedupLedger, fetchProducer, responseProducer, dltProducer)
	fetchHandler := ledger.NewFetchSideHandler(store, upstreamClient, responseProducer, dltProducer)

	server := edge.New(corr, time.Duration(cfg.Edge.RequestTimeoutSec)*time.Second)

	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dedup sweeper: %w", err)
	}
	defer sweeper.Stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return corr.ListenResponses(groupCtx, responseConsumer) })
	group.Go(func() error { return requestConsumer.Consume(groupCtx, requestHandler.Handle) })
	group.Go(func() error { return fetchConsumer.Consume(groupCtx, fetchHandler.Handle) })
	group.Go(func() error { return server.Start(groupCtx, cfg.Edge.HTTPAddr) })

	logger.L().Info("currency service started", "addr", cfg.Edge.HTTPAddr)

	if err := group.Wait(); err != nil {
		logger.L().Error("service stopped with error", "error", err)
	}

	if !pool.Shutdown() {
		logger.L().Warn("worker pool did not drain cleanly within its timeout")
	}
	return nil
}

// openSQL selects the relational adapter named by cfg.Driver.
func openSQL(cfg appconfig.DatabaseConfig) (sqlpkg.SQL, error) {
	driverCfg := sqlpkg.Config{
		Driver:          cfg.Driver,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Name:            cfg.Name,
		SSLMode:         cfg.SSLMode,
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
	switch cfg.Driver {
	case database.DriverMySQL:
		return sqlmysql.New(driverCfg)
	case database.DriverSQLite:
		return sqlsqlite.New(driverCfg)
	default:
		driverCfg.Driver = database.DriverPostgres
		return sqlpostgres.New(driverCfg)
	}
}
