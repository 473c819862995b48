// cmd/inventory-worker/main.go
package main

import (
	"context"
	"os"

	"bazaar/internal/events"
	"bazaar/internal/pkg/bootstrap"
	"bazaar/internal/pkg/config"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/pkg/mysql"
	"bazaar/internal/pkg/redis"
	invapp "bazaar/internal/service/inventory/application"
	invinfra "bazaar/internal/service/inventory/infrastructure"
	invconsumer "bazaar/internal/service/inventory/interfaces"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const serviceName = "inventory-worker"

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := mysql.Open(cfg.Infra.Mysql.DSN)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to mysql")
	}

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	dlqTopic := events.DeadLetterTopic(cfg.Consumer.GroupID)

	reader := mq.NewReader(cfg.Infra.Kafka.Brokers, cfg.Consumer.GroupID, events.OrderEventsExchange)
	dlqWriter := mq.NewWriter(cfg.Infra.Kafka.Brokers, dlqTopic)
	dlqReader := mq.NewReader(cfg.Infra.Kafka.Brokers, cfg.Consumer.GroupID+".dlt", dlqTopic)

	inventoryService := invapp.NewInventoryApplicationService(
		invinfra.NewGormInventoryRepository(db),
		invinfra.NewGormHistoryRepository(db),
		invinfra.NewGormTxRunner(db),
		otel.Tracer(serviceName),
	)

	consumer := invconsumer.NewConsumer(
		reader,
		dlqWriter,
		inventoryService,
		invinfra.NewGormDedupStore(db),
		invinfra.NewRedisDedupCache(redisClient, cfg.Consumer.DedupTTL),
		invinfra.NewGormTxRunner(db),
		invconsumer.ConsumerConfig{
			MaxAttempts: cfg.Consumer.MaxAttempts,
			Backoff:     cfg.Consumer.RetryBackoff,
		},
	)
	dltConsumer := invconsumer.NewDLTConsumer(dlqReader)

	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return consumer.Run(groupCtx) })
	group.Go(func() error { return dltConsumer.Run(groupCtx) })

	go func() {
		if err := group.Wait(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("🚨 consumer group terminated")
		}
	}()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		Config:      cfg,
		OnShutdown: []func(ctx context.Context){
			func(ctx context.Context) {
				cancel()
				group.Wait()
				reader.Close()
				dlqReader.Close()
				dlqWriter.Close()
				redisClient.Close()
				if sqlDB, err := db.DB(); err == nil {
					sqlDB.Close()
				}
			},
		},
	})
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}
