// cmd/outbox-relay/main.go
package main

import (
	"context"
	"os"
	"time"

	"bazaar/internal/events"
	"bazaar/internal/outbox"
	"bazaar/internal/pkg/bootstrap"
	"bazaar/internal/pkg/config"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/pkg/mysql"
	"bazaar/internal/zookeeper"

	"github.com/segmentio/kafka-go"
)

const serviceName = "outbox-relay"

// relayLeaderLock 是 zookeeper 上的主节点锁资源名。
// 多实例部署时只有持锁实例轮询 outbox，避免重复投递。
const relayLeaderLock = "outbox-relay"

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := mysql.Open(cfg.Infra.Mysql.DSN)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to mysql")
	}

	writers := map[string]*kafka.Writer{
		events.OrderEventsExchange: mq.NewWriter(cfg.Infra.Kafka.Brokers, events.OrderEventsExchange),
		events.UserEventsExchange:  mq.NewWriter(cfg.Infra.Kafka.Brokers, events.UserEventsExchange),
		events.CartEventsExchange:  mq.NewWriter(cfg.Infra.Kafka.Brokers, events.CartEventsExchange),
	}

	zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to zookeeper")
	}

	relay := outbox.NewRelay(
		outbox.NewGormStore(db),
		outbox.NewKafkaSender(writers),
		cfg.Outbox.PollInterval,
		cfg.Outbox.BatchLimit,
	)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		// 主节点选举：拿不到锁就一直等，拿到后开始轮询。
		// 会话断开时临时节点消失，另一实例接管。
		lock, err := zookeeper.NewDistributedLock(zkConn, relayLeaderLock, 24*time.Hour)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to create leader lock")
		}
		if err := lock.Lock(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to acquire leader lock")
		}
		logger.Logger.Info().Msg("✅ leader lock acquired, this instance is the active relay")
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Logger.Error().Err(err).Msg("failed to release leader lock")
			}
		}()

		relay.Run(runCtx)
	}()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		Config:      cfg,
		OnShutdown: []func(ctx context.Context){
			func(ctx context.Context) {
				cancel()
				select {
				case <-done:
				case <-ctx.Done():
				}
				for _, w := range writers {
					w.Close()
				}
				zkConn.Close()
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
