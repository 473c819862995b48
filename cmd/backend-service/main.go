// cmd/backend-service/main.go
package main

import (
	"context"
	"os"

	"bazaar/internal/outbox"
	"bazaar/internal/pkg/bootstrap"
	"bazaar/internal/pkg/config"
	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mysql"
	invapp "bazaar/internal/service/inventory/application"
	invinfra "bazaar/internal/service/inventory/infrastructure"
	invhttp "bazaar/internal/service/inventory/interfaces"
	orderapp "bazaar/internal/service/order/application"
	orderinfra "bazaar/internal/service/order/infrastructure"
	"bazaar/internal/service/order/infrastructure/adapter"
	orderhttp "bazaar/internal/service/order/interfaces"

	"go.opentelemetry.io/otel"
)

const serviceName = "backend-service"

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := mysql.Open(cfg.Infra.Mysql.DSN)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to mysql")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			tracer := otel.Tracer(serviceName)
			txRunner := invinfra.NewGormTxRunner(db)

			// 库存：管理与查询接口。预留引擎本身由事件流驱动（见 inventory-worker）。
			inventoryService := invapp.NewInventoryApplicationService(
				invinfra.NewGormInventoryRepository(db),
				invinfra.NewGormHistoryRepository(db),
				txRunner,
				tracer,
			)
			invhttp.NewInventoryHandler(inventoryService).RegisterRoutes(appCtx.Mux)

			// 订单：写用例在同一事务内落订单行和 outbox 事件行
			httpClient := httpclient.NewClient(tracer)
			orderService := orderapp.NewOrderApplicationService(
				orderinfra.NewGormOrderRepository(db),
				adapter.NewCartHTTPAdapter(httpClient, cfg.Services.CartBaseURL),
				adapter.NewInventoryLocalAdapter(inventoryService),
				outbox.NewPublisher(cfg.Outbox.MaxRetries),
				txRunner,
				tracer,
			)
			orderhttp.NewOrderHandler(orderService).RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: []func(ctx context.Context){
			func(ctx context.Context) {
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
