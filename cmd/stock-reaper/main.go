// cmd/stock-reaper/main.go
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"stockpile/internal/pkg/bootstrap"
	"stockpile/internal/pkg/httpclient"
	"stockpile/internal/pkg/redis"
	"stockpile/internal/pkg/zookeeper"
	"stockpile/internal/service/inventory/application"
	"stockpile/internal/service/inventory/infrastructure"
	"stockpile/internal/service/inventory/infrastructure/adapter"
	"stockpile/internal/service/inventory/port"
)

const serviceName = "stock-reaper"

// 超时清扫器独立部署: 它和库存服务共享台账与预占表，
// 但生命周期、发布节奏与资源配额互不干扰。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	db, err := infrastructure.NewMysqlDB(cfg.Infra.Mysql.DSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	ledgerRepo := infrastructure.NewGormLedgerRepository(db)
	reservationRepo := infrastructure.NewGormReservationRepository(db)

	redisClient := redis.NewClient(cfg.Infra.Redis.Addr)
	defer redisClient.Close()
	stockCache, err := adapter.NewStockCacheRedisAdapter(redisClient)
	if err != nil {
		log.Fatalf("failed to init stock cache: %v", err)
	}

	publisher := adapter.NewStockEventKafkaAdapter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.StockEventsTopic)
	defer publisher.Close()

	// 多副本的库存服务在跑时，清扫器必须与它们共用 ZooKeeper 锁
	var locker port.ProductLocker = adapter.NewKeyedMutexLocker()
	if cfg.App.Locker == "zookeeper" {
		zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers)
		if err != nil {
			log.Fatalf("failed to connect zookeeper: %v", err)
		}
		defer zkConn.Close()
		locker = adapter.NewZkProductLocker(zkConn)
	}

	reaperCtx, stopReaper := context.WithCancel(context.Background())

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8086,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())

			tracer := otel.Tracer(serviceName)
			httpClient := httpclient.NewClient(tracer, appCtx.Nacos)
			orders := adapter.NewOrderHTTPAdapter(httpClient, cfg.Services.Order)

			service := application.NewInventoryApplicationService(
				ledgerRepo, reservationRepo, locker,
				stockCache, nil, publisher, nil, tracer,
				false, cfg.App.DefaultWarehouse,
			)
			reaper := application.NewTimeoutReaper(
				service, orders, tracer,
				cfg.Reaper.Interval, cfg.Reaper.PaymentDeadline, cfg.Reaper.Concurrency,
			)
			go reaper.Run(reaperCtx)
		},
		OnShutdown: func(ctx context.Context) {
			stopReaper()
		},
	})
}
