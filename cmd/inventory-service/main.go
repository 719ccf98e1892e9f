// cmd/inventory-service/main.go
package main

import (
	"log"

	"go.opentelemetry.io/otel"

	"stockpile/internal/pkg/bootstrap"
	"stockpile/internal/pkg/httpclient"
	"stockpile/internal/pkg/redis"
	"stockpile/internal/pkg/zookeeper"
	"stockpile/internal/service/inventory/application"
	"stockpile/internal/service/inventory/infrastructure"
	"stockpile/internal/service/inventory/infrastructure/adapter"
	"stockpile/internal/service/inventory/infrastructure/rule"
	"stockpile/internal/service/inventory/interfaces"
	"stockpile/internal/service/inventory/port"
)

const serviceName = "inventory-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	// 持久化
	db, err := infrastructure.NewMysqlDB(cfg.Infra.Mysql.DSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	ledgerRepo := infrastructure.NewGormLedgerRepository(db)
	reservationRepo := infrastructure.NewGormReservationRepository(db)

	// 缓存
	redisClient := redis.NewClient(cfg.Infra.Redis.Addr)
	defer redisClient.Close()
	stockCache, err := adapter.NewStockCacheRedisAdapter(redisClient)
	if err != nil {
		log.Fatalf("failed to init stock cache: %v", err)
	}

	// 事件发布
	publisher := adapter.NewStockEventKafkaAdapter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.StockEventsTopic)
	defer publisher.Close()

	// 商品级互斥: 单实例用进程内锁，多副本切到 ZooKeeper
	var locker port.ProductLocker = adapter.NewKeyedMutexLocker()
	if cfg.App.Locker == "zookeeper" {
		zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers)
		if err != nil {
			log.Fatalf("failed to connect zookeeper: %v", err)
		}
		defer zkConn.Close()
		locker = adapter.NewZkProductLocker(zkConn)
	}

	// 告警规则
	lowStockRule := cfg.App.AlertRules.LowStock
	if lowStockRule == "" {
		lowStockRule = rule.DefaultLowStockRule
	}
	reorderRule := cfg.App.AlertRules.Reorder
	if reorderRule == "" {
		reorderRule = rule.DefaultReorderRule
	}
	advisor, err := rule.NewCELAdvisor(lowStockRule, reorderRule)
	if err != nil {
		log.Fatalf("failed to compile alert rules: %v", err)
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8085,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			tracer := otel.Tracer(serviceName)
			httpClient := httpclient.NewClient(tracer, appCtx.Nacos)
			catalog := adapter.NewCatalogHTTPAdapter(httpClient, cfg.Services.Product)

			service := application.NewInventoryApplicationService(
				ledgerRepo, reservationRepo, locker,
				stockCache, catalog, publisher, advisor, tracer,
				cfg.App.AutoCreateUnknown, cfg.App.DefaultWarehouse,
			)
			interfaces.NewInventoryHandler(service).RegisterRoutes(appCtx.Mux)
		},
	})
}
