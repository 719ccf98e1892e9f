// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构。
// 来源优先级: 默认值 < 本地 YAML < Nacos 配置中心 < 环境变量。
type Config struct {
	App struct {
		// AutoCreateUnknown 控制预占未知商品时的策略:
		// true 时从商品服务拉取初始库存自动建档, false 时直接拒绝。
		AutoCreateUnknown bool   `yaml:"autoCreateUnknown"`
		DefaultWarehouse  string `yaml:"defaultWarehouse"`
		// Locker 选择商品级互斥的实现: memory | zookeeper
		Locker     string `yaml:"locker"`
		AlertRules struct {
			LowStock string `yaml:"lowStock"`
			Reorder  string `yaml:"reorder"`
		} `yaml:"alertRules"`
	} `yaml:"app"`

	Infra struct {
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers          []string `yaml:"brokers"`
			StockEventsTopic string   `yaml:"stockEventsTopic"`
		} `yaml:"kafka"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
	} `yaml:"infra"`

	Reaper struct {
		Interval        time.Duration `yaml:"interval"`
		PaymentDeadline time.Duration `yaml:"paymentDeadline"`
		Concurrency     int           `yaml:"concurrency"`
	} `yaml:"reaper"`

	// Services 是下游协作方在 Nacos 中的服务名。
	Services struct {
		Order   string `yaml:"order"`
		Product string `yaml:"product"`
	} `yaml:"services"`
}

var (
	currentConfig     atomic.Pointer[Config]
	nacosConfigClient config_client.IConfigClient
)

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.AutoCreateUnknown = true
	cfg.App.DefaultWarehouse = "Main Warehouse"
	cfg.App.Locker = "memory"
	cfg.Infra.Mysql.DSN = "root:root@tcp(localhost:3306)/stockpile?charset=utf8mb4&parseTime=True&loc=Local"
	cfg.Infra.Redis.Addr = "localhost:6379"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Kafka.StockEventsTopic = "stock-events-topic"
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Zookeeper.Servers = []string{"localhost:2181"}
	cfg.Reaper.Interval = 10 * time.Minute
	cfg.Reaper.PaymentDeadline = 30 * time.Minute
	cfg.Reaper.Concurrency = 8
	cfg.Services.Order = "order-service"
	cfg.Services.Product = "product-service"
	return cfg
}

// Init 加载配置。应在每个服务 main 的最开始调用。
func Init() {
	cfg := defaultConfig()

	// 1. 本地 YAML（文件不存在时静默使用默认值，方便本地开发）
	path := getEnv("CONFIG_FILE", "configs/config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("FATAL: invalid config file %s: %v", path, err)
		}
	}

	// 2. Nacos 配置中心（可选，设置了 dataId 才启用）
	if dataID := os.Getenv("NACOS_CONFIG_DATA_ID"); dataID != "" {
		loadFromNacos(cfg, dataID)
	}

	// 3. 环境变量兜底，容器部署时最常用
	applyEnvOverrides(cfg)

	currentConfig.Store(cfg)
}

// GetCurrentConfig 返回当前生效的配置快照。
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	// 未调用 Init 时（如单元测试）退化为默认值
	cfg := defaultConfig()
	currentConfig.Store(cfg)
	return cfg
}

func loadFromNacos(cfg *Config, dataID string) {
	serverConfigs, err := parseNacosServers(getEnv("NACOS_SERVER_ADDRS", "localhost:8848"))
	if err != nil {
		log.Fatalf("FATAL: invalid nacos server address: %v", err)
	}
	clientConfig := *constant.NewClientConfig(
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir("/tmp/nacos/log"),
		constant.WithCacheDir("/tmp/nacos/cache"),
		constant.WithLogLevel("warn"),
		constant.WithNamespaceId(os.Getenv("NACOS_NAMESPACE")),
	)

	nacosConfigClient, err = clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		log.Fatalf("FATAL: failed to create nacos config client: %v", err)
	}

	group := getEnv("NACOS_GROUP", "DEFAULT_GROUP")
	content, err := nacosConfigClient.GetConfig(vo.ConfigParam{DataId: dataID, Group: group})
	if err != nil {
		log.Printf("WARNING: failed to fetch config from nacos (dataId=%s): %v", dataID, err)
		return
	}
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		log.Printf("WARNING: invalid config content from nacos (dataId=%s): %v", dataID, err)
		return
	}

	// 监听配置变更，热更新全局快照
	_ = nacosConfigClient.ListenConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  group,
		OnChange: func(namespace, group, dataId, data string) {
			next := *GetCurrentConfig()
			if err := yaml.Unmarshal([]byte(data), &next); err != nil {
				log.Printf("WARNING: ignoring invalid config update from nacos: %v", err)
				return
			}
			applyEnvOverrides(&next)
			currentConfig.Store(&next)
			log.Printf("Config reloaded from nacos (dataId=%s)", dataId)
		},
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.Infra.Mysql.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Infra.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v := os.Getenv("ZK_SERVERS"); v != "" {
		cfg.Infra.Zookeeper.Servers = strings.Split(v, ",")
	}
	if v := os.Getenv("PRODUCT_LOCKER"); v != "" {
		cfg.App.Locker = v
	}
}
