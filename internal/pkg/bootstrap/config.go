// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是两个服务共用的配置结构，各服务只读取自己关心的部分。
type Config struct {
	App       AppConfig       `yaml:"app"`
	Infra     InfraConfig     `yaml:"infra"`
	Inventory InventoryConfig `yaml:"inventory"`
	Order     OrderConfig     `yaml:"order"`
	Lock      LockConfig      `yaml:"lock"`
}

type AppConfig struct {
	Name            string        `yaml:"name"`
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SeedSampleData  bool          `yaml:"seed_sample_data"`
}

type InfraConfig struct {
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// MySQLConfig 为空 Addr 时表示不启用 MySQL，服务退回到内存仓储。
type MySQLConfig struct {
	Addr            string        `yaml:"addr"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"db_name"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

func (c MySQLConfig) Enabled() bool { return c.Addr != "" }

type RedisConfig struct {
	Addrs    []string      `yaml:"addrs"`
	Password string        `yaml:"password"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

func (c RedisConfig) Enabled() bool { return len(c.Addrs) > 0 }

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	OrderEventsTopic   string   `yaml:"order_events_topic"`
	InconsistencyTopic string   `yaml:"inconsistency_topic"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type NacosConfig struct {
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

func (c NacosConfig) Enabled() bool { return c.ServerAddrs != "" }

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// InventoryConfig 是 order-service 访问库存服务的配置。
type InventoryConfig struct {
	BaseURL        string        `yaml:"base_url"`
	ServiceName    string        `yaml:"service_name"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type OrderConfig struct {
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
	AdmissionRule     string        `yaml:"admission_rule"`
}

// LockConfig 决定库存扣减使用的互斥实现：local（进程内）或 zookeeper（多副本）。
type LockConfig struct {
	Backend     string        `yaml:"backend"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

const (
	LockBackendLocal     = "local"
	LockBackendZookeeper = "zookeeper"
)

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回最近一次 Load 的配置。
func GetCurrentConfig() *Config {
	if c := currentConfig.Load(); c != nil {
		return c
	}
	c := defaultConfig()
	return &c
}

// Load 读取 YAML 配置文件并叠加环境变量覆盖。path 为空时只使用默认值 + 环境变量。
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig.Store(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		App: AppConfig{
			Port:            8080,
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
		},
		Infra: InfraConfig{
			Redis: RedisConfig{CacheTTL: 30 * time.Second},
			Kafka: KafkaConfig{
				OrderEventsTopic:   "order-events",
				InconsistencyTopic: "order-reservation-inconsistencies",
			},
			Nacos:     NacosConfig{Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{SessionTimeout: 5 * time.Second},
		},
		Inventory: InventoryConfig{
			ServiceName:    "inventory-service",
			RequestTimeout: 3 * time.Second,
		},
		Order: OrderConfig{
			ProcessingTimeout: 10 * time.Second,
			AdmissionRule:     "quantity <= 100",
		},
		Lock: LockConfig{
			Backend:     LockBackendLocal,
			WaitTimeout: 30 * time.Second,
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v, ok := os.LookupEnv("HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_PORT %q: %w", v, err)
		}
		cfg.App.Port = port
	}
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)

	cfg.Infra.MySQL.Addr = getEnv("MYSQL_ADDR", cfg.Infra.MySQL.Addr)
	cfg.Infra.MySQL.User = getEnv("MYSQL_USER", cfg.Infra.MySQL.User)
	cfg.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.Infra.MySQL.Password)
	cfg.Infra.MySQL.DBName = getEnv("MYSQL_DB", cfg.Infra.MySQL.DBName)

	if v, ok := os.LookupEnv("REDIS_ADDRS"); ok {
		cfg.Infra.Redis.Addrs = splitList(v)
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Infra.Kafka.Brokers = splitList(v)
	}
	if v, ok := os.LookupEnv("ZOOKEEPER_SERVERS"); ok {
		cfg.Infra.Zookeeper.Servers = splitList(v)
	}
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)

	cfg.Inventory.BaseURL = getEnv("INVENTORY_BASE_URL", cfg.Inventory.BaseURL)
	cfg.Lock.Backend = getEnv("LOCK_BACKEND", cfg.Lock.Backend)
	return nil
}

// Validate 检查互相依赖的配置项。
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port out of range: %d", c.App.Port)
	}
	switch c.Lock.Backend {
	case LockBackendLocal:
	case LockBackendZookeeper:
		if len(c.Infra.Zookeeper.Servers) == 0 {
			return fmt.Errorf("lock.backend=zookeeper requires infra.zookeeper.servers")
		}
	default:
		return fmt.Errorf("unknown lock.backend %q", c.Lock.Backend)
	}
	if c.Inventory.RequestTimeout <= 0 {
		return fmt.Errorf("inventory.request_timeout must be positive")
	}
	if c.Order.ProcessingTimeout <= 0 {
		return fmt.Errorf("order.processing_timeout must be positive")
	}
	return nil
}

// getEnv 从环境变量中读取配置，不存在时返回 fallback。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
