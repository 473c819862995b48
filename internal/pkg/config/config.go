// internal/pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 汇总了所有进程共享的基础设施配置。
// 读取顺序：yaml 文件 -> 环境变量覆盖 -> 默认值。
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Port int    `yaml:"port"`
	} `yaml:"app"`

	Infra struct {
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
		} `yaml:"kafka"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Nacos struct {
			ServerAddrs string `yaml:"serverAddrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`
	} `yaml:"infra"`

	Services struct {
		CartBaseURL string `yaml:"cartBaseURL"`
	} `yaml:"services"`

	Outbox struct {
		PollInterval time.Duration `yaml:"pollInterval"`
		MaxRetries   int           `yaml:"maxRetries"`
		BatchLimit   int           `yaml:"batchLimit"`
	} `yaml:"outbox"`

	Consumer struct {
		GroupID      string        `yaml:"groupId"`
		MaxAttempts  int           `yaml:"maxAttempts"`
		RetryBackoff time.Duration `yaml:"retryBackoff"`
		DedupTTL     time.Duration `yaml:"dedupTTL"`
	} `yaml:"consumer"`
}

// Load 从 path 读取配置文件；文件不存在时退化为环境变量 + 默认值。
func Load(path string) (*Config, error) {
	cfg := defaults()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Port = 8080
	cfg.Infra.Mysql.DSN = "root:root@tcp(localhost:3306)/bazaar?charset=utf8mb4&parseTime=True&loc=Local"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Redis.Addr = "localhost:6379"
	cfg.Infra.Zookeeper.Servers = []string{"localhost:2181"}
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Nacos.ServerAddrs = "localhost:8848"
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"
	cfg.Services.CartBaseURL = "http://localhost:8081"
	cfg.Outbox.PollInterval = 5 * time.Second
	cfg.Outbox.MaxRetries = 3
	cfg.Outbox.BatchLimit = 100
	cfg.Consumer.GroupID = "inventory-worker"
	cfg.Consumer.MaxAttempts = 3
	cfg.Consumer.RetryBackoff = 2 * time.Second
	cfg.Consumer.DedupTTL = 24 * time.Hour
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	cfg.Infra.Mysql.DSN = getEnv("MYSQL_DSN", cfg.Infra.Mysql.DSN)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Infra.Kafka.Brokers = splitComma(v)
	}
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
	if v := os.Getenv("ZOOKEEPER_SERVERS"); v != "" {
		cfg.Infra.Zookeeper.Servers = splitComma(v)
	}
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Services.CartBaseURL = getEnv("CART_SERVICE_URL", cfg.Services.CartBaseURL)
	if v := os.Getenv("APP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = port
		}
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// splitComma 切分逗号分隔的地址列表，丢弃空段。
func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
