package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"nexus-commerce/internal/pkg/database"
	"nexus-commerce/internal/pkg/nacos"
	"nexus-commerce/internal/pkg/redis"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是三个服务共用的配置结构，各服务只读取自己关心的部分。
type Config struct {
	App       AppConfig         `yaml:"app"`
	Infra     InfraConfig       `yaml:"infra"`
	Auth      AuthConfig        `yaml:"auth"`
	Services  map[string]string `yaml:"services"` // 服务名 -> 静态地址，Nacos 不可用时兜底
	Inventory InventoryConfig   `yaml:"inventory"`
	Gateway   GatewayConfig     `yaml:"gateway"`
	Consumer  ConsumerConfig    `yaml:"consumer"`
	Mail      MailConfig        `yaml:"mail"`
}

type AppConfig struct {
	Port      int    `yaml:"port"`
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

type InfraConfig struct {
	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
	} `yaml:"kafka"`
	Database database.Config `yaml:"database"`
	Redis    redis.Config    `yaml:"redis"`
	Nacos    nacos.Config    `yaml:"nacos"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type InventoryConfig struct {
	Backend string `yaml:"backend"` // mysql | redis
}

type GatewayConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerOpenFor  time.Duration `yaml:"breaker_open_for"`
	PublishTimeout  time.Duration `yaml:"publish_timeout"`
}

type ConsumerConfig struct {
	GroupID     string        `yaml:"group_id"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

type MailConfig struct {
	From string `yaml:"from"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.LogLevel = "info"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Database.Driver = database.DriverMySQL
	cfg.Infra.Redis.Addrs = []string{"localhost:6379"}
	cfg.Infra.Nacos.ServerAddrs = "localhost:8848"
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"
	cfg.Auth.JWTSecret = "change-me"
	cfg.Inventory.Backend = "mysql"
	cfg.Gateway = GatewayConfig{
		Timeout:         3 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    100 * time.Millisecond,
		BreakerFailures: 5,
		BreakerOpenFor:  30 * time.Second,
		PublishTimeout:  5 * time.Second,
	}
	cfg.Consumer = ConsumerConfig{
		MaxAttempts: 5,
		Backoff:     500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
	}
	cfg.Mail.From = "noreply@nexus-commerce.local"
	cfg.Services = map[string]string{}
	return cfg
}

var current atomic.Pointer[Config]

// Load 读取 YAML 配置并叠加环境变量。文件不存在时使用默认值。
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	applyEnv(cfg)
	if cfg.Services == nil {
		cfg.Services = map[string]string{}
	}
	current.Store(cfg)
	return cfg, nil
}

// Init 按 CONFIG_FILE 或 configs/<service>.yaml 加载配置。
func Init(serviceName string) (*Config, error) {
	return Load(getEnv("CONFIG_FILE", "configs/"+serviceName+".yaml"))
}

// GetCurrentConfig 返回最近一次加载的配置。
func GetCurrentConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return defaultConfig()
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = p
		}
	}
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	setString(&cfg.Infra.Jaeger.Endpoint, "JAEGER_ENDPOINT")
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok && v != "" {
		cfg.Infra.Kafka.Brokers = splitList(v)
	}
	setString(&cfg.Infra.Database.Driver, "DB_DRIVER")
	setString(&cfg.Infra.Database.DSN, "MYSQL_DSN")
	if v, ok := os.LookupEnv("REDIS_ADDRS"); ok && v != "" {
		cfg.Infra.Redis.Addrs = splitList(v)
	}
	setString(&cfg.Infra.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Infra.Nacos.ServerAddrs, "NACOS_SERVER_ADDRS")
	setString(&cfg.Infra.Nacos.Namespace, "NACOS_NAMESPACE")
	setString(&cfg.Infra.Nacos.Group, "NACOS_GROUP")
	if v, ok := os.LookupEnv("NACOS_ENABLED"); ok {
		cfg.Infra.Nacos.Enabled, _ = strconv.ParseBool(v)
	}
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Inventory.Backend, "INVENTORY_BACKEND")
	setString(&cfg.Mail.From, "MAIL_FROM")
	if v, ok := os.LookupEnv("INVENTORY_SERVICE_URL"); ok && v != "" {
		if cfg.Services == nil {
			cfg.Services = map[string]string{}
		}
		cfg.Services["inventory-service"] = v
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
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

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
