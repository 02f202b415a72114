package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	CartBackendRedis = "redis"
	CartBackendStore = "store"
)

type Config struct {
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	StoreBackend string `mapstructure:"STORE_BACKEND"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`

	CartBackend   string `mapstructure:"CART_BACKEND"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID string   `mapstructure:"KAFKA_GROUP_ID"`

	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`

	CheckoutStepTimeout time.Duration `mapstructure:"CHECKOUT_STEP_TIMEOUT"`
	LedgerMaxRetries    int           `mapstructure:"LEDGER_MAX_RETRIES"`

	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	SMTPHost          string `mapstructure:"SMTP_HOST"`
	SMTPPort          string `mapstructure:"SMTP_PORT"`
	SMTPFrom          string `mapstructure:"SMTP_FROM"`
	LowStockThreshold int    `mapstructure:"LOW_STOCK_THRESHOLD"`
}

var defaults = map[string]any{
	"HTTP_ADDR":             ":8080",
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "json",
	"STORE_BACKEND":         BackendMemory,
	"DATABASE_URL":          "",
	"CART_BACKEND":          CartBackendStore,
	"REDIS_ADDR":            "localhost:6379",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"KAFKA_BROKERS":         "",
	"KAFKA_TOPIC":           "storefront-events",
	"KAFKA_GROUP_ID":        "storefront-notifier",
	"JWT_SECRET":            "",
	"ACCESS_TOKEN_TTL":      "15m",
	"CHECKOUT_STEP_TIMEOUT": "5s",
	"LEDGER_MAX_RETRIES":    5,
	"ADMIN_EMAIL":           "",
	"ADMIN_PASSWORD":        "",
	"SMTP_HOST":             "localhost",
	"SMTP_PORT":             "1025",
	"SMTP_FROM":             "noreply@example.com",
	"LOW_STOCK_THRESHOLD":   5,
}

// Load reads configuration from the environment, layered over an optional
// file named by CONFIG_FILE (.env, yaml or json).
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	return cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters long"))
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.CartBackend {
	case CartBackendStore, CartBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown CART_BACKEND %q", c.CartBackend))
	}

	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.CheckoutStepTimeout <= 0 {
		errs = append(errs, errors.New("CHECKOUT_STEP_TIMEOUT must be positive"))
	}
	if c.LedgerMaxRetries < 1 {
		errs = append(errs, errors.New("LEDGER_MAX_RETRIES must be at least 1"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

// ValidateNotifier checks the subset the notification worker needs: it reads
// users from PostgreSQL and consumes from Kafka.
func (c *Config) ValidateNotifier() error {
	var errs []error
	if c.StoreBackend != BackendPostgres || c.DatabaseURL == "" {
		errs = append(errs, errors.New("the notifier requires STORE_BACKEND=postgres and DATABASE_URL"))
	}
	if !c.KafkaEnabled() {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.KafkaGroupID == "" {
		errs = append(errs, errors.New("KAFKA_GROUP_ID is required"))
	}
	if c.SMTPHost == "" || c.SMTPPort == "" {
		errs = append(errs, errors.New("SMTP_HOST and SMTP_PORT are required"))
	}
	return errors.Join(errs...)
}

// KafkaEnabled reports whether event publishing is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
