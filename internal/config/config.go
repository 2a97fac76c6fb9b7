package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	S3       S3Config
	Coupons  CouponConfig
	Catalog  CatalogConfig
	Payment  PaymentConfig
	Refund   RefundConfig
	Loyalty  LoyaltyConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string // "postgres" or "memory"
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	AutoMigrate     bool
}

// RedisConfig configures the cart and idempotency store. When disabled both
// live in process memory.
type RedisConfig struct {
	Enabled        bool
	Addr           string
	Password       string
	DB             int
	CartTTL        time.Duration
	IdempotencyTTL time.Duration
}

// KafkaConfig configures domain event publication and the settlement feed.
// When disabled events are logged and no settlement consumer runs.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	EventsTopic     string
	SettlementTopic string
	GroupID         string
	EventBuffer     int
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
	// File, when set, receives the logs with size-based rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

// S3Config holds AWS S3 configuration for coupon files.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "coupons/")
}

// CouponConfig lists the coupon definition files imported at startup.
type CouponConfig struct {
	Files []string
}

// CatalogConfig tunes the catalog circuit breaker.
type CatalogConfig struct {
	MaxFailures int
	OpenTimeout time.Duration
}

// PaymentConfig holds acquirer and payment artifact settings.
type PaymentConfig struct {
	CardFeePercent float64
	ApprovalRate   float64
	IntentTTL      time.Duration
	PixTTL         time.Duration
	BoletoTTL      time.Duration
	BaseURL        string
	MerchantName   string
	MerchantCity   string
	PixKey         string
}

// RefundConfig tunes the refund worker.
type RefundConfig struct {
	Delay         time.Duration
	QueueSize     int
	SweepInterval time.Duration
}

// LoyaltyConfig tunes the points expiry sweep.
type LoyaltyConfig struct {
	SweepInterval time.Duration
}

// Load loads configuration from environment variables. A .env file in the
// working directory, when present, fills variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", DriverPostgres),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "petshop"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:        getEnvAsBool("REDIS_ENABLED", false),
			Addr:           getEnv("REDIS_ADDR", "localhost:6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			CartTTL:        getEnvAsDuration("CART_TTL", 7*24*time.Hour),
			IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Enabled:         getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:         getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			EventsTopic:     getEnv("KAFKA_EVENTS_TOPIC", "petshop.events"),
			SettlementTopic: getEnv("KAFKA_SETTLEMENT_TOPIC", "petshop.payment-settlements"),
			GroupID:         getEnv("KAFKA_GROUP_ID", "petshop-api"),
			EventBuffer:     getEnvAsInt("EVENT_BUFFER", 1024),
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "petshop"),
			Audience:  getEnv("JWT_AUDIENCE", ""),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "us-east-1"),
			Prefix:  getEnv("S3_PREFIX", "coupons/"),
		},
		Coupons: CouponConfig{
			Files: getEnvAsSlice("COUPON_FILES", nil),
		},
		Catalog: CatalogConfig{
			MaxFailures: getEnvAsInt("CATALOG_MAX_FAILURES", 5),
			OpenTimeout: getEnvAsDuration("CATALOG_OPEN_TIMEOUT", 30*time.Second),
		},
		Payment: PaymentConfig{
			CardFeePercent: getEnvAsFloat("PAYMENT_CARD_FEE_PERCENT", 3.99),
			ApprovalRate:   getEnvAsFloat("PAYMENT_APPROVAL_RATE", 0.9),
			IntentTTL:      getEnvAsDuration("PAYMENT_INTENT_TTL", 30*time.Minute),
			PixTTL:         getEnvAsDuration("PAYMENT_PIX_TTL", 30*time.Minute),
			BoletoTTL:      getEnvAsDuration("PAYMENT_BOLETO_TTL", 72*time.Hour),
			BaseURL:        getEnv("PAYMENT_BASE_URL", "https://pagamentos.petshop.local"),
			MerchantName:   getEnv("PAYMENT_MERCHANT_NAME", "PETSHOP"),
			MerchantCity:   getEnv("PAYMENT_MERCHANT_CITY", "SAO PAULO"),
			PixKey:         getEnv("PAYMENT_PIX_KEY", "pix@petshop.local"),
		},
		Refund: RefundConfig{
			Delay:         getEnvAsDuration("REFUND_DELAY", 2*time.Second),
			QueueSize:     getEnvAsInt("REFUND_QUEUE_SIZE", 100),
			SweepInterval: getEnvAsDuration("REFUND_SWEEP_INTERVAL", time.Minute),
		},
		Loyalty: LoyaltyConfig{
			SweepInterval: getEnvAsDuration("LOYALTY_SWEEP_INTERVAL", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid store driver: %s (must be postgres or memory)", c.Store.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.EventsTopic == "" || c.Kafka.SettlementTopic == "" {
			return fmt.Errorf("kafka topics are required when kafka is enabled")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	if c.Payment.ApprovalRate < 0 || c.Payment.ApprovalRate > 1 {
		return fmt.Errorf("payment approval rate must be between 0 and 1")
	}

	if c.Payment.CardFeePercent < 0 || c.Payment.CardFeePercent >= 100 {
		return fmt.Errorf("invalid card fee percent: %v", c.Payment.CardFeePercent)
	}

	if c.Refund.QueueSize < 1 {
		return fmt.Errorf("refund queue size must be at least 1")
	}

	return nil
}

func (c *DatabaseConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}

	if c.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration parses values such as "30s" or "72h".
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated variable, dropping empty entries.
func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
