package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	Chain       ChainConfig
	Oracle      OracleConfig
	Deployments DeploymentsConfig
	Liquidator  LiquidatorConfig
	Monitor     MonitorConfig
	Log         LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration. An empty Host disables the
// attempt history store.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration. Empty Brokers disables the event
// stream.
type KafkaConfig struct {
	Brokers        []string
	PositionsTopic string
	ResultsTopic   string
	GroupID        string
}

// RedisConfig holds Redis configuration for the ABI cache. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ChainConfig holds blockchain RPC configuration
type ChainConfig struct {
	RPCURL         string
	ChainID        int64
	PrivateKeyHex  string
	CallTimeout    time.Duration
	ReadsPerSecond float64
}

// OracleConfig holds the price feed configuration
type OracleConfig struct {
	URL         string
	Timeout     time.Duration
	QuoteMaxAge time.Duration
}

// DeploymentsConfig holds the deployment registry configuration
type DeploymentsConfig struct {
	URL     string
	Timeout time.Duration
}

// LiquidatorConfig holds liquidation policy configuration
type LiquidatorConfig struct {
	TierID            uint64
	BonusPercent      string
	GasEstimate       string
	MinProfitUSD      string
	MaxConcurrent     int
	DiscoverBatchSize int
	RefreshBatchSize  int
}

// MonitorConfig holds the evaluation loop timer configuration
type MonitorConfig struct {
	PriceInterval   time.Duration
	RefreshInterval time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "liquidations"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:        splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			PositionsTopic: getEnv("KAFKA_POSITIONS_TOPIC", "position-events"),
			ResultsTopic:   getEnv("KAFKA_RESULTS_TOPIC", "liquidation-events"),
			GroupID:        getEnv("KAFKA_GROUP_ID", "liquidation-service"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Chain: ChainConfig{
			RPCURL:         getEnv("CHAIN_RPC_URL", "http://localhost:8545"),
			ChainID:        int64(getEnvInt("CHAIN_ID", 1)),
			PrivateKeyHex:  getEnv("CHAIN_PRIVATE_KEY", ""),
			CallTimeout:    getEnvDuration("CHAIN_CALL_TIMEOUT", 10*time.Second),
			ReadsPerSecond: getEnvFloat("CHAIN_READS_PER_SECOND", 10),
		},
		Oracle: OracleConfig{
			URL:         getEnv("ORACLE_URL", "http://localhost:8081"),
			Timeout:     getEnvDuration("ORACLE_TIMEOUT", 5*time.Second),
			QuoteMaxAge: getEnvDuration("ORACLE_QUOTE_MAX_AGE", 60*time.Second),
		},
		Deployments: DeploymentsConfig{
			URL:     getEnv("DEPLOYMENTS_URL", "http://localhost:8082"),
			Timeout: getEnvDuration("DEPLOYMENTS_TIMEOUT", 5*time.Second),
		},
		Liquidator: LiquidatorConfig{
			TierID:            uint64(getEnvInt("LIQUIDATOR_TIER_ID", 0)),
			BonusPercent:      getEnv("LIQUIDATOR_BONUS_PERCENT", "5"),
			GasEstimate:       getEnv("LIQUIDATOR_GAS_ESTIMATE", "0.01"),
			MinProfitUSD:      getEnv("LIQUIDATOR_MIN_PROFIT_USD", "0"),
			MaxConcurrent:     getEnvInt("LIQUIDATOR_MAX_CONCURRENT", 3),
			DiscoverBatchSize: getEnvInt("LIQUIDATOR_DISCOVER_BATCH", 10),
			RefreshBatchSize:  getEnvInt("LIQUIDATOR_REFRESH_BATCH", 5),
		},
		Monitor: MonitorConfig{
			PriceInterval:   getEnvDuration("MONITOR_PRICE_INTERVAL", 15*time.Second),
			RefreshInterval: getEnvDuration("MONITOR_REFRESH_INTERVAL", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Enabled reports whether a database host was configured
func (d *DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// Enabled reports whether Kafka brokers were configured
func (k *KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Enabled reports whether a Redis address was configured
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitNonEmpty(value string) []string {
	if value == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
