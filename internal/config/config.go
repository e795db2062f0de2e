package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	// Load .env file - ignore error if file doesn't exist
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Note: .env file not found or could not be loaded: %v\n", err)
	}
}

type Config struct {
	Primary       PrimaryConfig
	Database      DatabaseConfig
	Server        ServerConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Observability *ObservabilityConfig
	Paystack      PaystackConfig
	Flutterwave   FlutterwaveConfig
	Voting        VotingConfig
}

type PrimaryConfig struct {
	Env string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	IdleTimeout        int
	CORSAllowedOrigins []string
}

type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
	KeyPrefix    string
}

type KafkaConfig struct {
	Brokers []string
}

type ObservabilityConfig struct {
	ServiceName  string
	Environment  string
	Logging      LoggingConfig
	NewRelic     NewRelicConfig
	HealthChecks HealthChecksConfig
}

type LoggingConfig struct {
	Level              string
	Format             string
	SlowQueryThreshold time.Duration
}

type NewRelicConfig struct {
	LicenseKey                string
	AppLogForwardingEnabled   bool
	DistributedTracingEnabled bool
	DebugLogging              bool
}

type HealthChecksConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
	Checks   []string
}

type PaystackConfig struct {
	SecretKey     string
	PublicKey     string
	WebhookSecret string
	BaseURL       string
}

type FlutterwaveConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
}

// VotingConfig holds the policy knobs the eligibility guard and the
// reconciliation engine enforce.
type VotingConfig struct {
	DefaultGateway     string
	PaymentTTL         time.Duration
	PendingWindow      time.Duration
	DailyVoteCeiling   int
	VoteCooldown       time.Duration
	SuspiciousIPCount  int
	InitiateRateLimit  int64
	InitiateRateWindow time.Duration
	GatewayTimeout     time.Duration
	InitIdempotencyTTL time.Duration
	WebhookDedupTTL    time.Duration
}

// Helper functions for parsing env vars
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return fallback
}

func (c *ObservabilityConfig) GetLogLevel() string {
	if c.Logging.Level == "" {
		switch c.Environment {
		case "production":
			return "info"
		case "development":
			return "debug"
		default:
			return "info"
		}
	}
	return c.Logging.Level
}

func (c *ObservabilityConfig) IsProduction() bool {
	return c.Environment == "production"
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Primary: PrimaryConfig{
			Env: getEnv("AWARDS_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("AWARDS_DB_HOST", "localhost"),
			Port:            getEnvInt("AWARDS_DB_PORT", 5432),
			User:            getEnv("AWARDS_DB_USER", "awards"),
			Password:        getEnv("AWARDS_DB_PASSWORD", ""),
			Name:            getEnv("AWARDS_DB_NAME", "awards"),
			SSLMode:         getEnv("AWARDS_DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("AWARDS_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("AWARDS_DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvInt("AWARDS_DB_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("AWARDS_DB_CONN_MAX_IDLE_TIME", 60),
		},
		Server: ServerConfig{
			Port:               getEnv("AWARDS_SERVER_PORT", "8080"),
			ReadTimeout:        getEnvInt("AWARDS_SERVER_READ_TIMEOUT", 30),
			WriteTimeout:       getEnvInt("AWARDS_SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:        getEnvInt("AWARDS_SERVER_IDLE_TIMEOUT", 60),
			CORSAllowedOrigins: getEnvSlice("AWARDS_SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Redis: RedisConfig{
			Address:      getEnv("AWARDS_REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnv("AWARDS_REDIS_PASSWORD", ""),
			DB:           getEnvInt("AWARDS_REDIS_DB", 0),
			PoolSize:     getEnvInt("AWARDS_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("AWARDS_REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvDuration("AWARDS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("AWARDS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("AWARDS_REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      getEnvDuration("AWARDS_REDIS_LOCK_TTL", 30*time.Second),
			KeyPrefix:    getEnv("AWARDS_REDIS_KEY_PREFIX", "awards:"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("AWARDS_KAFKA_BROKERS", []string{"localhost:9092"}),
		},
		Observability: &ObservabilityConfig{
			ServiceName: "award-portal",
			Environment: getEnv("AWARDS_ENV", "development"),
			Logging: LoggingConfig{
				Level:              getEnv("AWARDS_LOG_LEVEL", "debug"),
				Format:             getEnv("AWARDS_LOG_FORMAT", "console"),
				SlowQueryThreshold: getEnvDuration("AWARDS_LOG_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
			},
			NewRelic: NewRelicConfig{
				LicenseKey:                getEnv("AWARDS_NEWRELIC_LICENSE_KEY", ""),
				AppLogForwardingEnabled:   getEnvBool("AWARDS_NEWRELIC_LOG_FORWARDING", true),
				DistributedTracingEnabled: getEnvBool("AWARDS_NEWRELIC_DISTRIBUTED_TRACING", true),
				DebugLogging:              getEnvBool("AWARDS_NEWRELIC_DEBUG", false),
			},
			HealthChecks: HealthChecksConfig{
				Enabled:  getEnvBool("AWARDS_HEALTHCHECK_ENABLED", true),
				Interval: getEnvDuration("AWARDS_HEALTHCHECK_INTERVAL", 30*time.Second),
				Timeout:  getEnvDuration("AWARDS_HEALTHCHECK_TIMEOUT", 5*time.Second),
				Checks:   getEnvSlice("AWARDS_HEALTHCHECK_CHECKS", []string{"database", "redis"}),
			},
		},
		Paystack: PaystackConfig{
			SecretKey:     getEnv("AWARDS_PAYSTACK_SECRET_KEY", ""),
			PublicKey:     getEnv("AWARDS_PAYSTACK_PUBLIC_KEY", ""),
			WebhookSecret: getEnv("AWARDS_PAYSTACK_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("AWARDS_PAYSTACK_BASE_URL", "https://api.paystack.co"),
		},
		Flutterwave: FlutterwaveConfig{
			SecretKey:     getEnv("AWARDS_FLUTTERWAVE_SECRET_KEY", ""),
			WebhookSecret: getEnv("AWARDS_FLUTTERWAVE_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("AWARDS_FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com/v3"),
		},
		Voting: VotingConfig{
			DefaultGateway:     getEnv("AWARDS_DEFAULT_GATEWAY", "paystack"),
			PaymentTTL:         getEnvDuration("AWARDS_PAYMENT_TTL", 30*time.Minute),
			PendingWindow:      getEnvDuration("AWARDS_PENDING_WINDOW", 15*time.Minute),
			DailyVoteCeiling:   getEnvInt("AWARDS_DAILY_VOTE_CEILING", 200),
			VoteCooldown:       getEnvDuration("AWARDS_VOTE_COOLDOWN", 30*time.Second),
			SuspiciousIPCount:  getEnvInt("AWARDS_SUSPICIOUS_IP_COUNT", 3),
			InitiateRateLimit:  int64(getEnvInt("AWARDS_INITIATE_RATE_LIMIT", 10)),
			InitiateRateWindow: getEnvDuration("AWARDS_INITIATE_RATE_WINDOW", time.Minute),
			GatewayTimeout:     getEnvDuration("AWARDS_GATEWAY_TIMEOUT", 10*time.Second),
			InitIdempotencyTTL: getEnvDuration("AWARDS_INIT_IDEMPOTENCY_TTL", 24*time.Hour),
			WebhookDedupTTL:    getEnvDuration("AWARDS_WEBHOOK_DEDUP_TTL", 30*time.Minute),
		},
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("AWARDS_DB_HOST is required")
	}
	if cfg.Database.Name == "" {
		return nil, fmt.Errorf("AWARDS_DB_NAME is required")
	}

	return cfg, nil
}
