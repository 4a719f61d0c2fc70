package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Ingest    IngestConfig
	Retention RetentionConfig
	Kafka     KafkaConfig
	Alerting  AlertingConfig

	ClickHouse  ClickHouseConfig
	PostgresURL string
	RedisAddr   string
	RedisDB     int

	JWTSecret string
	APIKey    string
	SiteKey   string

	LogLevel    string
	ReleaseMode bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigin   string
}

// SessionConfig drives the session state machine.
type SessionConfig struct {
	IdleTimeout   time.Duration
	GracePeriod   time.Duration
	SweepInterval time.Duration
}

// IngestConfig drives the edge pipeline.
type IngestConfig struct {
	SampleRate   float64
	QueueSize    int
	RetryBackoff time.Duration
	MaxRetries   int
	StoreTimeout time.Duration
}

// RetentionConfig bounds how long history is kept.
type RetentionConfig struct {
	ReportDays int
	EventDays  int
}

// KafkaConfig configures the optional event stream source. Empty brokers
// disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Workers int
}

// AlertingConfig configures outbound alert delivery.
type AlertingConfig struct {
	WebhookURL     string
	WebhookTimeout time.Duration
}

// ClickHouseConfig locates the event store.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
			AllowedOrigin:   getEnv("FE_ORIGIN", "http://localhost:3000"),
		},
		Session: SessionConfig{
			IdleTimeout:   getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			GracePeriod:   getEnvDuration("SESSION_GRACE_PERIOD", 5*time.Minute),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Ingest: IngestConfig{
			SampleRate:   getEnvFloat("INGEST_SAMPLE_RATE", 1.0),
			QueueSize:    getEnvInt("INGEST_QUEUE_SIZE", 10000),
			RetryBackoff: getEnvDuration("INGEST_RETRY_BACKOFF", 2*time.Second),
			MaxRetries:   getEnvInt("INGEST_MAX_RETRIES", 5),
			StoreTimeout: getEnvDuration("INGEST_STORE_TIMEOUT", 10*time.Second),
		},
		Retention: RetentionConfig{
			ReportDays: getEnvInt("RETENTION_REPORT_DAYS", 90),
			EventDays:  getEnvInt("RETENTION_EVENT_DAYS", 180),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "analytics-events"),
			GroupID: getEnv("KAFKA_GROUP_ID", "analytics-ingest"),
			Workers: getEnvInt("KAFKA_WORKERS", 3),
		},
		Alerting: AlertingConfig{
			WebhookURL:     getEnv("ALERT_WEBHOOK_URL", ""),
			WebhookTimeout: getEnvDuration("ALERT_WEBHOOK_TIMEOUT", 5*time.Second),
		},
		ClickHouse: ClickHouseConfig{
			Host:     getEnv("CLICKHOUSE_HOST", ""),
			Port:     getEnvInt("CLICKHOUSE_NATIVE_PORT", 9000),
			Database: getEnv("CLICKHOUSE_DB_NAME", ""),
			Username: getEnv("CLICKHOUSE_USERNAME", ""),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		},
		PostgresURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		JWTSecret:   getEnv("JWT_SECRET_KEY", ""),
		APIKey:      getEnv("AUTH_DEFAULT", ""),
		SiteKey:     getEnv("SITE_KEY", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ReleaseMode: getEnv("GIN_MODE", "") == "release",
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.Ingest.SampleRate < 0 || c.Ingest.SampleRate > 1 {
		return fmt.Errorf("INGEST_SAMPLE_RATE must be within [0,1], got %v", c.Ingest.SampleRate)
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.Session.GracePeriod < 0 {
		return fmt.Errorf("SESSION_GRACE_PERIOD must not be negative")
	}
	if c.Retention.ReportDays <= 0 || c.Retention.EventDays <= 0 {
		return fmt.Errorf("retention windows must be positive")
	}
	if c.Ingest.QueueSize <= 0 {
		return fmt.Errorf("INGEST_QUEUE_SIZE must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
