package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the engine API
type Config struct {
	// Database
	DatabaseURL   string
	RunMigrations bool

	// Server
	Port     string
	Env      string
	LogLevel string

	// Trigger endpoint
	CronSecret       string
	TriggerRateLimit float64 // requests per second per client
	TriggerBurst     int

	// Processing
	ProcessorConcurrency int
	DefaultTimezone      string

	// Notification fan-out (optional)
	AMQP AMQPConfig

	// Run report archive (optional)
	S3 S3Config
}

// AMQPConfig holds RabbitMQ configuration. Empty URL disables publishing.
type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// Enabled reports whether an AMQP broker is configured
func (c AMQPConfig) Enabled() bool {
	return c.URL != ""
}

// S3Config holds AWS S3 configuration. Empty bucket disables archiving.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
}

// Enabled reports whether a run report bucket is configured
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// SchedulerConfig holds configuration for the external cron trigger
type SchedulerConfig struct {
	TriggerURL string
	Schedule   string
	CronSecret string
	Env        string
	LogLevel   string
}

// Load reads engine configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	concurrency, err := getEnvInt("PROCESSOR_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getEnvFloat("TRIGGER_RATE_LIMIT", 1)
	if err != nil {
		return nil, err
	}
	burst, err := getEnvInt("TRIGGER_BURST", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RunMigrations:        getEnvBool("RUN_MIGRATIONS", false),
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		CronSecret:           getEnv("CRON_SECRET", ""),
		TriggerRateLimit:     rateLimit,
		TriggerBurst:         burst,
		ProcessorConcurrency: concurrency,
		DefaultTimezone:      getEnv("DEFAULT_TIMEZONE", "UTC"),
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "fortuna.events"),
			Queue:    getEnv("AMQP_QUEUE", "fortuna.notifications"),
		},
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Empty = use AWS, set for MinIO/LocalStack
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// IsProduction reports whether ENV is production
func (c *SchedulerConfig) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}
	if c.ProcessorConcurrency < 1 {
		return fmt.Errorf("PROCESSOR_CONCURRENCY must be at least 1")
	}
	if c.TriggerRateLimit <= 0 {
		return fmt.Errorf("TRIGGER_RATE_LIMIT must be positive")
	}
	if c.TriggerBurst < 1 {
		return fmt.Errorf("TRIGGER_BURST must be at least 1")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE %q is not a valid IANA zone: %w", c.DefaultTimezone, err)
	}
	return nil
}

// LoadScheduler reads configuration for the cron trigger binary
func LoadScheduler() (*SchedulerConfig, error) {
	_ = godotenv.Load()

	cfg := &SchedulerConfig{
		TriggerURL: getEnv("TRIGGER_URL", "http://localhost:8080/api/v1/internal/recurring/process"),
		Schedule:   getEnv("TRIGGER_SCHEDULE", "*/5 * * * *"),
		CronSecret: getEnv("CRON_SECRET", ""),
		Env:        getEnv("ENV", "development"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}

	if cfg.CronSecret == "" {
		return nil, fmt.Errorf("CRON_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultValue
}
