// Package config loads process configuration from the environment. A .env
// file in the working directory, if present, is loaded first; variables
// already set win over it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
)

// Notification sinks.
const (
	SinkLog   = "log"
	SinkKafka = "kafka"
)

const devJWTSecret = "batterystock-dev-secret-change-me"

// Config is the full process configuration.
type Config struct {
	App     AppConfig
	Store   StoreConfig
	Auth    AuthConfig
	Notify  NotifyConfig
	Watch   WatchConfig
	Metrics MetricsConfig
}

type AppConfig struct {
	Env      string
	Port     string
	LogLevel string
	// AllowNegativeStock lets transfers and invoices take more than is on
	// hand.
	AllowNegativeStock bool
}

// Development reports the development environment.
func (c AppConfig) Development() bool {
	return c.Env == "development"
}

type StoreConfig struct {
	Driver        string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	TxMaxRetries  int
	// Migrate applies the postgres schema on start.
	Migrate bool
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

type NotifyConfig struct {
	Sinks        []string
	KafkaBrokers []string
	KafkaTopic   string
}

// Has reports whether sink is enabled.
func (c NotifyConfig) Has(sink string) bool {
	for _, s := range c.Sinks {
		if s == sink {
			return true
		}
	}
	return false
}

type WatchConfig struct {
	SweepInterval      time.Duration
	BillRescanInterval time.Duration
	BillDueWindowDays  int
	CheckConcurrency   int
	ResubscribeDelay   time.Duration
}

type MetricsConfig struct {
	Addr string
}

// Load reads .env (if any) and the environment, then validates.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnv("SERVER_PORT", "8080"),
			LogLevel: getEnv("LOG_LEVEL", "info"),

			AllowNegativeStock: getEnvBool("ALLOW_NEGATIVE_STOCK", false),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
			DatabaseURL:   getEnv("DATABASE_URL", ""),
			MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase: getEnv("MONGO_DATABASE", "batterystock"),
			TxMaxRetries:  getEnvInt("STORE_TX_MAX_RETRIES", 5),
			Migrate:       getEnvBool("DATABASE_MIGRATE", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", devJWTSecret),
			JWTIssuer: getEnv("JWT_ISSUER", "batterystock"),
		},
		Notify: NotifyConfig{
			Sinks:        getEnvList("NOTIFY_SINKS", []string{SinkLog}),
			KafkaBrokers: getEnvList("NOTIFY_KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:   getEnv("NOTIFY_KAFKA_TOPIC", "batterystock.notifications"),
		},
		Watch: WatchConfig{
			SweepInterval:      getEnvDuration("WATCH_SWEEP_INTERVAL", 0),
			BillRescanInterval: getEnvDuration("WATCH_BILL_RESCAN_INTERVAL", time.Hour),
			BillDueWindowDays:  getEnvInt("WATCH_BILL_DUE_WINDOW_DAYS", 7),
			CheckConcurrency:   getEnvInt("WATCH_CHECK_CONCURRENCY", 8),
			ResubscribeDelay:   getEnvDuration("WATCH_RESUBSCRIBE_DELAY", 2*time.Second),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverMongoDB:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.TxMaxRetries < 0 {
		return fmt.Errorf("STORE_TX_MAX_RETRIES must not be negative")
	}
	for _, s := range c.Notify.Sinks {
		if s != SinkLog && s != SinkKafka {
			return fmt.Errorf("unknown notification sink %q", s)
		}
	}
	if c.Notify.Has(SinkKafka) && len(c.Notify.KafkaBrokers) == 0 {
		return fmt.Errorf("NOTIFY_KAFKA_BROKERS is required for the kafka sink")
	}
	if c.Watch.BillDueWindowDays <= 0 {
		return fmt.Errorf("WATCH_BILL_DUE_WINDOW_DAYS must be positive")
	}
	if c.Watch.CheckConcurrency <= 0 {
		return fmt.Errorf("WATCH_CHECK_CONCURRENCY must be positive")
	}
	if !c.App.Development() && c.Auth.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set outside development")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
