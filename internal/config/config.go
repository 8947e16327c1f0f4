package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort           string
	AppEnv             string
	LogLevel           string
	VisitorCookie      string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	VisitorRate        float64
	VisitorBurst       int
	WorkspaceIdle      time.Duration

	APIBaseURL        string
	APITimeout        time.Duration
	APIRatePerSecond  float64
	APIRateBurst      int
	BreakerMaxFails   uint32
	BreakerOpenPeriod time.Duration
	ConfirmSession    bool

	StorageBackend string // memory, redis, sqlite, mongo
	RedisAddr      string
	RedisPassword  string
	RedisTTL       time.Duration
	SQLitePath     string
	SQLiteRetain   time.Duration
	MongoURI       string
	MongoDatabase  string

	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		AppEnv:             getEnv("APP_ENV", "dev"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		VisitorCookie:      getEnv("VISITOR_COOKIE", "storefront_visitor"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		VisitorRate:        getEnvFloat("VISITOR_RATE_PER_SECOND", 10),
		VisitorBurst:       getEnvInt("VISITOR_RATE_BURST", 20),
		WorkspaceIdle:      getEnvDuration("WORKSPACE_IDLE", 30*time.Minute),

		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:5000"),
		APITimeout:        getEnvDuration("API_TIMEOUT", 15*time.Second),
		APIRatePerSecond:  getEnvFloat("API_RATE_PER_SECOND", 20),
		APIRateBurst:      getEnvInt("API_RATE_BURST", 40),
		BreakerMaxFails:   uint32(getEnvInt("BREAKER_MAX_FAILURES", 5)),
		BreakerOpenPeriod: getEnvDuration("BREAKER_OPEN_PERIOD", 30*time.Second),
		ConfirmSession:    getEnvBool("CONFIRM_SESSION", true),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "memory")),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTTL:       getEnvDuration("REDIS_TTL", 30*24*time.Hour),
		SQLitePath:     getEnv("SQLITE_PATH", "storefront.db"),
		SQLiteRetain:   getEnvDuration("SQLITE_RETAIN", 90*24*time.Hour),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "storefront"),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "storefront-events"),
	}

	switch cfg.StorageBackend {
	case "memory", "redis", "sqlite", "mongo":
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
