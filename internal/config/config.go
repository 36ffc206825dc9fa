package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Kafka
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	EngineWorkers int

	// Exchange rates
	ForexAPIURL    string
	ForexAPIKey    string
	ForexTimeout   time.Duration
	ForexCacheTTL  time.Duration
	ForexCacheSize int

	// Auth
	JWTSecret string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ebank.db"),

		KafkaBrokers:  strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "transactions"),
		KafkaGroup:    getEnv("KAFKA_GROUP", "ebank-aggregator"),
		EngineWorkers: getEnvInt("ENGINE_WORKERS", 1),

		ForexAPIURL:    getEnv("FOREX_API_URL", ""),
		ForexAPIKey:    getEnv("FOREX_API_KEY", ""),
		ForexTimeout:   getEnvDuration("FOREX_TIMEOUT", 10*time.Second),
		ForexCacheTTL:  getEnvDuration("FOREX_CACHE_TTL", time.Hour),
		ForexCacheSize: getEnvInt("FOREX_CACHE_SIZE", 64),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if len(c.KafkaBrokers) == 0 {
		errors = append(errors, "at least one Kafka broker is required")
	}
	for _, broker := range c.KafkaBrokers {
		if strings.TrimSpace(broker) == "" {
			errors = append(errors, "Kafka broker addresses cannot be empty")
			break
		}
	}
	if c.KafkaTopic == "" {
		errors = append(errors, "Kafka topic cannot be empty")
	}
	if c.KafkaGroup == "" {
		errors = append(errors, "Kafka consumer group cannot be empty")
	}
	if c.EngineWorkers < 1 {
		errors = append(errors, fmt.Sprintf("invalid engine workers %d: must be at least 1", c.EngineWorkers))
	} else if c.EngineWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid engine workers %d: must be at most 64", c.EngineWorkers))
	}

	if c.ForexAPIURL == "" {
		errors = append(errors, "FOREX_API_URL is required")
	} else if parsedURL, err := url.Parse(c.ForexAPIURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid forex API URL '%s': %v", c.ForexAPIURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid forex API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.ForexTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid forex timeout %v: must be at least 1 second", c.ForexTimeout))
	}
	if c.ForexCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid forex cache TTL %v: must be at least 1 minute", c.ForexCacheTTL))
	}
	if c.ForexCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid forex cache size %d: must be at least 1", c.ForexCacheSize))
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
