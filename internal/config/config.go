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
	// Database
	SQLiteDBPath string

	// Upstream aggregator API
	UpstreamBaseURL     string
	UpstreamClientID    string
	UpstreamSecret      string
	UpstreamAccessToken string
	UpstreamTimeout     time.Duration
	UpstreamBackend     string // "http" or "memory"

	// Sync run bounds
	SyncPageSize        int
	SyncMaxPages        int
	SyncPageDelay       time.Duration
	SyncConflictRetries int

	// Scheduler
	SyncInterval      time.Duration
	SyncMaxConcurrent int

	// AMQP (optional; empty URL disables messaging)
	AMQPURL          string
	AMQPExchange     string
	AMQPRequestQueue string
	AMQPEventQueue   string

	// Report cache
	CacheSize int
	CacheTTL  time.Duration
}

func Load() *Config {
	cfg := &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledgersync.db"),

		UpstreamBaseURL:     getEnv("UPSTREAM_BASE_URL", "https://sandbox.plaid.com"),
		UpstreamClientID:    getEnv("UPSTREAM_CLIENT_ID", ""),
		UpstreamSecret:      getEnv("UPSTREAM_SECRET", ""),
		UpstreamAccessToken: getEnv("UPSTREAM_ACCESS_TOKEN", ""),
		UpstreamTimeout:     getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		UpstreamBackend:     getEnv("UPSTREAM_BACKEND", "http"),

		SyncPageSize:        getEnvInt("SYNC_PAGE_SIZE", 500),
		SyncMaxPages:        getEnvInt("SYNC_MAX_PAGES", 4),
		SyncPageDelay:       getEnvDuration("SYNC_PAGE_DELAY", 250*time.Millisecond),
		SyncConflictRetries: getEnvInt("SYNC_CONFLICT_RETRIES", 3),

		SyncInterval:      getEnvDuration("SYNC_INTERVAL", 1*time.Hour),
		SyncMaxConcurrent: getEnvInt("SYNC_MAX_CONCURRENT", 4),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "ledgersync"),
		AMQPRequestQueue: getEnv("AMQP_REQUEST_QUEUE", "sync_requests"),
		AMQPEventQueue:   getEnv("AMQP_EVENT_QUEUE", "sync_events"),

		CacheSize: getEnvInt("CACHE_SIZE", 256),
		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

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

	switch c.UpstreamBackend {
	case "http":
		if c.UpstreamBaseURL == "" {
			errors = append(errors, "upstream base URL cannot be empty for the http backend")
		} else if parsedURL, err := url.Parse(c.UpstreamBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid upstream base URL '%s': %v", c.UpstreamBaseURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid upstream base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
		if c.UpstreamClientID == "" {
			errors = append(errors, "UPSTREAM_CLIENT_ID is required for the http backend")
		}
		if c.UpstreamSecret == "" {
			errors = append(errors, "UPSTREAM_SECRET is required for the http backend")
		}
	case "memory":
		// Self-contained; nothing to check.
	default:
		errors = append(errors, fmt.Sprintf("invalid upstream backend '%s': must be one of [http memory]", c.UpstreamBackend))
	}

	if c.SyncPageSize < 1 || c.SyncPageSize > 500 {
		errors = append(errors, fmt.Sprintf("invalid sync page size %d: must be between 1 and 500", c.SyncPageSize))
	}
	if c.SyncMaxPages < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync max pages %d: must be at least 1", c.SyncMaxPages))
	}
	if c.SyncPageDelay < 0 {
		errors = append(errors, fmt.Sprintf("invalid sync page delay %v: cannot be negative", c.SyncPageDelay))
	}
	if c.SyncConflictRetries < 0 {
		errors = append(errors, fmt.Sprintf("invalid sync conflict retries %d: cannot be negative", c.SyncConflictRetries))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	if c.SyncMaxConcurrent < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync max concurrent %d: must be at least 1", c.SyncMaxConcurrent))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRequestQueue == "" {
			errors = append(errors, "AMQP request queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPEventQueue == "" {
			errors = append(errors, "AMQP event queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
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
