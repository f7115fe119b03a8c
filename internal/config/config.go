package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backends selectable with DATA_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

type Config struct {
	// Telegram
	TelegramToken string
	RootUserID    int64
	BotWorkers    int
	ReportLimit   int

	// HTTP Server
	Port           string
	OpsAPIToken    string
	RateLimit      int
	TrustedProxies []string

	// Storage
	DataBackend     string
	SQLiteDBPath    string
	BoltDBPath      string
	ConfigCacheTTL  time.Duration
	ConfigCacheSize int

	// Locking (Redis is optional; in-process locks are used without it)
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// AMQP (optional; journal events are not published without it)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets audit export
	GoogleSpreadsheetID string
	GoogleSheetName     string

	LogLevel string

	// problems found while parsing the environment
	loadErrors []string
}

func Load() *Config {
	cfg := &Config{}

	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.RootUserID = cfg.getEnvInt64("ROOT_USER_ID", 0)
	cfg.BotWorkers = getEnvInt("BOT_WORKERS", 8)
	cfg.ReportLimit = getEnvInt("REPORT_LIMIT", 10)

	cfg.Port = getEnv("PORT", "8081")
	cfg.OpsAPIToken = getEnv("OPS_API_TOKEN", "")
	cfg.RateLimit = getEnvInt("RATE_LIMIT_PER_MINUTE", 60)
	cfg.TrustedProxies = getEnvList("TRUSTED_PROXIES")

	cfg.DataBackend = getEnv("DATA_BACKEND", BackendSQLite)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", "./data/tally.db")
	cfg.BoltDBPath = getEnv("BOLT_DB_PATH", "./data/tally.bolt")
	cfg.ConfigCacheTTL = getEnvDuration("CONFIG_CACHE_TTL", 5*time.Minute)
	cfg.ConfigCacheSize = getEnvInt("CONFIG_CACHE_SIZE", 1000)

	cfg.RedisAddress = getEnv("REDIS_ADDRESS", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.LockTTL = getEnvDuration("LOCK_TTL", 10*time.Second)

	cfg.AMQPURL = getEnv("AMQP_URL", "")
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", "tally")
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", "journal_events")

	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", "")
	cfg.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", "Journal")

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	return cfg
}

// Validate checks the settings shared by every process and returns all
// problems at once.
func (c *Config) Validate() error {
	return c.validate(nil)
}

// ValidateBot additionally requires the Telegram credentials.
func (c *Config) ValidateBot() error {
	return c.validate(func(add func(string, ...any)) {
		if c.TelegramToken == "" {
			add("TELEGRAM_BOT_TOKEN is required")
		}
		if c.RootUserID <= 0 {
			add("ROOT_USER_ID must be a positive Telegram user id")
		}
		if c.BotWorkers < 1 || c.BotWorkers > 256 {
			add("invalid bot workers %d: must be between 1 and 256", c.BotWorkers)
		}
		if c.ReportLimit < 1 || c.ReportLimit > 100 {
			add("invalid report limit %d: must be between 1 and 100", c.ReportLimit)
		}
	})
}

// ValidateExporter additionally requires a broker to consume from.
func (c *Config) ValidateExporter() error {
	return c.validate(func(add func(string, ...any)) {
		if c.AMQPURL == "" {
			add("AMQP_URL is required for the exporter")
		}
	})
}

func (c *Config) validate(extra func(add func(string, ...any))) error {
	errors := append([]string(nil), c.loadErrors...)
	add := func(format string, args ...any) {
		errors = append(errors, fmt.Sprintf(format, args...))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		add("invalid port '%s': must be a number", c.Port)
	} else if port < 1 || port > 65535 {
		add("invalid port %d: must be between 1 and 65535", port)
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			add("SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendBolt:
		if c.BoltDBPath == "" {
			add("Bolt database path cannot be empty when using bolt backend")
		}
	case BackendMemory:
	default:
		add("invalid data backend '%s': must be one of [%s %s %s]", c.DataBackend, BackendSQLite, BackendBolt, BackendMemory)
	}

	if c.ConfigCacheTTL < 0 {
		add("invalid config cache TTL %v: must not be negative", c.ConfigCacheTTL)
	}
	if c.ConfigCacheSize < 1 {
		add("invalid config cache size %d: must be at least 1", c.ConfigCacheSize)
	}
	if c.RateLimit < 1 {
		add("invalid rate limit %d: must be at least 1", c.RateLimit)
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			add("invalid trusted proxy '%s': must be a CIDR", cidr)
		}
	}

	if c.RedisAddress != "" {
		if _, _, err := net.SplitHostPort(c.RedisAddress); err != nil {
			add("invalid Redis address '%s': %v", c.RedisAddress, err)
		}
	}
	if c.LockTTL < time.Second || c.LockTTL > 5*time.Minute {
		add("invalid lock TTL %v: must be between 1s and 5m", c.LockTTL)
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			add("invalid AMQP URL: %v", err)
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			add("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme)
		}
		if c.AMQPExchange == "" {
			add("AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			add("AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		add("invalid log level '%s': must be debug, info, warn or error", c.LogLevel)
	}

	if extra != nil {
		extra(add)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SettingsCacheTTL is how long chat configs may be cached, 0 for never.
// Replicas sharing a store through Redis cannot see each other's updates,
// so caching is off for them.
func (c *Config) SettingsCacheTTL() time.Duration {
	if c.RedisAddress != "" {
		return 0
	}
	return c.ConfigCacheTTL
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

// getEnvInt64 is strict: a malformed id is reported by Validate instead of
// silently falling back.
func (c *Config) getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("invalid %s '%s': must be an integer", key, value))
		return defaultValue
	}
	return i
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
