package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	// Market data
	BinanceBaseURL  string
	Interval        string
	KlineLimit      int
	TopSymbols      int
	QuoteAsset      string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration

	// Signal job
	SignalInterval   time.Duration
	SignalWorkers    int
	SignalRunOnStart bool

	// Storage
	DBDriver   string // postgres or sqlite3
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// AI
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float64
	DailyOpenAILimit  int

	// Telegram
	MainBotToken     string
	AdminBotToken    string
	AdminTelegramID  int64
	WebAppURL        string
	PaymentAddress   string
	PaymentNetwork   string
	PaymentAmount    string
	SubscriptionDays int

	// Servers
	HTTPAddr    string
	MetricsAddr string

	LogLevel string
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.BinanceBaseURL = getEnvWithDefault("BINANCE_BASE_URL", "https://api.binance.com")
	cfg.Interval = getEnvWithDefault("INTERVAL", "1h")
	cfg.KlineLimit = getEnvIntWithDefault("KLINE_LIMIT", 500)
	cfg.TopSymbols = getEnvIntWithDefault("TOP_SYMBOLS", 30)
	cfg.QuoteAsset = strings.ToUpper(getEnvWithDefault("QUOTE_ASSET", "USDT"))
	cfg.RequestTimeout = getEnvDurationWithDefault("REQUEST_TIMEOUT", 30*time.Second)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", 10)
	cfg.MaxRetries = getEnvIntWithDefault("MAX_RETRIES", 3)
	cfg.MaxRetryTimeout = getEnvDurationWithDefault("MAX_RETRY_TIMEOUT", 30*time.Second)

	cfg.SignalInterval = getEnvDurationWithDefault("SIGNAL_INTERVAL", 20*time.Minute)
	cfg.SignalWorkers = getEnvIntWithDefault("SIGNAL_WORKERS", 5)
	cfg.SignalRunOnStart = getEnvBoolWithDefault("SIGNAL_RUN_ON_START", true)

	cfg.DBDriver = getEnvWithDefault("DB_DRIVER", "postgres")
	cfg.DBHost = getEnvWithDefault("DB_HOST", "localhost")
	cfg.DBPort = getEnvWithDefault("DB_PORT", "5432")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = getEnvWithDefault("DB_NAME", "cryptopredictor")
	cfg.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")
	cfg.SQLitePath = getEnvWithDefault("SQLITE_PATH", "data/cryptopredictor.db")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvIntWithDefault("REDIS_DB", 0)
	cfg.CacheTTL = getEnvDurationWithDefault("CACHE_TTL", 5*time.Minute)

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = getEnvWithDefault("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAITemperature = getEnvFloatWithDefault("OPENAI_TEMPERATURE", 0.7)
	cfg.DailyOpenAILimit = getEnvIntWithDefault("DAILY_OPENAI_LIMIT", 100)

	cfg.MainBotToken = os.Getenv("MAIN_BOT_TOKEN")
	cfg.AdminBotToken = os.Getenv("ADMIN_BOT_TOKEN")
	cfg.AdminTelegramID = getEnvInt64WithDefault("ADMIN_TELEGRAM_ID", 0)
	cfg.WebAppURL = os.Getenv("WEBAPP_URL")
	cfg.PaymentAddress = os.Getenv("PAYMENT_ADDRESS")
	cfg.PaymentNetwork = getEnvWithDefault("PAYMENT_NETWORK", "TRC20")
	cfg.PaymentAmount = getEnvWithDefault("PAYMENT_AMOUNT", "20 USDT")
	cfg.SubscriptionDays = getEnvIntWithDefault("SUBSCRIPTION_DAYS", 30)

	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":3000")
	cfg.MetricsAddr = getEnvWithDefault("METRICS_ADDR", ":9090")

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")

	if cfg.KlineLimit <= 0 || cfg.KlineLimit > 1000 {
		return nil, fmt.Errorf("KLINE_LIMIT must be in 1..1000, got %d", cfg.KlineLimit)
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite3" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	return &cfg, nil
}

// Requirement names a group of settings an entry point needs.
type Requirement int

const (
	NeedMainBot Requirement = iota
	NeedAdminBot
	NeedOpenAI
)

// Validate reports every missing setting for the given requirements.
func (c *Config) Validate(reqs ...Requirement) error {
	var errs []error
	for _, r := range reqs {
		switch r {
		case NeedMainBot:
			if c.MainBotToken == "" {
				errs = append(errs, errors.New("MAIN_BOT_TOKEN not set"))
			}
		case NeedAdminBot:
			if c.AdminBotToken == "" {
				errs = append(errs, errors.New("ADMIN_BOT_TOKEN not set"))
			}
			if c.AdminTelegramID == 0 {
				errs = append(errs, errors.New("ADMIN_TELEGRAM_ID not set"))
			}
		case NeedOpenAI:
			if c.OpenAIAPIKey == "" {
				errs = append(errs, errors.New("OPENAI_API_KEY not set"))
			}
		}
	}
	return errors.Join(errs...)
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// Durations accept Go syntax ("20m") or a bare number of seconds.
func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
