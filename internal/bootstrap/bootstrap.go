// Package bootstrap wires configuration into the shared clients every entry point needs.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/api/binance"
	"github.com/Alias1177/CryptoPredictor/internal/api/openai"
	"github.com/Alias1177/CryptoPredictor/internal/config"
	"github.com/Alias1177/CryptoPredictor/internal/database"
	"github.com/Alias1177/CryptoPredictor/internal/indicators"
)

// SetupLogging configures the global logger
func SetupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			log.Info().Msg("Shutdown signal received, exiting...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()

	return ctx, cancel
}

// OpenStore connects to the configured database driver.
func OpenStore(cfg *config.Config) (*database.DB, error) {
	var (
		db  *database.DB
		err error
	)
	if cfg.DBDriver == "sqlite3" {
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err = database.OpenSQLite(cfg.SQLitePath)
	} else {
		db, err = database.New(database.ConnectionParams{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("driver", db.Driver()).Msg("Database connected")
	return db, nil
}

// NewBinance builds the market data client.
func NewBinance(cfg *config.Config) *binance.Client {
	return binance.NewClient(binance.ClientOptions{
		BaseURL:         cfg.BinanceBaseURL,
		RequestTimeout:  cfg.RequestTimeout,
		RequestsPerSec:  cfg.RequestsPerSec,
		MaxRetries:      cfg.MaxRetries,
		MaxRetryTimeout: cfg.MaxRetryTimeout,
	})
}

// NewOpenAI returns nil when no API key is configured.
func NewOpenAI(cfg *config.Config) *openai.Client {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	return openai.NewClient(openai.Options{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
	})
}

// NewAnalyzer uses Redis when REDIS_ADDR is set and reachable, the in-memory cache otherwise.
// The returned cleanup must be called on shutdown.
func NewAnalyzer(ctx context.Context, cfg *config.Config) (*indicators.Analyzer, func()) {
	if cfg.RedisAddr != "" {
		rc, err := indicators.NewRedisCache(indicators.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err == nil {
			log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis analysis cache")
			return indicators.NewAnalyzer(rc), func() { rc.Close() }
		}
		log.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory cache")
	}

	mc := indicators.NewMemoryCache(cfg.CacheTTL)
	go mc.RunJanitor(ctx)
	return indicators.NewAnalyzer(mc), func() {}
}

// ShutdownContext bounds cleanup after the main loop returns.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
