package main

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/bootstrap"
	"github.com/Alias1177/CryptoPredictor/internal/bot"
	"github.com/Alias1177/CryptoPredictor/internal/config"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
)

func main() {
	ctx, cancel := bootstrap.SignalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	bootstrap.SetupLogging(cfg.LogLevel)

	if err := cfg.Validate(config.NeedMainBot, config.NeedAdminBot); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	db, err := bootstrap.OpenStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	mainAPI, err := tgbotapi.NewBotAPI(cfg.MainBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize main bot")
	}
	adminAPI, err := tgbotapi.NewBotAPI(cfg.AdminBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize admin bot")
	}
	log.Info().
		Str("main", mainAPI.Self.UserName).
		Str("admin", adminAPI.Self.UserName).
		Msg("Authorized on Telegram")

	analyzer, closeCache := bootstrap.NewAnalyzer(ctx, cfg)
	defer closeCache()

	adminBot := bot.NewAdminBot(adminAPI, mainAPI, db, bot.AdminConfig{
		AdminID:          cfg.AdminTelegramID,
		SubscriptionDays: cfg.SubscriptionDays,
		DailyAILimit:     cfg.DailyOpenAILimit,
	})
	mainBot := bot.NewMainBot(mainAPI, db, bootstrap.NewBinance(cfg), analyzer, bot.MainConfig{
		WebAppURL:       cfg.WebAppURL,
		PaymentAddress:  cfg.PaymentAddress,
		PaymentNetwork:  cfg.PaymentNetwork,
		PaymentAmount:   cfg.PaymentAmount,
		DefaultInterval: cfg.Interval,
		KlineLimit:      cfg.KlineLimit,
	})
	mainBot.SetNotifier(adminBot)

	metricsSrv := metrics.Serve(cfg.MetricsAddr)

	go bot.RunExpirySweeper(ctx, db, time.Hour)
	go bot.Poll(ctx, adminAPI, adminBot.HandleUpdate)
	bot.Poll(ctx, mainAPI, mainBot.HandleUpdate)

	shutdownCtx, done := bootstrap.ShutdownContext()
	defer done()
	metrics.Shutdown(shutdownCtx, metricsSrv)
	log.Info().Msg("Bots stopped")
}
