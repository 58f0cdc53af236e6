package main

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/bootstrap"
	"github.com/Alias1177/CryptoPredictor/internal/bot"
	"github.com/Alias1177/CryptoPredictor/internal/config"
	"github.com/Alias1177/CryptoPredictor/internal/server"
)

func main() {
	ctx, cancel := bootstrap.SignalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	bootstrap.SetupLogging(cfg.LogLevel)
	log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting mini-app API")

	db, err := bootstrap.OpenStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	analyzer, closeCache := bootstrap.NewAnalyzer(ctx, cfg)
	defer closeCache()

	srv := server.New(db, bootstrap.NewBinance(cfg), analyzer, server.Options{
		Addr:         cfg.HTTPAddr,
		DailyAILimit: cfg.DailyOpenAILimit,
		KlineLimit:   cfg.KlineLimit,
	})

	if ai := bootstrap.NewOpenAI(cfg); ai != nil {
		srv.WithSummarizer(ai)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, serving rule-based summaries only")
	}

	// Registrations from the mini app reach the admin chat through the admin bot
	if cfg.Validate(config.NeedAdminBot) == nil {
		adminAPI, err := tgbotapi.NewBotAPI(cfg.AdminBotToken)
		if err != nil {
			log.Warn().Err(err).Msg("Admin bot unavailable, registrations will not be announced")
		} else {
			srv.WithNotifier(bot.NewAdminBot(adminAPI, nil, db, bot.AdminConfig{AdminID: cfg.AdminTelegramID}))
		}
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatal().Err(err).Msg("HTTP server failed")
	}
}
