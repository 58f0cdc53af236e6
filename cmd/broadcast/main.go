package main

import (
	"flag"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/bootstrap"
	"github.com/Alias1177/CryptoPredictor/internal/bot"
	"github.com/Alias1177/CryptoPredictor/internal/config"
)

func main() {
	message := flag.String("message", "", "custom text; defaults to the latest strong signals")
	dryRun := flag.Bool("dry-run", false, "print the message without sending")
	flag.Parse()

	ctx, cancel := bootstrap.SignalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	bootstrap.SetupLogging(cfg.LogLevel)

	db, err := bootstrap.OpenStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	text := *message
	if text == "" {
		latest, err := db.LatestTradingSignals(ctx, 50)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load trading signals")
		}
		text = bot.FormatDigest(bot.StrongSignals(latest))
	}
	if text == "" {
		log.Info().Msg("No strong signals in the latest batch, nothing to send")
		return
	}

	users, err := db.ListActiveUsers(ctx, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get users from database")
	}
	log.Info().Int("users", len(users)).Msg("Found active subscribers")

	if *dryRun {
		fmt.Println(text)
		return
	}

	if err := cfg.Validate(config.NeedMainBot); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	api, err := tgbotapi.NewBotAPI(cfg.MainBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}

	// 50ms keeps us under Telegram's 30 messages per second
	res := bot.Broadcast(ctx, api, users, text, 50*time.Millisecond)

	log.Info().
		Int("total", len(users)).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Msg("Broadcast completed")
	fmt.Printf("\n🎯 Broadcast completed!\n📊 Stats: %d sent, %d failed out of %d total users\n",
		res.Sent, res.Failed, len(users))
}
