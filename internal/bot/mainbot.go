package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/analyze"
	"github.com/Alias1177/CryptoPredictor/internal/database"
	"github.com/Alias1177/CryptoPredictor/internal/indicators"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
	"github.com/Alias1177/CryptoPredictor/models"
)

// MainStore is the persistence the subscriber bot needs.
type MainStore interface {
	RegisterUser(ctx context.Context, u models.User, now time.Time) (*models.User, error)
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	HasPendingPayment(ctx context.Context, telegramID int64) (bool, error)
	PendingPaymentFor(ctx context.Context, telegramID int64) (*models.PaymentRequest, error)
	CreatePaymentRequest(ctx context.Context, p models.PaymentRequest, now time.Time) (*models.PaymentRequest, error)
}

// MainConfig holds the texts and defaults of the subscriber bot.
type MainConfig struct {
	WebAppURL       string
	PaymentAddress  string
	PaymentNetwork  string
	PaymentAmount   string
	DefaultInterval string
	KlineLimit      int
}

// User conversation stages
const (
	stageIdle            = ""
	stageAwaitingPayment = "awaiting_payment"
	stagePaymentSent     = "payment_sent"
)

// MainBot serves subscribers: onboarding, payment screenshots and signals.
type MainBot struct {
	api      API
	store    MainStore
	market   models.CandleClient
	analyzer *indicators.Analyzer
	notifier PaymentNotifier
	cfg      MainConfig
	logger   zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	stages map[int64]string
}

// NewMainBot creates the subscriber bot. market may be nil to disable /signal.
func NewMainBot(api API, store MainStore, market models.CandleClient, analyzer *indicators.Analyzer, cfg MainConfig) *MainBot {
	if analyzer == nil {
		analyzer = indicators.NewAnalyzer(nil)
	}
	if cfg.DefaultInterval == "" {
		cfg.DefaultInterval = "1h"
	}
	if cfg.KlineLimit <= 0 {
		cfg.KlineLimit = 500
	}

	return &MainBot{
		api:      api,
		store:    store,
		market:   market,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   log.With().Str("component", "main_bot").Logger(),
		now:      time.Now,
		stages:   make(map[int64]string),
	}
}

// SetNotifier sets where new payment requests are announced.
func (b *MainBot) SetNotifier(n PaymentNotifier) {
	b.notifier = n
}

func (b *MainBot) stage(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stages[userID]
}

func (b *MainBot) setStage(userID int64, stage string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if stage == stageIdle {
		delete(b.stages, userID)
		return
	}
	b.stages[userID] = stage
}

// HandleUpdate processes one Telegram update.
func (b *MainBot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	switch {
	case msg.IsCommand():
		metrics.BotCommands.WithLabelValues("main", msg.Command()).Inc()
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "app":
			b.handleApp(ctx, msg)
		case "signal":
			b.handleSignal(ctx, msg)
		default:
			b.handleText(ctx, msg)
		}
	case len(msg.Photo) > 0:
		metrics.BotCommands.WithLabelValues("main", "photo").Inc()
		b.handlePhoto(ctx, msg)
	default:
		b.handleText(ctx, msg)
	}
}

// activeUser loads the user, if any, and reports whether the subscription is live.
func (b *MainBot) activeUser(ctx context.Context, telegramID int64) (*models.User, bool, error) {
	user, err := b.store.GetUser(ctx, telegramID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return user, user.HasActiveSubscription(b.now()), nil
}

func (b *MainBot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	if _, err := b.store.RegisterUser(ctx, models.User{
		TelegramID: userID,
		Username:   msg.From.UserName,
		FirstName:  msg.From.FirstName,
		LastName:   msg.From.LastName,
	}, b.now()); err != nil {
		b.logger.Warn().Err(err).Int64("user_id", userID).Msg("Error registering user")
	}

	user, active, err := b.activeUser(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error retrieving user")
		send(b.api, chatID, "Sorry, there was an error. Please try again later.")
		return
	}

	if active {
		b.setStage(userID, stageIdle)
		send(b.api, chatID, fmt.Sprintf(
			"Hello %s! 👋\n\nYour subscription is active for %d more days. Use /app to open the mini app or /signal BTCUSDT for a quick signal.",
			msg.From.FirstName, user.DaysLeft(b.now())))
		return
	}

	if pending, err := b.store.PendingPaymentFor(ctx, userID); err == nil {
		b.setStage(userID, stagePaymentSent)
		send(b.api, chatID, fmt.Sprintf("Your payment request #%d is being reviewed. You will be notified once it is approved.", pending.ID))
		return
	}

	if user != nil && user.SubscriptionEnd != nil {
		send(b.api, chatID, "Your subscription has expired. Please renew to continue.")
	} else {
		send(b.api, chatID, fmt.Sprintf("Hello %s! 👋\n\nA subscription is required to use the bot.", msg.From.FirstName))
	}
	b.sendPaymentInstructions(chatID)
	b.setStage(userID, stageAwaitingPayment)
}

func (b *MainBot) sendPaymentInstructions(chatID int64) {
	text := fmt.Sprintf("🔐 *Payment required*\n\n"+
		"💰 Wallet address (%s network):\n`%s`\n\n"+
		"💵 Amount: %s\n\n"+
		"⚠️ Send only over the %s network. Transfers from other networks are lost.\n\n"+
		"📸 After paying, send the transaction screenshot here to start the review.",
		b.cfg.PaymentNetwork, b.cfg.PaymentAddress, b.cfg.PaymentAmount, b.cfg.PaymentNetwork)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send payment instructions")
	}
}

func (b *MainBot) handleApp(ctx context.Context, msg *tgbotapi.Message) {
	_, active, err := b.activeUser(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Error retrieving user")
		send(b.api, msg.Chat.ID, "Sorry, there was an error. Please try again later.")
		return
	}
	if !active {
		send(b.api, msg.Chat.ID, "❌ You need an active subscription for this. Use /start to subscribe.")
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, "Tap the button below to open the mini app:")
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🚀 Open app", b.cfg.WebAppURL),
		),
	)
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to send app button")
	}
}

func (b *MainBot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	if b.stage(userID) != stageAwaitingPayment {
		send(b.api, chatID, "What is this image for? If it is a payment receipt, use /start first.")
		return
	}

	// A request may also arrive through the mini-app
	pending, err := b.store.HasPendingPayment(ctx, userID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error checking pending payments")
		send(b.api, chatID, "❌ Something went wrong. Please try again.")
		return
	}
	if pending {
		b.setStage(userID, stagePaymentSent)
		send(b.api, chatID, "You already have a request under review. You will be notified once it is approved.")
		return
	}

	// Largest resolution is last
	fileID := msg.Photo[len(msg.Photo)-1].FileID
	screenshot, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		b.logger.Warn().Err(err).Str("file_id", fileID).Msg("Could not resolve file link, storing file id")
		screenshot = fileID
	}

	req, err := b.store.CreatePaymentRequest(ctx, models.PaymentRequest{
		TelegramID:    userID,
		Username:      msg.From.UserName,
		FirstName:     msg.From.FirstName,
		LastName:      msg.From.LastName,
		ScreenshotURL: screenshot,
	}, b.now())
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("Error creating payment request")
		send(b.api, chatID, "❌ Something went wrong. Please try again.")
		return
	}

	if b.notifier != nil {
		if err := b.notifier.NotifyPaymentRequest(ctx, req); err != nil {
			b.logger.Error().Err(err).Int64("request_id", req.ID).Msg("Admin notification failed")
		}
	}

	b.setStage(userID, stagePaymentSent)
	send(b.api, chatID, fmt.Sprintf(
		"✅ Receipt received!\n\nYour request is under review. You will be notified once it is approved.\n\nRequest ID: %d", req.ID))
}

func (b *MainBot) handleSignal(ctx context.Context, msg *tgbotapi.Message) {
	_, active, err := b.activeUser(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Error retrieving user")
		send(b.api, msg.Chat.ID, "Sorry, there was an error. Please try again later.")
		return
	}
	if !active {
		send(b.api, msg.Chat.ID, "❌ You need an active subscription for this. Use /start to subscribe.")
		return
	}
	if b.market == nil {
		send(b.api, msg.Chat.ID, "Signals are not available right now.")
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		send(b.api, msg.Chat.ID, "Usage: /signal SYMBOL [interval], e.g. /signal BTCUSDT 4h")
		return
	}
	symbol := strings.ToUpper(args[0])
	interval := b.cfg.DefaultInterval
	if len(args) > 1 {
		interval = args[1]
	}
	if !models.ValidInterval(interval) {
		send(b.api, msg.Chat.ID, fmt.Sprintf("Unsupported interval %q.", interval))
		return
	}

	candles, err := b.market.GetKlines(ctx, symbol, interval, b.cfg.KlineLimit)
	if err != nil {
		b.logger.Warn().Err(err).Str("symbol", symbol).Msg("Kline fetch failed")
		send(b.api, msg.Chat.ID, fmt.Sprintf("Could not load market data for %s.", symbol))
		return
	}

	v, err := b.analyzer.Analyze(ctx, symbol, interval, candles)
	if err != nil {
		b.logger.Debug().Err(err).Msg("Analysis cache unavailable")
	}
	send(b.api, msg.Chat.ID, formatVerdict(symbol, interval, v))
}

func (b *MainBot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	_, active, err := b.activeUser(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", msg.From.ID).Msg("Error retrieving user")
	}
	if !active {
		send(b.api, msg.Chat.ID, "❌ You need a subscription to use this bot. Use /start to subscribe.")
		return
	}
	send(b.api, msg.Chat.ID, "Hi! Use /app to open the mini app or /signal SYMBOL [interval] for a signal.")
}

func formatVerdict(symbol, interval string, v models.SignalVerdict) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 %s (%s)\n\n", symbol, interval))
	sb.WriteString(fmt.Sprintf("Signal: %s\nScore: %+d\n", v.Signal, v.Score))
	if p := v.Indicators.CurrentPrice; p != nil {
		sb.WriteString(fmt.Sprintf("Price: %s\n", analyze.FormatPrice(*p)))
	}
	if len(v.Reasons) > 0 {
		sb.WriteString("\nReasons:\n")
		for _, r := range v.Reasons {
			sb.WriteString("• " + r + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
