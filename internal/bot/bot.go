package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/models"
)

// Sender is the part of tgbotapi.BotAPI used to talk to users.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// API adds file lookups to Sender; *tgbotapi.BotAPI satisfies it.
type API interface {
	Sender
	GetFileDirectURL(fileID string) (string, error)
}

// Poller delivers updates; *tgbotapi.BotAPI satisfies it.
type Poller interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// PaymentNotifier tells the admin about a new payment request.
type PaymentNotifier interface {
	NotifyPaymentRequest(ctx context.Context, p *models.PaymentRequest) error
}

// Poll feeds updates to handle until ctx is done.
func Poll(ctx context.Context, p Poller, handle func(context.Context, tgbotapi.Update)) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := p.GetUpdatesChan(updateConfig)
	defer p.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			handle(ctx, update)
		}
	}
}

// ExpiryStore deactivates lapsed subscriptions.
type ExpiryStore interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// RunExpirySweeper deactivates expired subscriptions every interval until ctx is done.
func RunExpirySweeper(ctx context.Context, store ExpiryStore, every time.Duration) {
	logger := log.With().Str("component", "expiry_sweeper").Logger()

	sweep := func() {
		n, err := store.DeactivateExpired(ctx, time.Now())
		if err != nil {
			logger.Error().Err(err).Msg("Error checking expired subscriptions")
			return
		}
		if n > 0 {
			logger.Info().Int64("deactivated", n).Msg("Expired subscriptions deactivated")
		}
	}

	sweep()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func send(s Sender, chatID int64, text string) {
	if _, err := s.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func parseID(arg string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	return id, err == nil && id > 0
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
