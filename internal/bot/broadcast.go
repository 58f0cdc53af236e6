package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/analyze"
	"github.com/Alias1177/CryptoPredictor/models"
)

// BroadcastResult counts delivered and failed messages.
type BroadcastResult struct {
	Sent   int
	Failed int
}

// Broadcast sends text to every user, pausing delay between messages.
// Telegram allows about 30 messages per second per bot.
func Broadcast(ctx context.Context, s Sender, users []models.User, text string, delay time.Duration) BroadcastResult {
	var res BroadcastResult

	for i, user := range users {
		if ctx.Err() != nil {
			break
		}

		msg := tgbotapi.NewMessage(user.TelegramID, text)
		if _, err := s.Send(msg); err != nil {
			log.Warn().Err(err).Int64("telegram_id", user.TelegramID).Msg("Failed to send broadcast message")
			res.Failed++
		} else {
			log.Debug().Int64("telegram_id", user.TelegramID).Msgf("Message sent [%d/%d]", i+1, len(users))
			res.Sent++
		}

		if i < len(users)-1 && delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
	}

	return res
}

// StrongSignals keeps only STRONG_BUY and STRONG_SELL entries.
func StrongSignals(signals []models.TradingSignal) []models.TradingSignal {
	var out []models.TradingSignal
	for _, s := range signals {
		if sig, ok := models.ParseSignal(s.SignalType); ok && sig.IsStrong() {
			out = append(out, s)
		}
	}
	return out
}

// FormatDigest renders stored signals as one message. Empty input yields "".
func FormatDigest(signals []models.TradingSignal) string {
	if len(signals) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("🔥 Strong signals\n\n")
	for _, s := range signals {
		icon := "🟢"
		if strings.HasSuffix(s.SignalType, "sell") {
			icon = "🔴"
		}
		fmt.Fprintf(&sb, "%s %s: %s (score %+d) @ %s\n",
			icon, s.Symbol, strings.ToUpper(s.SignalType), s.Score, analyze.FormatPrice(s.Price))
		if len(s.Reasons) > 0 {
			fmt.Fprintf(&sb, "   %s\n", strings.Join(s.Reasons, ", "))
		}
	}
	sb.WriteString("\nOpen /app for the full analysis.")
	return sb.String()
}
