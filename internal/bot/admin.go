package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/database"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
	"github.com/Alias1177/CryptoPredictor/models"
)

// AdminStore is the persistence the admin bot needs.
type AdminStore interface {
	ListPendingPayments(ctx context.Context) ([]models.PaymentRequest, error)
	ApprovePayment(ctx context.Context, id int64, days int, now time.Time) (*models.PaymentRequest, *models.User, error)
	RejectPayment(ctx context.Context, id int64, reason string) (*models.PaymentRequest, error)
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	DeleteUser(ctx context.Context, telegramID int64) error
}

// AdminConfig configures the admin bot.
type AdminConfig struct {
	AdminID          int64
	SubscriptionDays int
	DailyAILimit     int
}

const adminHelp = `🔐 Admin commands

/pending - list payment requests awaiting review
/approve [id] - approve a request
/reject [id] [reason] - reject a request
/users - list users
/user [telegram_id] - show user details
/delete [telegram_id] - delete a user`

// AdminBot reviews payment requests and manages users. Users are notified through the main bot.
type AdminBot struct {
	api    Sender
	users  Sender
	store  AdminStore
	cfg    AdminConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewAdminBot creates the admin bot. api is the admin bot, users the main bot.
func NewAdminBot(api, users Sender, store AdminStore, cfg AdminConfig) *AdminBot {
	if cfg.SubscriptionDays <= 0 {
		cfg.SubscriptionDays = 30
	}
	return &AdminBot{
		api:    api,
		users:  users,
		store:  store,
		cfg:    cfg,
		logger: log.With().Str("component", "admin_bot").Logger(),
		now:    time.Now,
	}
}

// HandleUpdate processes one Telegram update from the admin chat.
func (b *AdminBot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || !msg.IsCommand() {
		return
	}
	if msg.From.ID != b.cfg.AdminID {
		b.logger.Warn().Int64("user_id", msg.From.ID).Str("command", msg.Command()).Msg("Rejected non-admin command")
		send(b.api, msg.Chat.ID, "⛔ Access denied.")
		return
	}

	metrics.BotCommands.WithLabelValues("admin", msg.Command()).Inc()
	chatID := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		send(b.api, chatID, adminHelp)
	case "pending":
		b.handlePending(ctx, chatID)
	case "approve":
		b.handleApprove(ctx, chatID, args)
	case "reject":
		b.handleReject(ctx, chatID, args)
	case "users":
		b.handleUsers(ctx, chatID)
	case "user":
		b.handleUser(ctx, chatID, args)
	case "delete":
		b.handleDelete(ctx, chatID, args)
	default:
		send(b.api, chatID, adminHelp)
	}
}

func requestCaption(p *models.PaymentRequest) string {
	return fmt.Sprintf("🆔 Request ID: %d\n👤 %s\n📝 @%s\n🆔 Telegram ID: %d\n📅 %s\n\n✅ Approve: /approve %d\n❌ Reject: /reject %d",
		p.ID, fullName(p.FirstName, p.LastName), orNone(p.Username), p.TelegramID,
		p.CreatedAt.UTC().Format("2006-01-02 15:04"), p.ID, p.ID)
}

// sendRequest posts the screenshot with its caption, falling back to text.
func (b *AdminBot) sendRequest(chatID int64, p *models.PaymentRequest, header string) error {
	caption := header + requestCaption(p)

	if strings.HasPrefix(p.ScreenshotURL, "http") {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(p.ScreenshotURL))
		photo.Caption = caption
		if _, err := b.api.Send(photo); err == nil {
			return nil
		}
	}

	_, err := b.api.Send(tgbotapi.NewMessage(chatID, caption+"\n\n⚠️ Screenshot unavailable"))
	return err
}

// NotifyPaymentRequest announces a new request in the admin chat.
func (b *AdminBot) NotifyPaymentRequest(_ context.Context, p *models.PaymentRequest) error {
	if err := b.sendRequest(b.cfg.AdminID, p, "🆕 New payment request!\n\n"); err != nil {
		return fmt.Errorf("notify admin about request %d: %w", p.ID, err)
	}
	return nil
}

func (b *AdminBot) handlePending(ctx context.Context, chatID int64) {
	requests, err := b.store.ListPendingPayments(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("Error listing pending payments")
		send(b.api, chatID, "❌ Error: "+err.Error())
		return
	}
	if len(requests) == 0 {
		send(b.api, chatID, "✅ No pending requests.")
		return
	}

	send(b.api, chatID, fmt.Sprintf("📋 Pending requests: %d", len(requests)))
	for i := range requests {
		if err := b.sendRequest(chatID, &requests[i], ""); err != nil {
			b.logger.Warn().Err(err).Int64("request_id", requests[i].ID).Msg("Failed to send pending request")
		}
	}
}

func (b *AdminBot) handleApprove(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		send(b.api, chatID, "⚠️ Usage: /approve [request_id]")
		return
	}
	id, ok := parseID(args[0])
	if !ok {
		send(b.api, chatID, "⚠️ Request id must be a number.")
		return
	}

	req, user, err := b.store.ApprovePayment(ctx, id, b.cfg.SubscriptionDays, b.now())
	if !b.reviewError(chatID, id, err) {
		return
	}

	b.logger.Info().Int64("request_id", id).Int64("telegram_id", req.TelegramID).Msg("Payment approved")
	send(b.users, req.TelegramID, fmt.Sprintf(
		"✅ Your registration is approved!\n\nYour subscription is valid until %s.\nUse /app to open the mini app.",
		formatDate(user.SubscriptionEnd)))
	send(b.api, chatID, fmt.Sprintf("✅ User approved!\n👤 %s\n🆔 Telegram ID: %d\n⏰ %d-day subscription, ends %s",
		fullName(req.FirstName, req.LastName), req.TelegramID, b.cfg.SubscriptionDays, formatDate(user.SubscriptionEnd)))
}

func (b *AdminBot) handleReject(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		send(b.api, chatID, "⚠️ Usage: /reject [request_id] [reason]")
		return
	}
	id, ok := parseID(args[0])
	if !ok {
		send(b.api, chatID, "⚠️ Request id must be a number.")
		return
	}
	reason := strings.Join(args[1:], " ")
	if reason == "" {
		reason = "not specified"
	}

	req, err := b.store.RejectPayment(ctx, id, reason)
	if !b.reviewError(chatID, id, err) {
		return
	}

	b.logger.Info().Int64("request_id", id).Str("reason", reason).Msg("Payment rejected")
	send(b.users, req.TelegramID, fmt.Sprintf(
		"❌ Your registration was rejected\n\nReason: %s\n\nPlease try again with a valid payment receipt.", reason))
	send(b.api, chatID, fmt.Sprintf("❌ User rejected!\n👤 %s\n🆔 Telegram ID: %d\n📝 Reason: %s",
		fullName(req.FirstName, req.LastName), req.TelegramID, reason))
}

// reviewError reports err to the admin and returns true when there was none.
func (b *AdminBot) reviewError(chatID, id int64, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, database.ErrNotFound):
		send(b.api, chatID, "❌ Request not found.")
	case errors.Is(err, database.ErrAlreadyProcessed):
		send(b.api, chatID, "⚠️ This request was already processed.")
	default:
		b.logger.Error().Err(err).Int64("request_id", id).Msg("Error reviewing payment")
		send(b.api, chatID, "❌ Something went wrong.")
	}
	return false
}

func (b *AdminBot) handleUsers(ctx context.Context, chatID int64) {
	users, err := b.store.ListUsers(ctx, 10000)
	if err != nil {
		b.logger.Error().Err(err).Msg("Error listing users")
		send(b.api, chatID, "❌ Error: "+err.Error())
		return
	}
	if len(users) == 0 {
		send(b.api, chatID, "📋 No registered users yet.")
		return
	}

	now := b.now()
	active := 0
	for i := range users {
		if users[i].HasActiveSubscription(now) {
			active++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Total users: %d\n✅ Active: %d\n❌ Inactive: %d\n\n📋 Latest 10:\n\n",
		len(users), active, len(users)-active)
	for i, u := range users[:min(10, len(users))] {
		status := "❌"
		if u.HasActiveSubscription(now) {
			status = "✅"
		}
		fmt.Fprintf(&sb, "%d. %s %s\n   🆔 %d\n   ⏰ Ends: %s\n\n",
			i+1, status, fullName(u.FirstName, u.LastName), u.TelegramID, formatDate(u.SubscriptionEnd))
	}
	send(b.api, chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *AdminBot) handleUser(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		send(b.api, chatID, "⚠️ Usage: /user [telegram_id]")
		return
	}
	id, ok := parseID(args[0])
	if !ok {
		send(b.api, chatID, "⚠️ Telegram id must be a number.")
		return
	}

	u, err := b.store.GetUser(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		send(b.api, chatID, "❌ User not found.")
		return
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("telegram_id", id).Msg("Error retrieving user")
		send(b.api, chatID, "❌ Something went wrong.")
		return
	}

	status := "❌ Inactive"
	if u.HasActiveSubscription(b.now()) {
		status = "✅ Active"
	}
	send(b.api, chatID, fmt.Sprintf("👤 User details\n\nStatus: %s\nName: %s\nUsername: @%s\nTelegram ID: %d\n\n"+
		"📅 Registered: %s\n⏰ Subscription start: %s\n⏰ Subscription end: %s\n\n🤖 Daily AI usage: %d/%d",
		status, fullName(u.FirstName, u.LastName), orNone(u.Username), u.TelegramID,
		formatDate(&u.CreatedAt), formatDate(u.SubscriptionStart), formatDate(u.SubscriptionEnd),
		u.DailyAIUsage, b.cfg.DailyAILimit))
}

func (b *AdminBot) handleDelete(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		send(b.api, chatID, "⚠️ Usage: /delete [telegram_id]")
		return
	}
	id, ok := parseID(args[0])
	if !ok {
		send(b.api, chatID, "⚠️ Telegram id must be a number.")
		return
	}

	err := b.store.DeleteUser(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		send(b.api, chatID, "❌ User not found.")
		return
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("telegram_id", id).Msg("Error deleting user")
		send(b.api, chatID, "❌ Something went wrong.")
		return
	}

	b.logger.Info().Int64("telegram_id", id).Msg("User deleted")
	send(b.api, chatID, fmt.Sprintf("🗑 User %d deleted.", id))
}
