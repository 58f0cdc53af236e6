package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Alias1177/CryptoPredictor/internal/database"
	"github.com/Alias1177/CryptoPredictor/models"
)

const adminID = 1

type sent struct {
	chatID int64
	text   string
	photo  bool
	markup bool
}

type fakeAPI struct {
	mu      sync.Mutex
	sent    []sent
	failFor map[int64]bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s sent
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		s = sent{chatID: m.ChatID, text: m.Text, markup: m.ReplyMarkup != nil}
	case tgbotapi.PhotoConfig:
		s = sent{chatID: m.ChatID, text: m.Caption, photo: true}
	}
	if f.failFor[s.chatID] {
		return tgbotapi.Message{}, errors.New("blocked")
	}
	f.sent = append(f.sent, s)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

func (f *fakeAPI) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

type fakeMarket struct{}

func (fakeMarket) GetKlines(_ context.Context, _, _ string, limit int) ([]models.Candle, error) {
	candles := make([]models.Candle, limit)
	for i := range candles {
		c := 200 - float64(i)*0.3
		candles[i] = models.Candle{OpenTime: int64(i) * 60_000, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 3}
	}
	return candles, nil
}

func (fakeMarket) GetTopSymbols(context.Context, string, int) ([]models.TickerStat, error) {
	return nil, nil
}

func message(from int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: from, FirstName: "Ann", LastName: "Lee", UserName: "ann"},
		Chat: &tgbotapi.Chat{ID: from},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}}
	}
	return tgbotapi.Update{Message: msg}
}

func photo(from int64, fileIDs ...string) tgbotapi.Update {
	u := message(from, "")
	for _, id := range fileIDs {
		u.Message.Photo = append(u.Message.Photo, tgbotapi.PhotoSize{FileID: id})
	}
	return u
}

type harness struct {
	db        *database.DB
	userAPI   *fakeAPI
	adminAPI  *fakeAPI
	mainBot   *MainBot
	adminBot  *AdminBot
	ctx       context.Context
	timestamp time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	h := &harness{db: db, userAPI: &fakeAPI{}, adminAPI: &fakeAPI{}, ctx: context.Background(), timestamp: now}

	h.mainBot = NewMainBot(h.userAPI, db, fakeMarket{}, nil, MainConfig{
		WebAppURL:      "https://app.example",
		PaymentAddress: "TXYZ",
		PaymentNetwork: "TRC20",
		PaymentAmount:  "20 USDT",
		KlineLimit:     60,
	})
	h.mainBot.now = func() time.Time { return now }

	h.adminBot = NewAdminBot(h.adminAPI, h.userAPI, db, AdminConfig{AdminID: adminID, SubscriptionDays: 30, DailyAILimit: 100})
	h.adminBot.now = func() time.Time { return now }
	h.mainBot.SetNotifier(h.adminBot)
	return h
}

func TestSubscriptionFlow(t *testing.T) {
	h := newHarness(t)

	// Фото без /start не создает заявку
	h.mainBot.HandleUpdate(h.ctx, photo(10, "f1"))
	if got := h.userAPI.last(t).text; !strings.Contains(got, "/start") {
		t.Errorf("unexpected reply %q", got)
	}

	h.mainBot.HandleUpdate(h.ctx, message(10, "/start"))
	if got := h.userAPI.last(t); !strings.Contains(got.text, "TXYZ") || !strings.Contains(got.text, "20 USDT") {
		t.Errorf("payment instructions = %q", got.text)
	}

	h.mainBot.HandleUpdate(h.ctx, photo(10, "small", "large"))
	if got := h.userAPI.last(t).text; !strings.Contains(got, "Request ID: 1") {
		t.Errorf("receipt reply = %q", got)
	}

	note := h.adminAPI.last(t)
	if note.chatID != adminID || !note.photo || !strings.Contains(note.text, "/approve 1") {
		t.Errorf("admin notification = %+v", note)
	}
	req, err := h.db.GetPaymentRequest(h.ctx, 1)
	if err != nil || req.ScreenshotURL != "https://files.example/large" || req.Username != "ann" {
		t.Fatalf("stored request = %+v, %v", req, err)
	}

	// /start while pending points at the open request
	h.mainBot.HandleUpdate(h.ctx, message(10, "/start"))
	if got := h.userAPI.last(t).text; !strings.Contains(got, "#1") {
		t.Errorf("pending reply = %q", got)
	}

	h.adminBot.HandleUpdate(h.ctx, message(adminID, "/approve 1"))
	if got := h.userAPI.last(t); got.chatID != 10 || !strings.Contains(got.text, "approved") {
		t.Errorf("user notification = %+v", got)
	}
	if got := h.adminAPI.last(t).text; !strings.Contains(got, "30-day") {
		t.Errorf("admin confirmation = %q", got)
	}

	user, err := h.db.GetUser(h.ctx, 10)
	if err != nil || !user.HasActiveSubscription(h.timestamp) {
		t.Fatalf("user after approval = %+v, %v", user, err)
	}

	h.adminBot.HandleUpdate(h.ctx, message(adminID, "/approve 1"))
	if got := h.adminAPI.last(t).text; !strings.Contains(got, "already processed") {
		t.Errorf("second approve reply = %q", got)
	}

	h.mainBot.HandleUpdate(h.ctx, message(10, "/app"))
	if got := h.userAPI.last(t); !got.markup {
		t.Errorf("/app reply has no button: %+v", got)
	}

	h.mainBot.HandleUpdate(h.ctx, message(10, "/signal ethusdt 4h"))
	got := h.userAPI.last(t).text
	if !strings.Contains(got, "ETHUSDT (4h)") || !strings.Contains(got, "Signal: ") {
		t.Errorf("/signal reply = %q", got)
	}

	h.mainBot.HandleUpdate(h.ctx, message(10, "/signal BTCUSDT 7m"))
	if got := h.userAPI.last(t).text; !strings.Contains(got, "Unsupported interval") {
		t.Errorf("bad interval reply = %q", got)
	}
}

func TestStartRegistersUser(t *testing.T) {
	h := newHarness(t)

	h.mainBot.HandleUpdate(h.ctx, message(50, "/start"))
	if got := h.userAPI.last(t).text; !strings.Contains(got, "TXYZ") {
		t.Errorf("payment instructions = %q", got)
	}
	user, err := h.db.GetUser(h.ctx, 50)
	if err != nil || user.Username != "ann" || user.IsActive {
		t.Fatalf("registered user = %+v, %v", user, err)
	}

	h.userAPI.reset()
	h.mainBot.HandleUpdate(h.ctx, message(50, "/start"))
	for _, m := range h.userAPI.sent {
		if strings.Contains(m.text, "expired") {
			t.Errorf("never-subscribed user was told %q", m.text)
		}
	}
}

func TestPhotoWithPendingRequest(t *testing.T) {
	h := newHarness(t)

	h.mainBot.HandleUpdate(h.ctx, message(60, "/start"))
	// Заявка пришла из мини-приложения
	if _, err := h.db.CreatePaymentRequest(h.ctx, models.PaymentRequest{TelegramID: 60, ScreenshotURL: "web"}, h.timestamp); err != nil {
		t.Fatal(err)
	}

	h.mainBot.HandleUpdate(h.ctx, photo(60, "f1"))
	if got := h.userAPI.last(t).text; !strings.Contains(got, "already have a request") {
		t.Errorf("reply = %q", got)
	}
	list, err := h.db.ListPendingPayments(h.ctx)
	if err != nil || len(list) != 1 {
		t.Errorf("pending requests = %d, %v, want 1", len(list), err)
	}
}

func TestMainBotRequiresSubscription(t *testing.T) {
	h := newHarness(t)

	for _, text := range []string{"/app", "/signal BTCUSDT", "hello"} {
		h.userAPI.reset()
		h.mainBot.HandleUpdate(h.ctx, message(20, text))
		if got := h.userAPI.last(t).text; !strings.Contains(got, "/start") {
			t.Errorf("%s: reply = %q, want subscription hint", text, got)
		}
	}
}

func TestAdminReject(t *testing.T) {
	h := newHarness(t)

	req, err := h.db.CreatePaymentRequest(h.ctx, models.PaymentRequest{TelegramID: 30, FirstName: "Bob", ScreenshotURL: "file-id"}, h.timestamp)
	if err != nil {
		t.Fatal(err)
	}

	h.adminBot.HandleUpdate(h.ctx, message(adminID, "/pending"))
	if got := h.adminAPI.last(t); got.photo || !strings.Contains(got.text, "Screenshot unavailable") {
		t.Errorf("non-URL screenshot should fall back to text, got %+v", got)
	}

	h.adminBot.HandleUpdate(h.ctx, message(adminID, "/reject 1 wrong amount"))
	if got := h.userAPI.last(t); got.chatID != 30 || !strings.Contains(got.text, "wrong amount") {
		t.Errorf("user notification = %+v", got)
	}

	stored, _ := h.db.GetPaymentRequest(h.ctx, req.ID)
	if stored.Status != models.PaymentStatusRejected {
		t.Errorf("status = %q, want rejected", stored.Status)
	}

	h.adminBot.HandleUpdate(h.ctx, message(adminID, "/reject 99"))
	if got := h.adminAPI.last(t).text; !strings.Contains(got, "not found") {
		t.Errorf("missing request reply = %q", got)
	}
}

func TestAdminUsers(t *testing.T) {
	h := newHarness(t)

	req, _ := h.db.CreatePaymentRequest(h.ctx, models.PaymentRequest{TelegramID: 40, FirstName: "Cy", ScreenshotURL: "x"}, h.timestamp)
	if _, _, err := h.db.ApprovePayment(h.ctx, req.ID, 30, h.timestamp); err != nil {
		t.Fatal(err)
	}
	h.db.RegisterUser(h.ctx, models.User{TelegramID: 41, FirstName: "Di"}, h.timestamp)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"список", "/users", "Active: 1"},
		{"детали", "/user 40", "✅ Active"},
		{"неверный id", "/user abc", "must be a number"},
		{"нет пользователя", "/user 999", "not found"},
		{"удаление", "/delete 41", "deleted"},
		{"повторное удаление", "/delete 41", "not found"},
		{"без аргументов", "/approve", "Usage"},
		{"справка", "/help", "/pending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.adminBot.HandleUpdate(h.ctx, message(adminID, tt.text))
			if got := h.adminAPI.last(t).text; !strings.Contains(got, tt.want) {
				t.Errorf("%s reply = %q, want it to contain %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	h := newHarness(t)

	h.adminBot.HandleUpdate(h.ctx, message(55, "/delete 1"))
	if got := h.adminAPI.last(t); got.chatID != 55 || !strings.Contains(got.text, "Access denied") {
		t.Errorf("non-admin reply = %+v", got)
	}
}

func TestBroadcast(t *testing.T) {
	api := &fakeAPI{failFor: map[int64]bool{2: true}}
	users := []models.User{{TelegramID: 1}, {TelegramID: 2}, {TelegramID: 3}}

	res := Broadcast(context.Background(), api, users, "hi", 0)
	if res.Sent != 2 || res.Failed != 1 {
		t.Errorf("Broadcast() = %+v, want 2 sent and 1 failed", res)
	}
}

func TestDigest(t *testing.T) {
	signals := []models.TradingSignal{
		{Symbol: "BTCUSDT", SignalType: "strong_buy", Score: 6, Price: 65000, Reasons: []string{"RSI Oversold", "MACD Bullish"}},
		{Symbol: "ETHUSDT", SignalType: "buy", Score: 2, Price: 3500},
		{Symbol: "DOGEUSDT", SignalType: "strong_sell", Score: -5, Price: 0.12},
	}

	strong := StrongSignals(signals)
	if len(strong) != 2 || strong[1].Symbol != "DOGEUSDT" {
		t.Fatalf("StrongSignals() = %+v", strong)
	}

	text := FormatDigest(strong)
	for _, want := range []string{"BTCUSDT: STRONG_BUY (score +6) @ 65000.00", "RSI Oversold, MACD Bullish", "🔴 DOGEUSDT: STRONG_SELL (score -5) @ 0.12000000"} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}
	if FormatDigest(nil) != "" {
		t.Error("empty digest should be empty")
	}
}

type countingStore struct{ calls int }

func (c *countingStore) DeactivateExpired(context.Context, time.Time) (int64, error) {
	c.calls++
	return 1, nil
}

func TestRunExpirySweeperStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &countingStore{}
	RunExpirySweeper(ctx, store, time.Hour)
	if store.calls != 1 {
		t.Errorf("calls = %d, want one sweep on start", store.calls)
	}
}

type fakePoller struct {
	ch      chan tgbotapi.Update
	stopped bool
}

func (f *fakePoller) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.ch }
func (f *fakePoller) StopReceivingUpdates()                                      { f.stopped = true }

func TestPoll(t *testing.T) {
	p := &fakePoller{ch: make(chan tgbotapi.Update, 2)}
	p.ch <- message(1, "/start")
	p.ch <- message(2, "/start")
	close(p.ch)

	var handled int
	Poll(context.Background(), p, func(context.Context, tgbotapi.Update) { handled++ })
	if handled != 2 || !p.stopped {
		t.Errorf("handled = %d, stopped = %v", handled, p.stopped)
	}
}
