package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/analyze"
	"github.com/Alias1177/CryptoPredictor/internal/database"
	"github.com/Alias1177/CryptoPredictor/internal/indicators"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
	"github.com/Alias1177/CryptoPredictor/models"
)

// Store is the persistence the mini-app API needs.
type Store interface {
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	PendingPaymentFor(ctx context.Context, telegramID int64) (*models.PaymentRequest, error)
	CreatePaymentRequest(ctx context.Context, p models.PaymentRequest, now time.Time) (*models.PaymentRequest, error)
	RemainingAIQuota(ctx context.Context, telegramID int64, limit int, now time.Time) (int, error)
	ConsumeAIQuota(ctx context.Context, telegramID int64, limit int, now time.Time) (int, error)
	SaveAnalysis(ctx context.Context, rec database.AnalysisRecord, now time.Time) error
	ListAnalysisHistory(ctx context.Context, telegramID int64, limit int) ([]database.AnalysisRecord, error)
	LatestTradingSignals(ctx context.Context, limit int) ([]models.TradingSignal, error)
}

// Summarizer turns a verdict into prose.
type Summarizer interface {
	TechnicalSummary(ctx context.Context, symbol, interval string, v models.SignalVerdict, mc analyze.MarketContext) (string, error)
}

// PaymentNotifier tells the admin about a new payment request.
type PaymentNotifier interface {
	NotifyPaymentRequest(ctx context.Context, p *models.PaymentRequest) error
}

// Options configures the server.
type Options struct {
	Addr         string
	DailyAILimit int
	KlineLimit   int
	SignalsLimit int
	HistoryLimit int
}

// Server is the mini-app HTTP API.
type Server struct {
	store      Store
	market     models.CandleClient
	analyzer   *indicators.Analyzer
	summarizer Summarizer
	notifier   PaymentNotifier
	opts       Options
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates a server. Summarizer and notifier are optional.
func New(store Store, market models.CandleClient, analyzer *indicators.Analyzer, opts Options) *Server {
	if analyzer == nil {
		analyzer = indicators.NewAnalyzer(nil)
	}
	if opts.DailyAILimit <= 0 {
		opts.DailyAILimit = 100
	}
	if opts.KlineLimit <= 0 {
		opts.KlineLimit = 500
	}
	if opts.SignalsLimit <= 0 {
		opts.SignalsLimit = 50
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}

	return &Server{
		store:    store,
		market:   market,
		analyzer: analyzer,
		opts:     opts,
		logger:   log.With().Str("component", "http_server").Logger(),
		now:      time.Now,
	}
}

// WithSummarizer enables AI summaries for technical analysis.
func (s *Server) WithSummarizer(sum Summarizer) *Server {
	s.summarizer = sum
	return s
}

// WithNotifier enables admin notifications for new payment requests.
func (s *Server) WithNotifier(n PaymentNotifier) *Server {
	s.notifier = n
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("POST /api/register", s.instrument("register", http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/technical-analysis", s.instrument("technical_analysis", s.checkUser(s.handleTechnicalAnalysis)))
	mux.Handle("GET /api/trading-signals", s.instrument("trading_signals", s.checkUser(s.handleTradingSignals)))
	mux.Handle("GET /api/history/technical", s.instrument("history_technical", s.checkUser(s.handleHistory)))
	mux.Handle("GET /api/user-info", s.instrument("user_info", s.checkUser(s.handleUserInfo)))
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info().Msg("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}
