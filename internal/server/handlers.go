package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Alias1177/CryptoPredictor/internal/analyze"
	"github.com/Alias1177/CryptoPredictor/internal/database"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
	"github.com/Alias1177/CryptoPredictor/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	TelegramID        json.RawMessage `json:"telegram_id"`
	Username          string          `json:"username"`
	FirstName         string          `json:"first_name"`
	LastName          string          `json:"last_name"`
	PaymentScreenshot string          `json:"payment_screenshot"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id, ok := parseTelegramID(string(req.TelegramID))
	if !ok || req.PaymentScreenshot == "" {
		writeError(w, http.StatusBadRequest, "telegram_id and payment_screenshot are required")
		return
	}

	ctx := r.Context()
	existing, err := s.store.PendingPaymentFor(ctx, id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"requestId": existing.ID,
			"message":   "you already have a pending request",
		})
		return
	case !errors.Is(err, database.ErrNotFound):
		s.logger.Error().Err(err).Int64("telegram_id", id).Msg("Pending payment lookup failed")
		writeError(w, http.StatusInternalServerError, "could not create request")
		return
	}

	p, err := s.store.CreatePaymentRequest(ctx, models.PaymentRequest{
		TelegramID:    id,
		Username:      req.Username,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		ScreenshotURL: req.PaymentScreenshot,
	}, s.now())
	if err != nil {
		s.logger.Error().Err(err).Int64("telegram_id", id).Msg("Payment request failed")
		writeError(w, http.StatusInternalServerError, "could not create request")
		return
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyPaymentRequest(ctx, p); err != nil {
			s.logger.Warn().Err(err).Int64("request_id", p.ID).Msg("Admin notification failed")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"requestId": p.ID,
		"message":   "request received",
	})
}

type analysisRequest struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

func (s *Server) handleTechnicalAnalysis(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" || req.Timeframe == "" {
		writeError(w, http.StatusBadRequest, "symbol and timeframe are required")
		return
	}
	if !models.ValidInterval(req.Timeframe) {
		writeError(w, http.StatusBadRequest, "unsupported timeframe")
		return
	}

	ctx := r.Context()
	remaining, err := s.store.RemainingAIQuota(ctx, user.TelegramID, s.opts.DailyAILimit, s.now())
	if err != nil {
		s.logger.Error().Err(err).Int64("telegram_id", user.TelegramID).Msg("Quota lookup failed")
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	if s.summarizer != nil && remaining == 0 {
		quotaExhausted(w)
		return
	}

	candles, err := s.market.GetKlines(ctx, symbol, req.Timeframe, s.opts.KlineLimit)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Str("timeframe", req.Timeframe).Msg("Kline fetch failed")
		writeError(w, http.StatusBadGateway, "market data unavailable")
		return
	}

	verdict, err := s.analyzer.Analyze(ctx, symbol, req.Timeframe, candles)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Analysis cache unavailable")
	}
	market := analyze.DescribeMarket(candles)

	text := analyze.Summary(symbol, verdict)
	if s.summarizer != nil {
		text, err = s.summarizer.TechnicalSummary(ctx, symbol, req.Timeframe, verdict, market)
		if err != nil {
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("AI summary failed")
			writeError(w, http.StatusBadGateway, "analysis failed")
			return
		}

		remaining, err = s.store.ConsumeAIQuota(ctx, user.TelegramID, s.opts.DailyAILimit, s.now())
		if errors.Is(err, database.ErrQuotaExceeded) {
			quotaExhausted(w)
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Int64("telegram_id", user.TelegramID).Msg("Quota update failed")
			writeError(w, http.StatusInternalServerError, "analysis failed")
			return
		}
		metrics.AIQuota.WithLabelValues("consumed").Inc()
	}

	if err := s.store.SaveAnalysis(ctx, database.AnalysisRecord{
		TelegramID: user.TelegramID,
		Symbol:     symbol,
		Timeframe:  req.Timeframe,
		SignalType: verdict.Signal.Lower(),
		Score:      verdict.Score,
		Analysis:   text,
	}, s.now()); err != nil {
		s.logger.Warn().Err(err).Int64("telegram_id", user.TelegramID).Msg("Saving analysis history failed")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"analysis":  text,
		"data":      verdict,
		"market":    market,
		"remaining": remaining,
	})
}

func quotaExhausted(w http.ResponseWriter) {
	metrics.AIQuota.WithLabelValues("exhausted").Inc()
	writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "daily usage limit reached", "remaining": 0})
}

type signalView struct {
	models.TradingSignal
	Indicators json.RawMessage `json:"indicators"`
}

func (s *Server) handleTradingSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.store.LatestTradingSignals(r.Context(), s.opts.SignalsLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Loading trading signals failed")
		writeError(w, http.StatusInternalServerError, "could not load signals")
		return
	}

	views := make([]signalView, 0, len(signals))
	for _, sig := range signals {
		views = append(views, signalView{TradingSignal: sig, Indicators: json.RawMessage(sig.Indicators)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "signals": views})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	history, err := s.store.ListAnalysisHistory(r.Context(), user.TelegramID, s.opts.HistoryLimit)
	if err != nil {
		s.logger.Error().Err(err).Int64("telegram_id", user.TelegramID).Msg("Loading history failed")
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	if history == nil {
		history = []database.AnalysisRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": history})
}

type userInfo struct {
	Name              string     `json:"name"`
	Username          string     `json:"username"`
	SubscriptionStart *time.Time `json:"subscription_start"`
	SubscriptionEnd   *time.Time `json:"subscription_end"`
	DaysLeft          int        `json:"days_left"`
	DailyUsage        int        `json:"daily_usage"`
	DailyLimit        int        `json:"daily_limit"`
	Remaining         int        `json:"remaining"`
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	now := s.now()

	remaining, err := s.store.RemainingAIQuota(r.Context(), user.TelegramID, s.opts.DailyAILimit, now)
	if err != nil {
		s.logger.Error().Err(err).Int64("telegram_id", user.TelegramID).Msg("Quota lookup failed")
		writeError(w, http.StatusInternalServerError, "could not load user info")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": userInfo{
			Name:              strings.TrimSpace(user.FirstName + " " + user.LastName),
			Username:          user.Username,
			SubscriptionStart: user.SubscriptionStart,
			SubscriptionEnd:   user.SubscriptionEnd,
			DaysLeft:          user.DaysLeft(now),
			DailyUsage:        s.opts.DailyAILimit - remaining,
			DailyLimit:        s.opts.DailyAILimit,
			Remaining:         remaining,
		},
	})
}
