package models

import (
	"strings"
	"time"
)

// Candle represents a single kline, ordered ascending by OpenTime in every slice.
type Candle struct {
	OpenTime                 int64   `json:"openTime"`
	Open                     float64 `json:"open"`
	High                     float64 `json:"high"`
	Low                      float64 `json:"low"`
	Close                    float64 `json:"close"`
	Volume                   float64 `json:"volume"`
	CloseTime                int64   `json:"closeTime"`
	QuoteAssetVolume         float64 `json:"quoteAssetVolume"`
	NumberOfTrades           int64   `json:"numberOfTrades"`
	TakerBuyBaseAssetVolume  float64 `json:"takerBuyBaseAssetVolume"`
	TakerBuyQuoteAssetVolume float64 `json:"takerBuyQuoteAssetVolume"`
}

// Time returns the candle open time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime).UTC()
}

// MACD holds the latest MACD reading. Signal and Histogram stay nil until
// enough MACD values exist to seed the signal line.
type MACD struct {
	MACDLine   float64  `json:"MACD"`
	SignalLine *float64 `json:"signal,omitempty"`
	Histogram  *float64 `json:"histogram,omitempty"`
}

// BollingerBands holds the latest band values. PB is nil on a zero-width band.
type BollingerBands struct {
	Lower  float64  `json:"lower"`
	Middle float64  `json:"middle"`
	Upper  float64  `json:"upper"`
	PB     *float64 `json:"pb,omitempty"`
}

// DirectionalIndex is the ADX reading together with its directional indicators.
type DirectionalIndex struct {
	ADX float64 `json:"adx"`
	PDI float64 `json:"pdi"`
	MDI float64 `json:"mdi"`
}

// Stochastic is the latest %K and its %D smoothing.
type Stochastic struct {
	K float64  `json:"k"`
	D *float64 `json:"d,omitempty"`
}

// IndicatorSnapshot is the latest value of every indicator for one candle window.
// A nil field means the window was too short for that indicator.
type IndicatorSnapshot struct {
	RSI          *float64          `json:"rsi,omitempty"`
	MACD         *MACD             `json:"macd,omitempty"`
	EMA20        *float64          `json:"ema20,omitempty"`
	EMA50        *float64          `json:"ema50,omitempty"`
	EMA200       *float64          `json:"ema200,omitempty"`
	SMA          *float64          `json:"sma,omitempty"`
	Bollinger    *BollingerBands   `json:"bollinger,omitempty"`
	ADX          *DirectionalIndex `json:"adx,omitempty"`
	ATR          *float64          `json:"atr,omitempty"`
	ROC          *float64          `json:"roc,omitempty"`
	Momentum     *float64          `json:"momentum,omitempty"`
	Stochastic   *Stochastic       `json:"stochastic,omitempty"`
	VWAP         *float64          `json:"vwap,omitempty"`
	CurrentPrice *float64          `json:"currentPrice,omitempty"`
	Volume       *float64          `json:"volume,omitempty"`
}

// Signal is the discrete trading recommendation.
type Signal string

const (
	SignalStrongBuy  Signal = "STRONG_BUY"
	SignalBuy        Signal = "BUY"
	SignalHold       Signal = "HOLD"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG_SELL"
)

// Lower returns the storage form of the signal, e.g. "strong_buy".
func (s Signal) Lower() string {
	return strings.ToLower(string(s))
}

// IsStrong reports whether the signal is one of the STRONG_* values.
func (s Signal) IsStrong() bool {
	return s == SignalStrongBuy || s == SignalStrongSell
}

// ParseSignal accepts either case and reports whether s is a known signal.
func ParseSignal(s string) (Signal, bool) {
	sig := Signal(strings.ToUpper(strings.TrimSpace(s)))
	switch sig {
	case SignalStrongBuy, SignalBuy, SignalHold, SignalSell, SignalStrongSell:
		return sig, true
	}
	return "", false
}

// SignalVerdict is the scorer output for one snapshot.
type SignalVerdict struct {
	Signal     Signal            `json:"signal"`
	Score      int               `json:"score"`
	Reasons    []string          `json:"reasons"`
	Indicators IndicatorSnapshot `json:"indicators"`
}

// TradingSignal is a stored verdict produced by the batch job.
type TradingSignal struct {
	ID         int64     `json:"id"`
	BatchID    string    `json:"batch_id"`
	Symbol     string    `json:"symbol"`
	SignalType string    `json:"signal_type"`
	Price      float64   `json:"price"`
	Score      int       `json:"score"`
	Reasons    []string  `json:"reasons"`
	Indicators []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// TickerStat is a 24h rolling ticker entry.
type TickerStat struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"lastPrice"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	Volume             float64 `json:"volume"`
	QuoteVolume        float64 `json:"quoteVolume"`
}

// User is a bot subscriber.
type User struct {
	TelegramID        int64      `json:"telegram_id"`
	Username          string     `json:"username,omitempty"`
	FirstName         string     `json:"first_name,omitempty"`
	LastName          string     `json:"last_name,omitempty"`
	IsActive          bool       `json:"is_active"`
	SubscriptionStart *time.Time `json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time `json:"subscription_end,omitempty"`
	DailyAIUsage      int        `json:"daily_ai_usage"`
	LastUsageReset    time.Time  `json:"last_usage_reset"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// HasActiveSubscription reports whether the user is active and not expired at now.
func (u *User) HasActiveSubscription(now time.Time) bool {
	if u == nil || !u.IsActive || u.SubscriptionEnd == nil {
		return false
	}
	return u.SubscriptionEnd.After(now)
}

// DaysLeft returns whole days until the subscription ends, never negative.
func (u *User) DaysLeft(now time.Time) int {
	if u == nil || u.SubscriptionEnd == nil || !u.SubscriptionEnd.After(now) {
		return 0
	}
	return int(u.SubscriptionEnd.Sub(now).Hours() / 24)
}

// Payment request statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusApproved = "approved"
	PaymentStatusRejected = "rejected"
)

// PaymentRequest is a screenshot submitted by a user waiting for admin review.
type PaymentRequest struct {
	ID            int64     `json:"id"`
	TelegramID    int64     `json:"telegram_id"`
	Username      string    `json:"username,omitempty"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	ScreenshotURL string    `json:"screenshot_url"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AnomalyDetection describes unusual price or volume action on the latest candle.
type AnomalyDetection struct {
	IsAnomaly        bool     `json:"is_anomaly"`
	AnomalyScore     float64  `json:"score"`
	AnomalyType      string   `json:"type,omitempty"`
	Details          string   `json:"details,omitempty"`
	RecommendedFlags []string `json:"flags,omitempty"`
}

// MarketRegime classifies the recent market state.
type MarketRegime struct {
	Type             string  `json:"type"` // TRENDING, RANGING, CHOPPY, VOLATILE, UNKNOWN
	Strength         float64 `json:"strength"`
	Direction        string  `json:"direction"`
	VolatilityLevel  string  `json:"volatility"`
	MomentumStrength float64 `json:"momentum"`
	PriceStructure   string  `json:"structure"`
}
