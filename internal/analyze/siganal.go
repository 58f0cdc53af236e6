package analyze

import (
	"fmt"
	"strings"

	"github.com/Alias1177/CryptoPredictor/models"
)

// Reasons attached to a verdict, in the order rules are evaluated.
const (
	ReasonRSIOverbought        = "RSI Overbought"
	ReasonRSIOversold          = "RSI Oversold"
	ReasonMACDBullish          = "MACD Bullish"
	ReasonMACDBearish          = "MACD Bearish"
	ReasonEMAUptrend           = "EMA Uptrend"
	ReasonEMADowntrend         = "EMA Downtrend"
	ReasonBollingerLower       = "Bollinger Lower Band"
	ReasonBollingerUpper       = "Bollinger Upper Band"
	ReasonStrongTrend          = "Strong Trend"
	ReasonStochasticOverbought = "Stochastic Overbought"
	ReasonStochasticOversold   = "Stochastic Oversold"
)

// ScoreSignal reduces a snapshot to a signal. Rules whose inputs are absent
// contribute nothing.
func ScoreSignal(snap models.IndicatorSnapshot) models.SignalVerdict {
	score := 0
	reasons := []string{}

	// RSI signals
	if snap.RSI != nil {
		rsi := *snap.RSI
		if rsi > 70 {
			score -= 2
			reasons = append(reasons, ReasonRSIOverbought)
		} else if rsi < 30 {
			score += 2
			reasons = append(reasons, ReasonRSIOversold)
		} else if rsi > 50 {
			score++
		} else {
			score--
		}
	}

	// MACD signals
	if snap.MACD != nil && snap.MACD.SignalLine != nil {
		if snap.MACD.MACDLine > *snap.MACD.SignalLine {
			score += 2
			reasons = append(reasons, ReasonMACDBullish)
		} else if snap.MACD.MACDLine < *snap.MACD.SignalLine {
			score -= 2
			reasons = append(reasons, ReasonMACDBearish)
		}
	}

	// EMA signal
	if snap.CurrentPrice != nil && snap.EMA20 != nil && snap.EMA50 != nil {
		price, ema20, ema50 := *snap.CurrentPrice, *snap.EMA20, *snap.EMA50
		if price > ema20 && ema20 > ema50 {
			score += 2
			reasons = append(reasons, ReasonEMAUptrend)
		} else if price < ema20 && ema20 < ema50 {
			score -= 2
			reasons = append(reasons, ReasonEMADowntrend)
		}
	}

	// Bollinger Bands signals
	if snap.CurrentPrice != nil && snap.Bollinger != nil {
		price := *snap.CurrentPrice
		if price < snap.Bollinger.Lower {
			score++
			reasons = append(reasons, ReasonBollingerLower)
		} else if price > snap.Bollinger.Upper {
			score--
			reasons = append(reasons, ReasonBollingerUpper)
		}
	}

	// ADX is informational only
	if snap.ADX != nil && snap.ADX.ADX > 25 {
		reasons = append(reasons, ReasonStrongTrend)
	}

	// Stochastic signals
	if snap.Stochastic != nil {
		if snap.Stochastic.K > 80 {
			score--
			reasons = append(reasons, ReasonStochasticOverbought)
		} else if snap.Stochastic.K < 20 {
			score++
			reasons = append(reasons, ReasonStochasticOversold)
		}
	}

	return models.SignalVerdict{
		Signal:     SignalFromScore(score),
		Score:      score,
		Reasons:    reasons,
		Indicators: snap,
	}
}

// SignalFromScore maps an accumulated score to a signal, first match wins.
func SignalFromScore(score int) models.Signal {
	switch {
	case score >= 5:
		return models.SignalStrongBuy
	case score >= 2:
		return models.SignalBuy
	case score <= -5:
		return models.SignalStrongSell
	case score <= -2:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}

// Summary renders a verdict as a single line for chat replies and logs.
func Summary(symbol string, v models.SignalVerdict) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s (score %+d)", symbol, v.Signal, v.Score)
	if v.Indicators.CurrentPrice != nil {
		fmt.Fprintf(&sb, " @ %s", FormatPrice(*v.Indicators.CurrentPrice))
	}
	if len(v.Reasons) > 0 {
		sb.WriteString(" | ")
		sb.WriteString(strings.Join(v.Reasons, ", "))
	}
	return sb.String()
}

// FormatPrice picks a precision that keeps sub-cent coins readable.
func FormatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.8f", p)
	}
}
