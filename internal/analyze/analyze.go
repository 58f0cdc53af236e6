package analyze

import (
	"github.com/Alias1177/CryptoPredictor/internal/anomaly"
	"github.com/Alias1177/CryptoPredictor/internal/calculate"
	"github.com/Alias1177/CryptoPredictor/models"
)

// Analyze computes the snapshot for candles and scores it.
func Analyze(candles []models.Candle) models.SignalVerdict {
	return ScoreSignal(calculate.ComputeIndicators(candles))
}

// MarketContext is extra colour for the AI prompt; it never affects the score.
type MarketContext struct {
	Flow       string  `json:"flow"`       // BULLISH, BEARISH, NEUTRAL, NO_VOLUME_DATA
	Volatility string  `json:"volatility"` // HIGH, NORMAL, LOW, UNKNOWN
	Expected   float64 `json:"expected_move"`

	Regime  models.MarketRegime     `json:"regime"`
	Anomaly models.AnomalyDetection `json:"anomaly"`
}

// DescribeMarket summarises order flow, volatility, regime and anomalies over the tail of candles.
func DescribeMarket(candles []models.Candle) MarketContext {
	flow, _ := analyzeOrderFlow(candles, 5)
	regime, move := assessVolatilityConditions(candles)
	return MarketContext{
		Flow:       flow,
		Volatility: regime,
		Expected:   move,
		Regime:     anomaly.ClassifyMarketRegime(candles),
		Anomaly:    anomaly.DetectMarketAnomalies(candles),
	}
}

// analyzeOrderFlow compares up-candle and down-candle volume over the last lookback candles
func analyzeOrderFlow(candles []models.Candle, lookback int) (string, float64) {
	if len(candles) < lookback || lookback <= 0 {
		return "NO_VOLUME_DATA", 0
	}
	tail := candles[len(candles)-lookback:]

	var totalVolume, volumeWeightedPrice float64
	var upVolume, downVolume float64
	for _, c := range tail {
		volumeWeightedPrice += c.Close * c.Volume
		totalVolume += c.Volume
		if c.Close > c.Open {
			upVolume += c.Volume
		} else {
			downVolume += c.Volume
		}
	}

	if totalVolume == 0 {
		return "NO_VOLUME_DATA", 0
	}
	volumeWeightedPrice /= totalVolume

	volumeRatio := upVolume / (upVolume + downVolume)

	flowDirection := "NEUTRAL"
	if volumeRatio > 0.65 {
		flowDirection = "BULLISH"
	} else if volumeRatio < 0.35 {
		flowDirection = "BEARISH"
	}

	return flowDirection, volumeWeightedPrice
}

// assessVolatilityConditions compares short and long ATR
func assessVolatilityConditions(candles []models.Candle) (string, float64) {
	atr5, ok5 := calculate.ATR(candles, 5)
	atr20, ok20 := calculate.ATR(candles, 20)
	if !ok5 || !ok20 || atr20 == 0 {
		return "UNKNOWN", atr5
	}

	volatilityRatio := atr5 / atr20

	volatilityRegime := "NORMAL"
	if volatilityRatio > 1.5 {
		volatilityRegime = "HIGH"
	} else if volatilityRatio < 0.7 {
		volatilityRegime = "LOW"
	}

	return volatilityRegime, atr5
}

// Consensus combines per-timeframe verdicts. The score is the rounded mean
// of the individual scores and maps to a signal the same way a single verdict does.
func Consensus(verdicts map[string]models.SignalVerdict) (models.Signal, int) {
	if len(verdicts) == 0 {
		return models.SignalHold, 0
	}

	total := 0
	for _, v := range verdicts {
		total += v.Score
	}

	n := len(verdicts)
	mean := total / n
	// Round half away from zero
	if rem := total % n; 2*rem >= n {
		mean++
	} else if 2*rem <= -n {
		mean--
	}

	return SignalFromScore(mean), mean
}
