package anomaly

import (
	"fmt"
	"math"

	"github.com/Alias1177/CryptoPredictor/internal/calculate"
	"github.com/Alias1177/CryptoPredictor/models"
)

// MinCandles is the shortest window either detector works on.
const MinCandles = 21

// DetectMarketAnomalies flags price spikes, volume spikes, gaps and volatility
// breakouts on the latest candle relative to the preceding ones.
func DetectMarketAnomalies(candles []models.Candle) models.AnomalyDetection {
	anomaly := models.AnomalyDetection{RecommendedFlags: []string{}}
	if len(candles) < MinCandles {
		return anomaly
	}

	current := candles[len(candles)-1]
	prevCandle := candles[len(candles)-2]

	atr10, ok := calculate.ATR(candles, 10)
	if !ok || atr10 == 0 {
		return anomaly
	}
	atrLong, ok := calculate.ATR(candles, min(50, len(candles)-1))
	volatilityRatio := 0.0
	if ok && atrLong > 0 {
		volatilityRatio = atr10 / atrLong
	}

	// 1. Price spikes
	normalizedPriceChange := math.Abs(current.Close-prevCandle.Close) / atr10
	if normalizedPriceChange > 3.0 {
		anomaly.IsAnomaly = true
		anomaly.AnomalyType = "PRICE_SPIKE"
		anomaly.AnomalyScore = math.Min(normalizedPriceChange/3.0, 1.0)
		anomaly.Details = fmt.Sprintf("Price moved %.1f times the normal range", normalizedPriceChange)
		anomaly.RecommendedFlags = append(anomaly.RecommendedFlags, "REDUCE_POSITION_SIZE", "USE_WIDER_STOPS")
	}

	// 2. Volume spikes against the previous ten candles
	if current.Volume > 0 {
		var totalVolume float64
		for i := len(candles) - 11; i < len(candles)-1; i++ {
			totalVolume += candles[i].Volume
		}

		if avgVolume := totalVolume / 10.0; avgVolume > 0 {
			volumeRatio := current.Volume / avgVolume
			if volumeRatio > 3.0 {
				if anomaly.IsAnomaly {
					anomaly.AnomalyScore = math.Min(anomaly.AnomalyScore+0.2, 1.0)
					anomaly.AnomalyType += "_WITH_VOLUME_SPIKE"
				} else {
					anomaly.IsAnomaly = true
					anomaly.AnomalyType = "VOLUME_SPIKE"
					anomaly.AnomalyScore = math.Min(volumeRatio/5.0, 1.0)
					anomaly.Details = fmt.Sprintf("Volume %.1f times the average", volumeRatio)
					anomaly.RecommendedFlags = append(anomaly.RecommendedFlags, "WAIT_FOR_CONFIRMATION")
				}
			}
		}
	}

	// 3. Gaps
	gapSize := 0.0
	if current.Low > prevCandle.Close {
		gapSize = current.Low - prevCandle.Close
	} else if current.High < prevCandle.Close {
		gapSize = prevCandle.Close - current.High
	}
	if normalizedGapSize := gapSize / atr10; normalizedGapSize > 1.0 {
		if anomaly.IsAnomaly {
			anomaly.AnomalyScore = math.Min(anomaly.AnomalyScore+0.15, 1.0)
			anomaly.AnomalyType += "_WITH_GAP"
		} else {
			anomaly.IsAnomaly = true
			anomaly.AnomalyType = "GAP"
			anomaly.AnomalyScore = math.Min(normalizedGapSize/2.0, 1.0)
			anomaly.Details = fmt.Sprintf("Price gapped %.1f times the average range", normalizedGapSize)
			anomaly.RecommendedFlags = append(anomaly.RecommendedFlags, "EXPECT_VOLATILE_TRADING")
		}
	}

	// 4. Volatility breakouts
	if volatilityRatio > 2.5 {
		if anomaly.IsAnomaly {
			anomaly.AnomalyScore = math.Min(anomaly.AnomalyScore+0.1, 1.0)
		} else {
			anomaly.IsAnomaly = true
			anomaly.AnomalyType = "VOLATILITY_BREAKOUT"
			anomaly.AnomalyScore = math.Min(volatilityRatio/4.0, 1.0)
			anomaly.Details = fmt.Sprintf("Recent volatility %.1f times the baseline", volatilityRatio)
			anomaly.RecommendedFlags = append(anomaly.RecommendedFlags, "EXPECT_MOMENTUM", "ADJUST_TRADE_SIZE")
		}
	}

	if anomaly.IsAnomaly {
		anomaly.RecommendedFlags = append(anomaly.RecommendedFlags, "USE_CAUTION", "MONITOR_CLOSELY")
	}

	return anomaly
}
