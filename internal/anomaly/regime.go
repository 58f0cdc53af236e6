package anomaly

import (
	"math"

	"github.com/Alias1177/CryptoPredictor/internal/calculate"
	"github.com/Alias1177/CryptoPredictor/models"
)

// ClassifyMarketRegime labels the last twenty candles as trending, ranging, choppy or volatile.
func ClassifyMarketRegime(candles []models.Candle) models.MarketRegime {
	regime := models.MarketRegime{
		Type:            "UNKNOWN",
		Direction:       "NEUTRAL",
		VolatilityLevel: "NORMAL",
		PriceStructure:  "UNKNOWN",
	}
	if len(candles) < MinCandles {
		return regime
	}

	adx, plusDI, minusDI, adxOK := calculate.ADX(candles, calculate.ADXPeriod)
	atr10, ok10 := calculate.ATR(candles, 10)
	atr30, ok30 := calculate.ATR(candles, min(30, len(candles)-1))
	if !ok10 || atr10 == 0 {
		return regime
	}

	volatilityRatio := 1.0
	if ok30 && atr30 > 0 {
		volatilityRatio = atr10 / atr30
	}
	if volatilityRatio > 1.5 {
		regime.VolatilityLevel = "HIGH"
	} else if volatilityRatio < 0.7 {
		regime.VolatilityLevel = "LOW"
	}

	// Shorter horizons weigh more
	current := candles[len(candles)-1].Close
	momentumScore := 0.5*change(candles, current, 5) + 0.3*change(candles, current, 10) + 0.2*change(candles, current, 20)
	regime.MomentumStrength = math.Min(math.Abs(momentumScore)*10, 1.0)

	if momentumScore > 0 {
		regime.Direction = "BULLISH"
	} else if momentumScore < 0 {
		regime.Direction = "BEARISH"
	}

	trendStructure := "TRENDING_DOWN"
	if plusDI > minusDI {
		trendStructure = "TRENDING_UP"
	}

	if adxOK && adx > 25 {
		regime.Type = "TRENDING"
		regime.PriceStructure = trendStructure
		regime.Strength = math.Min(adx/50.0, 1.0)
		return regime
	}

	window := candles[len(candles)-20:]
	highestHigh, lowestLow := window[0].High, window[0].Low
	for _, c := range window[1:] {
		highestHigh = math.Max(highestHigh, c.High)
		lowestLow = math.Min(lowestLow, c.Low)
	}

	if (highestHigh-lowestLow)/atr10 < 5.0 {
		regime.Type = "RANGING"
		regime.PriceStructure = "RANGE_BOUND"
		regime.Strength = math.Max(math.Min((30.0-adx)/30.0, 1.0), 0)
		return regime
	}

	directionalChanges := 0
	prevDirection := window[0].Close > candles[len(candles)-21].Close
	for i := 1; i < len(window); i++ {
		currentDirection := window[i].Close > window[i-1].Close
		if currentDirection != prevDirection {
			directionalChanges++
			prevDirection = currentDirection
		}
	}

	switch {
	case directionalChanges > 8:
		regime.Type = "CHOPPY"
		regime.Strength = math.Min(float64(directionalChanges)/15.0, 1.0)
	case volatilityRatio > 1.8:
		regime.Type = "VOLATILE"
		regime.Strength = math.Min(volatilityRatio/3.0, 1.0)
		if momentumScore > 0.02 {
			regime.PriceStructure = "BREAKOUT"
		} else if momentumScore < -0.02 {
			regime.PriceStructure = "BREAKDOWN"
		}
	default:
		// Mild trend, capped below a confirmed one
		regime.Type = "TRENDING"
		regime.Strength = math.Min(adx/30.0, 0.7)
		regime.PriceStructure = trendStructure
	}

	return regime
}

// change is the relative move from the close n candles back.
func change(candles []models.Candle, current float64, n int) float64 {
	idx := max(len(candles)-1-n, 0)
	base := candles[idx].Close
	if base == 0 {
		return 0
	}
	return (current - base) / base
}
