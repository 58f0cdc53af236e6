package calculate

import (
	"math"

	"github.com/Alias1177/CryptoPredictor/models"
)

// trueRanges starts at the second candle; the first has no previous close.
func trueRanges(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}

	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)

		out = append(out, math.Max(highLow, math.Max(highPrevClose, lowPrevClose)))
	}

	return out
}

// atrSeries is the Wilder average of the true range. Needs period+1 candles.
func atrSeries(candles []models.Candle, period int) []float64 {
	return wilderSeries(trueRanges(candles), period)
}

// ATR returns the latest average true range for an arbitrary period.
func ATR(candles []models.Candle, period int) (float64, bool) {
	atr := atrSeries(candles, period)
	if len(atr) == 0 {
		return 0, false
	}
	return atr[len(atr)-1], true
}
