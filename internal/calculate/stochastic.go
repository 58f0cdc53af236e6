package calculate

import (
	"github.com/Alias1177/CryptoPredictor/models"
)

// stochasticSeries returns %K for every full kPeriod window and %D as the
// dPeriod SMA of %K. A flat window yields K = 0.
func stochasticSeries(candles []models.Candle, kPeriod, dPeriod int) (k, d []float64) {
	if kPeriod <= 0 || len(candles) < kPeriod {
		return nil, nil
	}

	k = make([]float64, 0, len(candles)-kPeriod+1)
	for i := kPeriod - 1; i < len(candles); i++ {
		highest := candles[i-kPeriod+1].High
		lowest := candles[i-kPeriod+1].Low
		for j := i - kPeriod + 2; j <= i; j++ {
			if candles[j].High > highest {
				highest = candles[j].High
			}
			if candles[j].Low < lowest {
				lowest = candles[j].Low
			}
		}

		if highest-lowest > 0 {
			k = append(k, (candles[i].Close-lowest)/(highest-lowest)*100)
		} else {
			k = append(k, 0)
		}
	}

	return k, smaSeries(k, dPeriod)
}
