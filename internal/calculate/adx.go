package calculate

import (
	"math"

	"github.com/Alias1177/CryptoPredictor/models"
)

type adxResult struct {
	adx, pdi, mdi float64
}

// wilderSum smooths by running sum: the first value is the plain sum of the
// first period values, then s = s - s/period + x.
func wilderSum(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	var s float64
	for _, v := range values[:period] {
		s += v
	}

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, s)
	for i := period; i < len(values); i++ {
		s = s - s/float64(period) + values[i]
		out = append(out, s)
	}

	return out
}

// calculateADX returns the latest ADX with +DI/-DI. Needs 2*period candles.
func calculateADX(candles []models.Candle, period int) (adxResult, bool) {
	if period <= 0 || len(candles) < 2*period {
		return adxResult{}, false
	}

	plusDM := make([]float64, 0, len(candles)-1)
	minusDM := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		pDM, mDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			pDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			mDM = downMove
		}
		plusDM = append(plusDM, pDM)
		minusDM = append(minusDM, mDM)
	}

	smTR := wilderSum(trueRanges(candles), period)
	smPlus := wilderSum(plusDM, period)
	smMinus := wilderSum(minusDM, period)

	dx := make([]float64, len(smTR))
	var pdi, mdi float64
	for i := range smTR {
		pdi, mdi = 0, 0
		if smTR[i] != 0 {
			pdi = 100 * smPlus[i] / smTR[i]
			mdi = 100 * smMinus[i] / smTR[i]
		}
		if sum := pdi + mdi; sum != 0 {
			dx[i] = 100 * math.Abs(pdi-mdi) / sum
		}
	}

	adx := wilderSeries(dx, period)
	if adx == nil {
		return adxResult{}, false
	}

	return adxResult{adx: adx[len(adx)-1], pdi: pdi, mdi: mdi}, true
}

// ADX returns the latest ADX, +DI and -DI for period.
func ADX(candles []models.Candle, period int) (adx, pdi, mdi float64, ok bool) {
	r, ok := calculateADX(candles, period)
	return r.adx, r.pdi, r.mdi, ok
}
