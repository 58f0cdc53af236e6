package calculate

import (
	"github.com/Alias1177/CryptoPredictor/models"
)

// Indicator periods used for every snapshot.
const (
	RSIPeriod        = 14
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
	SMAPeriod        = 20
	BBPeriod         = 20
	BBStdDev         = 2.0
	ADXPeriod        = 14
	ATRPeriod        = 14
	ROCPeriod        = 12
	MomentumPeriod   = 10
	StochKPeriod     = 14
	StochDPeriod     = 3
)

// MinCandles is the window length at which every indicator is present.
const MinCandles = 200

// ComputeIndicators calculates the latest value of every indicator for candles.
// Indicators whose window is longer than the input are left nil.
func ComputeIndicators(candles []models.Candle) models.IndicatorSnapshot {
	var snap models.IndicatorSnapshot
	if len(candles) == 0 {
		return snap
	}

	closes := Closes(candles)
	last := candles[len(candles)-1]

	snap.RSI = lastOf(rsiSeries(closes, RSIPeriod))

	if macd := calculateMACD(closes, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod); macd.line != nil {
		snap.MACD = &models.MACD{
			MACDLine:   macd.line[len(macd.line)-1],
			SignalLine: lastOf(macd.signal),
			Histogram:  lastOf(macd.histogram),
		}
	}

	snap.EMA20 = lastOf(emaSeries(closes, 20))
	snap.EMA50 = lastOf(emaSeries(closes, 50))
	snap.EMA200 = lastOf(emaSeries(closes, 200))
	snap.SMA = lastOf(smaSeries(closes, SMAPeriod))

	if bb, ok := calculateBollingerBands(closes, BBPeriod, BBStdDev); ok {
		snap.Bollinger = &models.BollingerBands{
			Lower:  bb.lower,
			Middle: bb.middle,
			Upper:  bb.upper,
		}
		if bb.pbOK {
			snap.Bollinger.PB = ptr(bb.pb)
		}
	}

	if adx, ok := calculateADX(candles, ADXPeriod); ok {
		snap.ADX = &models.DirectionalIndex{ADX: adx.adx, PDI: adx.pdi, MDI: adx.mdi}
	}

	snap.ATR = lastOf(atrSeries(candles, ATRPeriod))

	if roc, ok := calculateROC(closes, ROCPeriod); ok {
		snap.ROC = ptr(roc)
	}
	if mom, ok := calculateMomentum(closes, MomentumPeriod); ok {
		snap.Momentum = ptr(mom)
	}

	if k, d := stochasticSeries(candles, StochKPeriod, StochDPeriod); k != nil {
		snap.Stochastic = &models.Stochastic{K: k[len(k)-1], D: lastOf(d)}
	}

	if vwap, ok := calculateVWAP(candles); ok {
		snap.VWAP = ptr(vwap)
	}

	snap.CurrentPrice = ptr(last.Close)
	snap.Volume = ptr(last.Volume)

	return snap
}

// Closes extracts close prices in order.
func Closes(candles []models.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, candle := range candles {
		closes[i] = candle.Close
	}
	return closes
}

func lastOf(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	return ptr(series[len(series)-1])
}

func ptr(v float64) *float64 {
	return &v
}
