package calculate

import "github.com/Alias1177/CryptoPredictor/models"

// calculateVWAP is cumulative over the whole window using the typical price.
func calculateVWAP(candles []models.Candle) (float64, bool) {
	var pv, volume float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		volume += c.Volume
	}

	if volume == 0 {
		return 0, false
	}

	return pv / volume, true
}
