package calculate

// calculateROC returns the percentage change against the close period bars ago.
func calculateROC(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	prev := closes[len(closes)-1-period]
	if prev == 0 {
		return 0, false
	}

	return (closes[len(closes)-1] - prev) / prev * 100, true
}

// calculateMomentum returns close[t] - close[t-period].
func calculateMomentum(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	return closes[len(closes)-1] - closes[len(closes)-1-period], true
}
