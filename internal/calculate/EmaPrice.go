package calculate

// emaSeries returns the exponential moving average of prices, seeded with the
// SMA of the first period values. The first element corresponds to prices[period-1].
func emaSeries(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	// Multiplier for weighting the EMA
	multiplier := 2.0 / float64(period+1)

	ema := calculateAverage(prices[:period])
	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, ema)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		out = append(out, ema)
	}

	return out
}

// wilderSeries is the Wilder moving average (alpha = 1/period) seeded with an SMA.
func wilderSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	avg := calculateAverage(values[:period])
	out := make([]float64, 0, len(values)-period+1)
	out = append(out, avg)
	for i := period; i < len(values); i++ {
		avg = (avg*float64(period-1) + values[i]) / float64(period)
		out = append(out, avg)
	}

	return out
}
