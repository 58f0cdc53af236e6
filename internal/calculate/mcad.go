package calculate

// macdResult is the full MACD series. signal and histogram are aligned to the
// tail of line and are shorter by signalPeriod-1.
type macdResult struct {
	line      []float64
	signal    []float64
	histogram []float64
}

func calculateMACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) macdResult {
	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)
	if fast == nil || slow == nil {
		return macdResult{}
	}

	// Both EMAs end on the last close, so align on the tail
	offset := len(fast) - len(slow)
	line := make([]float64, len(slow))
	for i := range slow {
		line[i] = fast[i+offset] - slow[i]
	}

	res := macdResult{line: line}
	res.signal = emaSeries(line, signalPeriod)
	if res.signal == nil {
		return res
	}

	offset = len(line) - len(res.signal)
	res.histogram = make([]float64, len(res.signal))
	for i, s := range res.signal {
		res.histogram[i] = line[i+offset] - s
	}

	return res
}
