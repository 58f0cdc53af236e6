package calculate

import (
	"math"
)

type bollingerResult struct {
	upper, middle, lower float64
	// pb is where the last close sits inside the band; unset on a zero-width band
	pb   float64
	pbOK bool
}

// calculateBollingerBands uses the population standard deviation of the last period closes.
func calculateBollingerBands(closes []float64, period int, stdDev float64) (bollingerResult, bool) {
	if period <= 0 || len(closes) < period {
		return bollingerResult{}, false
	}

	window := closes[len(closes)-period:]
	middle := calculateAverage(window)

	var variance float64
	for _, c := range window {
		variance += math.Pow(c-middle, 2)
	}
	sd := math.Sqrt(variance / float64(period))

	res := bollingerResult{
		upper:  middle + (sd * stdDev),
		middle: middle,
		lower:  middle - (sd * stdDev),
	}

	if width := res.upper - res.lower; width != 0 {
		res.pb = (closes[len(closes)-1] - res.lower) / width
		res.pbOK = true
	}

	return res, true
}
