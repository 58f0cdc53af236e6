package models

import "time"

// IntervalDuration maps a kline interval ("1m", "4h", "1d", ...) to its length.
// Unknown intervals return 0.
func IntervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "6h":
		return 6 * time.Hour
	case "8h":
		return 8 * time.Hour
	case "12h":
		return 12 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "3d":
		return 3 * 24 * time.Hour
	case "1w":
		// Weekly klines are aligned to Monday but the length is what matters here
		return 7 * 24 * time.Hour
	}
	return 0
}

// ValidInterval reports whether the interval is one the exchange accepts.
func ValidInterval(interval string) bool {
	return IntervalDuration(interval) > 0
}

// CandlesForDays returns how many klines of interval cover days, plus a 10% buffer.
func CandlesForDays(interval string, days int) int {
	d := IntervalDuration(interval)
	if d == 0 || days <= 0 {
		return 0
	}
	perDay := float64(24*time.Hour) / float64(d)
	return int(perDay * float64(days) * 1.1)
}
