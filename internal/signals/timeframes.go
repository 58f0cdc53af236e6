package signals

import (
	"context"
	"fmt"
	"sync"

	"github.com/Alias1177/CryptoPredictor/models"
)

// DefaultTimeframes are used for multi-timeframe consensus.
var DefaultTimeframes = []string{"15m", "1h", "4h", "1d"}

// FetchMultiTimeframe retrieves candles for several intervals in parallel.
// Any failed interval fails the whole fetch with the first error seen.
func FetchMultiTimeframe(ctx context.Context, client models.CandleClient, symbol string, intervals []string, limit int) (map[string][]models.Candle, error) {
	result := make(map[string][]models.Candle, len(intervals))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, interval := range intervals {
		wg.Add(1)
		go func(interval string) {
			defer wg.Done()

			candles, err := client.GetKlines(ctx, symbol, interval, limit)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("fetch %s %s: %w", symbol, interval, err)
				}
				return
			}
			result[interval] = candles
		}(interval)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}
