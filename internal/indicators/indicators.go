package indicators

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Alias1177/CryptoPredictor/internal/analyze"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
	"github.com/Alias1177/CryptoPredictor/models"
)

// Cache stores verdicts keyed by symbol, interval and last candle.
type Cache interface {
	Get(ctx context.Context, key string) (models.SignalVerdict, bool, error)
	Set(ctx context.Context, key string, v models.SignalVerdict) error
}

// CacheKey identifies a verdict by the candle window it was computed from.
// A new candle or a tick on the still-open one produces a new key.
func CacheKey(symbol, interval string, candles []models.Candle) string {
	if len(candles) == 0 {
		return ""
	}
	lastCandle := candles[len(candles)-1]
	return fmt.Sprintf("verdict:%s:%s:%d:%d:%s:%s", symbol, interval, len(candles), lastCandle.OpenTime,
		strconv.FormatFloat(lastCandle.Close, 'g', -1, 64),
		strconv.FormatFloat(lastCandle.Volume, 'g', -1, 64))
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	mu         sync.RWMutex
	verdicts   map[string]models.SignalVerdict
	lastUpdate map[string]time.Time
	ttl        time.Duration
	now        func() time.Time
}

// NewMemoryCache creates a cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		verdicts:   make(map[string]models.SignalVerdict),
		lastUpdate: make(map[string]time.Time),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (models.SignalVerdict, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.verdicts[key]
	if !ok || c.now().Sub(c.lastUpdate[key]) >= c.ttl {
		metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()
		return models.SignalVerdict{}, false, nil
	}
	metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
	return v, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, v models.SignalVerdict) error {
	c.mu.Lock()
	c.verdicts[key] = v
	c.lastUpdate[key] = c.now()
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.verdicts)
}

// cleanup drops expired entries
func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, lastUpdate := range c.lastUpdate {
		if now.Sub(lastUpdate) >= c.ttl {
			delete(c.verdicts, key)
			delete(c.lastUpdate, key)
		}
	}
}

// RunJanitor removes expired entries every ttl until ctx is done.
func (c *MemoryCache) RunJanitor(ctx context.Context) {
	if c.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// Analyzer computes verdicts through a cache.
type Analyzer struct {
	cache Cache
}

// NewAnalyzer wraps cache; a nil cache disables caching.
func NewAnalyzer(cache Cache) *Analyzer {
	return &Analyzer{cache: cache}
}

// Analyze returns the cached verdict for the window or computes and stores it.
// Cache errors are returned alongside a valid verdict so callers can log them.
func (a *Analyzer) Analyze(ctx context.Context, symbol, interval string, candles []models.Candle) (models.SignalVerdict, error) {
	key := CacheKey(symbol, interval, candles)
	if a.cache == nil || key == "" {
		return a.compute(candles), nil
	}

	v, ok, err := a.cache.Get(ctx, key)
	if err == nil && ok {
		return v, nil
	}

	v = a.compute(candles)
	if setErr := a.cache.Set(ctx, key, v); setErr != nil && err == nil {
		err = setErr
	}
	return v, err
}

func (a *Analyzer) compute(candles []models.Candle) models.SignalVerdict {
	start := time.Now()
	v := analyze.Analyze(candles)
	metrics.ObserveSince(metrics.IndicatorComputeDur, start)
	metrics.SignalsTotal.WithLabelValues(string(v.Signal)).Inc()
	return v
}
