package indicators

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Alias1177/CryptoPredictor/models"
)

func testCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		c := 100 + float64(i%7) - float64(i%3)
		candles[i] = models.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     c - 0.2,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			Volume:   10,
		}
	}
	return candles
}

func TestCacheKey(t *testing.T) {
	candles := testCandles(3)
	key := CacheKey("BTCUSDT", "1h", candles)
	if want := "verdict:BTCUSDT:1h:3:120000:100:10"; key != want {
		t.Errorf("CacheKey() = %q, want %q", key, want)
	}

	// Свеча еще не закрыта: цена и объем меняются
	candles[2].Close = 100.5
	if CacheKey("BTCUSDT", "1h", candles) == key {
		t.Error("CacheKey() ignores a new close on the open candle")
	}
	ticked := CacheKey("BTCUSDT", "1h", candles)
	candles[2].Volume = 12
	if CacheKey("BTCUSDT", "1h", candles) == ticked {
		t.Error("CacheKey() ignores new volume on the open candle")
	}
	if CacheKey("BTCUSDT", "1h", nil) != "" {
		t.Error("CacheKey() of empty window should be empty")
	}
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c := NewMemoryCache(time.Minute)
	c.now = func() time.Time { return now }

	v := models.SignalVerdict{Signal: models.SignalBuy, Score: 3, Reasons: []string{}}
	if err := c.Set(ctx, "k", v); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || got.Score != 3 {
		t.Fatalf("Get() = %+v, %v, %v, want cached verdict", got, ok, err)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() returned an expired entry")
	}

	c.cleanup()
	if c.Len() != 0 {
		t.Errorf("Len() after cleanup = %d, want 0", c.Len())
	}
}

type failingCache struct{ sets int }

func (f *failingCache) Get(context.Context, string) (models.SignalVerdict, bool, error) {
	return models.SignalVerdict{}, false, errors.New("down")
}

func (f *failingCache) Set(context.Context, string, models.SignalVerdict) error {
	f.sets++
	return nil
}

func TestAnalyzerUsesCache(t *testing.T) {
	ctx := context.Background()
	candles := testCandles(60)
	cache := NewMemoryCache(time.Hour)
	a := NewAnalyzer(cache)

	first, err := a.Analyze(ctx, "ETHUSDT", "1h", candles)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("cache Len() = %d, want 1", cache.Len())
	}

	second, err := a.Analyze(ctx, "ETHUSDT", "1h", candles)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if first.Score != second.Score || first.Signal != second.Signal {
		t.Errorf("cached verdict differs: %+v vs %+v", first, second)
	}
}

func TestAnalyzerSurvivesCacheErrors(t *testing.T) {
	f := &failingCache{}
	v, err := NewAnalyzer(f).Analyze(context.Background(), "ETHUSDT", "1h", testCandles(40))
	if err == nil {
		t.Error("Analyze() should surface the cache error")
	}
	if v.Indicators.CurrentPrice == nil {
		t.Error("Analyze() should still compute a verdict")
	}
	if f.sets != 1 {
		t.Errorf("sets = %d, want 1", f.sets)
	}
}

func TestAnalyzerWithoutCache(t *testing.T) {
	v, err := NewAnalyzer(nil).Analyze(context.Background(), "X", "1h", nil)
	if err != nil || v.Signal != models.SignalHold || v.Score != 0 {
		t.Errorf("Analyze(nil candles) = %+v, %v, want HOLD/0", v, err)
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	c, err := NewRedisCache(RedisConfig{Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	key := "verdict:test:" + time.Now().Format(time.RFC3339Nano)

	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("Get() on missing key = %v, %v", ok, err)
	}

	v := models.SignalVerdict{Signal: models.SignalSell, Score: -2, Reasons: []string{"EMA Downtrend"}}
	if err := c.Set(ctx, key, v); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || got.Signal != models.SignalSell || got.Reasons[0] != "EMA Downtrend" {
		t.Errorf("Get() = %+v, %v, %v", got, ok, err)
	}
}
