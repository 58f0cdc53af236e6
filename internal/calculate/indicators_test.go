package calculate

import (
	"encoding/json"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/markcheno/go-talib"

	"github.com/Alias1177/CryptoPredictor/models"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func generateTestCandles(n int, generator func(int) models.Candle) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		c := generator(i)
		c.OpenTime = int64(i) * 3600_000
		c.CloseTime = c.OpenTime + 3600_000 - 1
		candles[i] = c
	}
	return candles
}

// randomWalk is a seeded walk so every run sees the same series.
func randomWalk(n int) []models.Candle {
	rng := rand.New(rand.NewSource(42))
	price := 100.0
	return generateTestCandles(n, func(i int) models.Candle {
		open := price
		price += rng.NormFloat64() * 1.5
		if price < 1 {
			price = 1
		}
		return models.Candle{
			Open:   open,
			High:   math.Max(open, price) + rng.Float64(),
			Low:    math.Min(open, price) - rng.Float64(),
			Close:  price,
			Volume: 1000 + rng.Float64()*500,
		}
	})
}

func linear(n int, start, step float64) []models.Candle {
	return generateTestCandles(n, func(i int) models.Candle {
		c := start + float64(i)*step
		return models.Candle{Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 100}
	})
}

func flat(n int, price float64) []models.Candle {
	return generateTestCandles(n, func(i int) models.Candle {
		return models.Candle{Open: price, High: price, Low: price, Close: price, Volume: 10}
	})
}

func TestComputeIndicatorsMatchesTalib(t *testing.T) {
	candles := randomWalk(300)
	closes := Closes(candles)
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}
	n := len(candles) - 1

	snap := ComputeIndicators(candles)

	upper, middle, lower := talib.BBands(closes, BBPeriod, BBStdDev, BBStdDev, talib.SMA)

	tests := []struct {
		name string
		got  *float64
		want float64
	}{
		{"sma20", snap.SMA, talib.Sma(closes, SMAPeriod)[n]},
		{"ema20", snap.EMA20, talib.Ema(closes, 20)[n]},
		{"ema50", snap.EMA50, talib.Ema(closes, 50)[n]},
		{"ema200", snap.EMA200, talib.Ema(closes, 200)[n]},
		{"rsi", snap.RSI, talib.Rsi(closes, RSIPeriod)[n]},
		{"atr", snap.ATR, talib.Atr(highs, lows, closes, ATRPeriod)[n]},
		{"roc", snap.ROC, talib.Roc(closes, ROCPeriod)[n]},
		{"momentum", snap.Momentum, talib.Mom(closes, MomentumPeriod)[n]},
		{"bollinger upper", &snap.Bollinger.Upper, upper[n]},
		{"bollinger middle", &snap.Bollinger.Middle, middle[n]},
		{"bollinger lower", &snap.Bollinger.Lower, lower[n]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == nil {
				t.Fatalf("%s is absent", tt.name)
			}
			if !almostEqual(*tt.got, tt.want) {
				t.Errorf("%s = %v, want %v", tt.name, *tt.got, tt.want)
			}
		})
	}
}

// ADX, the DI lines and the MACD signal seed differently from TA-Lib, so they
// are compared after the seeding difference has decayed over the window.
func TestDirectionalAndSignalLinesMatchTalib(t *testing.T) {
	candles := randomWalk(300)
	closes := Closes(candles)
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}
	n := len(candles) - 1

	snap := ComputeIndicators(candles)
	if snap.ADX == nil || snap.MACD == nil || snap.MACD.SignalLine == nil || snap.Stochastic == nil || snap.Stochastic.D == nil {
		t.Fatalf("snapshot is missing indicators: %+v", snap)
	}

	macd, signal, hist := talib.Macd(closes, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod)
	fastK, fastD := talib.StochF(highs, lows, closes, StochKPeriod, StochDPeriod, talib.SMA)

	tests := []struct {
		name      string
		got, want float64
		tol       float64
	}{
		{"adx", snap.ADX.ADX, talib.Adx(highs, lows, closes, ADXPeriod)[n], 1e-6},
		{"pdi", snap.ADX.PDI, talib.PlusDI(highs, lows, closes, ADXPeriod)[n], 1e-6},
		{"mdi", snap.ADX.MDI, talib.MinusDI(highs, lows, closes, ADXPeriod)[n], 1e-6},
		{"macd line", snap.MACD.MACDLine, macd[n], tolerance},
		{"macd signal", *snap.MACD.SignalLine, signal[n], tolerance},
		{"macd histogram", *snap.MACD.Histogram, hist[n], tolerance},
		{"stochastic k", snap.Stochastic.K, fastK[n], tolerance},
		{"stochastic d", *snap.Stochastic.D, fastD[n], tolerance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > tt.tol*math.Max(1, math.Abs(tt.want)) {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestEMASeries(t *testing.T) {
	got := emaSeries([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{2, 3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("emaSeries() = %v, want %v", got, want)
	}
	if emaSeries([]float64{1, 2}, 3) != nil {
		t.Error("emaSeries() with short input should be nil")
	}
}

func TestRSIWorkedExample(t *testing.T) {
	// Seven +2 moves and seven -1 moves: avgGain 1, avgLoss 0.5, RS 2
	closes := []float64{100}
	for i := 0; i < 7; i++ {
		closes = append(closes, closes[len(closes)-1]+2)
		closes = append(closes, closes[len(closes)-1]-1)
	}
	rsi := rsiSeries(closes, RSIPeriod)
	if len(rsi) != 1 {
		t.Fatalf("len(rsi) = %d, want 1", len(rsi))
	}
	if !almostEqual(rsi[0], 200.0/3) {
		t.Errorf("rsi = %v, want %v", rsi[0], 200.0/3)
	}

	// An unchanged close decays both averages equally, so RS stays 2
	closes = append(closes, closes[len(closes)-1])
	rsi = rsiSeries(closes, RSIPeriod)
	if !almostEqual(rsi[1], 200.0/3) {
		t.Errorf("rsi after flat bar = %v, want %v", rsi[1], 200.0/3)
	}
}

func TestRSIExtremes(t *testing.T) {
	tests := []struct {
		name    string
		candles []models.Candle
		want    float64
	}{
		{"monotonic increase", linear(30, 100, 1), 100},
		{"monotonic decrease", linear(30, 200, -1), 0},
		{"flat", flat(30, 50), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := ComputeIndicators(tt.candles)
			if snap.RSI == nil || *snap.RSI != tt.want {
				t.Errorf("RSI = %v, want %v", snap.RSI, tt.want)
			}
		})
	}
}

func TestMACDSeries(t *testing.T) {
	candles := randomWalk(60)
	closes := Closes(candles)
	res := calculateMACD(closes, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod)

	if len(res.line) != len(closes)-MACDSlowPeriod+1 {
		t.Fatalf("len(line) = %d, want %d", len(res.line), len(closes)-MACDSlowPeriod+1)
	}
	if len(res.signal) != len(res.line)-MACDSignalPeriod+1 {
		t.Fatalf("len(signal) = %d, want %d", len(res.signal), len(res.line)-MACDSignalPeriod+1)
	}

	fast := emaSeries(closes, MACDFastPeriod)
	slow := emaSeries(closes, MACDSlowPeriod)
	wantLine := fast[len(fast)-1] - slow[len(slow)-1]
	if !almostEqual(res.line[len(res.line)-1], wantLine) {
		t.Errorf("macd line = %v, want %v", res.line[len(res.line)-1], wantLine)
	}

	for i, h := range res.histogram {
		line := res.line[i+MACDSignalPeriod-1]
		if !almostEqual(h, line-res.signal[i]) {
			t.Fatalf("histogram[%d] = %v, want %v", i, h, line-res.signal[i])
		}
	}
}

func TestFlatSeries(t *testing.T) {
	snap := ComputeIndicators(flat(60, 50))

	if snap.MACD == nil || snap.MACD.MACDLine != 0 || snap.MACD.SignalLine == nil || *snap.MACD.SignalLine != 0 {
		t.Errorf("MACD = %+v, want zero line and signal", snap.MACD)
	}
	if snap.Bollinger == nil || snap.Bollinger.Upper != 50 || snap.Bollinger.Lower != 50 {
		t.Errorf("Bollinger = %+v, want collapsed bands at 50", snap.Bollinger)
	}
	if snap.Bollinger.PB != nil {
		t.Errorf("Bollinger.PB = %v, want nil on zero width", *snap.Bollinger.PB)
	}
	if snap.Stochastic == nil || snap.Stochastic.K != 0 || snap.Stochastic.D == nil || *snap.Stochastic.D != 0 {
		t.Errorf("Stochastic = %+v, want K and D 0", snap.Stochastic)
	}
	if snap.ADX == nil || snap.ADX.ADX != 0 || snap.ADX.PDI != 0 || snap.ADX.MDI != 0 {
		t.Errorf("ADX = %+v, want zeros", snap.ADX)
	}
	if snap.ATR == nil || *snap.ATR != 0 {
		t.Errorf("ATR = %v, want 0", snap.ATR)
	}
	if snap.ROC == nil || *snap.ROC != 0 {
		t.Errorf("ROC = %v, want 0", snap.ROC)
	}
	if snap.VWAP == nil || *snap.VWAP != 50 {
		t.Errorf("VWAP = %v, want 50", snap.VWAP)
	}
}

func TestWindowThresholds(t *testing.T) {
	type presence struct {
		rsi, macd, macdSignal, ema20, ema50, ema200, sma, bollinger, adx, atr, roc, momentum, stochK, stochD bool
	}

	tests := []struct {
		n    int
		want presence
	}{
		{1, presence{}},
		{11, presence{momentum: true}},
		{13, presence{momentum: true, roc: true}},
		{14, presence{momentum: true, roc: true, stochK: true}},
		{15, presence{rsi: true, atr: true, momentum: true, roc: true, stochK: true}},
		{16, presence{rsi: true, atr: true, momentum: true, roc: true, stochK: true, stochD: true}},
		{20, presence{rsi: true, atr: true, momentum: true, roc: true, stochK: true, stochD: true, ema20: true, sma: true, bollinger: true}},
		{26, presence{rsi: true, atr: true, momentum: true, roc: true, stochK: true, stochD: true, ema20: true, sma: true, bollinger: true, macd: true}},
		{27, presence{rsi: true, atr: true, momentum: true, roc: true, stochK: true, stochD: true, ema20: true, sma: true, bollinger: true, macd: true}},
		{28, presence{rsi: true, atr: true, momentum: true, roc: true, stochK: true, stochD: true, ema20: true, sma: true, bollinger: true, macd: true, adx: true}},
		{34, presence{rsi: true, atr: true, momentum: true, roc: true, stochK: true, stochD: true, ema20: true, sma: true, bollinger: true, macd: true, adx: true, macdSignal: true}},
		{50, presence{rsi: true, atr: true, momentum: true, roc: true, stochK: true, stochD: true, ema20: true, sma: true, bollinger: true, macd: true, adx: true, macdSignal: true, ema50: true}},
		{199, presence{rsi: true, atr: true, momentum: true, roc: true, stochK: true, stochD: true, ema20: true, sma: true, bollinger: true, macd: true, adx: true, macdSignal: true, ema50: true}},
		{200, presence{rsi: true, atr: true, momentum: true, roc: true, stochK: true, stochD: true, ema20: true, sma: true, bollinger: true, macd: true, adx: true, macdSignal: true, ema50: true, ema200: true}},
	}

	for _, tt := range tests {
		snap := ComputeIndicators(randomWalk(tt.n))
		got := presence{
			rsi:        snap.RSI != nil,
			macd:       snap.MACD != nil,
			macdSignal: snap.MACD != nil && snap.MACD.SignalLine != nil && snap.MACD.Histogram != nil,
			ema20:      snap.EMA20 != nil,
			ema50:      snap.EMA50 != nil,
			ema200:     snap.EMA200 != nil,
			sma:        snap.SMA != nil,
			bollinger:  snap.Bollinger != nil,
			adx:        snap.ADX != nil,
			atr:        snap.ATR != nil,
			roc:        snap.ROC != nil,
			momentum:   snap.Momentum != nil,
			stochK:     snap.Stochastic != nil,
			stochD:     snap.Stochastic != nil && snap.Stochastic.D != nil,
		}
		if got != tt.want {
			t.Errorf("n=%d presence = %+v, want %+v", tt.n, got, tt.want)
		}
		if snap.CurrentPrice == nil || snap.Volume == nil || snap.VWAP == nil {
			t.Errorf("n=%d price, volume and vwap should always be present", tt.n)
		}
	}
}

func TestEmptyInput(t *testing.T) {
	snap := ComputeIndicators(nil)
	if !reflect.DeepEqual(snap, models.IndicatorSnapshot{}) {
		t.Errorf("ComputeIndicators(nil) = %+v, want empty snapshot", snap)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}" {
		t.Errorf("json = %s, want {}", data)
	}
}

func TestDeterministic(t *testing.T) {
	candles := randomWalk(250)
	a := ComputeIndicators(candles)
	b := ComputeIndicators(candles)
	if !reflect.DeepEqual(a, b) {
		t.Error("ComputeIndicators is not deterministic")
	}
}

func TestZeroGuards(t *testing.T) {
	t.Run("zero volume vwap", func(t *testing.T) {
		candles := generateTestCandles(5, func(i int) models.Candle {
			return models.Candle{Open: 1, High: 2, Low: 1, Close: 1.5}
		})
		if snap := ComputeIndicators(candles); snap.VWAP != nil {
			t.Errorf("VWAP = %v, want nil", *snap.VWAP)
		}
	})

	t.Run("zero base roc", func(t *testing.T) {
		closes := make([]float64, ROCPeriod+1)
		closes[len(closes)-1] = 5
		if _, ok := calculateROC(closes, ROCPeriod); ok {
			t.Error("calculateROC() with zero base should be absent")
		}
	})
}

func TestStochastic(t *testing.T) {
	// Rising closes at the top of their range give K = 100 once the window fills
	candles := generateTestCandles(16, func(i int) models.Candle {
		c := 10 + float64(i)
		return models.Candle{High: c, Low: c - 2, Close: c}
	})
	k, d := stochasticSeries(candles, StochKPeriod, StochDPeriod)
	if len(k) != 3 || len(d) != 1 {
		t.Fatalf("len(k)=%d len(d)=%d, want 3 and 1", len(k), len(d))
	}
	for i, v := range k {
		if v != 100 {
			t.Errorf("k[%d] = %v, want 100", i, v)
		}
	}
	if d[0] != 100 {
		t.Errorf("d = %v, want 100", d[0])
	}
}

func TestVWAPCumulative(t *testing.T) {
	candles := []models.Candle{
		{High: 12, Low: 6, Close: 9, Volume: 1},  // typical 9
		{High: 21, Low: 15, Close: 18, Volume: 2}, // typical 18
	}
	got, ok := calculateVWAP(candles)
	if !ok || !almostEqual(got, 15) {
		t.Errorf("calculateVWAP() = %v, %v, want 15, true", got, ok)
	}
}
