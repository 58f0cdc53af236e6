package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/analyze"
	"github.com/Alias1177/CryptoPredictor/internal/api/binance"
	"github.com/Alias1177/CryptoPredictor/internal/bootstrap"
	"github.com/Alias1177/CryptoPredictor/internal/config"
	"github.com/Alias1177/CryptoPredictor/internal/indicators"
	"github.com/Alias1177/CryptoPredictor/internal/signals"
	"github.com/Alias1177/CryptoPredictor/models"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "trading pair")
	interval := flag.String("interval", "", "candle interval (defaults to INTERVAL)")
	days := flag.Int("days", 0, "history to load in days; 0 uses KLINE_LIMIT candles")
	multi := flag.Bool("mtf", true, "add a multi-timeframe consensus")
	ai := flag.Bool("ai", false, "ask OpenAI for a written analysis")
	flag.Parse()

	ctx, cancel := bootstrap.SignalContext()
	defer cancel()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Configure logging
	bootstrap.SetupLogging(cfg.LogLevel)
	if *interval == "" {
		*interval = cfg.Interval
	}
	*symbol = strings.ToUpper(*symbol)
	log.Info().Str("symbol", *symbol).Str("interval", *interval).Msg("Starting crypto analyzer")

	// 3. Setup API clients
	client := bootstrap.NewBinance(cfg)
	analyzer, closeCache := bootstrap.NewAnalyzer(ctx, cfg)
	defer closeCache()

	// 4. Run live analysis
	candles, verdict, err := runLiveAnalysis(ctx, client, analyzer, cfg, *symbol, *interval, *days)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	// 5. Multi-timeframe consensus
	if *multi {
		runConsensus(ctx, client, analyzer, cfg, *symbol)
	}

	// 6. OpenAI analysis (if enabled)
	if *ai {
		if err := cfg.Validate(config.NeedOpenAI); err != nil {
			log.Fatal().Err(err).Msg("AI analysis requested")
		}
		runOpenAIAnalysis(ctx, cfg, *symbol, *interval, verdict, candles)
	}
}

// runLiveAnalysis fetches candles, scores them and prints the result
func runLiveAnalysis(ctx context.Context, client *binance.Client, analyzer *indicators.Analyzer, cfg *config.Config,
	symbol, interval string, days int) ([]models.Candle, models.SignalVerdict, error) {

	var (
		candles []models.Candle
		err     error
	)
	if days > 0 {
		candles, err = client.GetKlinesForDays(ctx, symbol, interval, days)
	} else {
		candles, err = client.GetKlines(ctx, symbol, interval, cfg.KlineLimit)
	}
	if err != nil {
		return nil, models.SignalVerdict{}, fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, models.SignalVerdict{}, fmt.Errorf("no candles for %s %s", symbol, interval)
	}

	verdict, err := analyzer.Analyze(ctx, symbol, interval, candles)
	if err != nil {
		log.Warn().Err(err).Msg("Analysis cache unavailable")
	}

	printMarketAnalysis(os.Stdout, symbol, interval, candles, verdict, analyze.DescribeMarket(candles))
	return candles, verdict, nil
}

// printMarketAnalysis outputs the indicator snapshot and the verdict
func printMarketAnalysis(w io.Writer, symbol, interval string, candles []models.Candle, v models.SignalVerdict, mc analyze.MarketContext) {
	latest := candles[len(candles)-1]
	snap := v.Indicators

	fmt.Fprintf(w, "\n===== %s %s (%d candles) =====\n", symbol, interval, len(candles))
	fmt.Fprintf(w, "Last candle: %s UTC\n", latest.Time().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Current Price: %s (O: %s, H: %s, L: %s)\n",
		analyze.FormatPrice(latest.Close), analyze.FormatPrice(latest.Open),
		analyze.FormatPrice(latest.High), analyze.FormatPrice(latest.Low))

	fmt.Fprintf(w, "\nKey Indicators:\n")
	fmt.Fprintf(w, "RSI: %s | EMA20: %s | EMA50: %s | EMA200: %s | SMA20: %s\n",
		opt(snap.RSI), opt(snap.EMA20), opt(snap.EMA50), opt(snap.EMA200), opt(snap.SMA))
	if m := snap.MACD; m != nil {
		fmt.Fprintf(w, "MACD: %.5f, Signal: %s, Hist: %s\n", m.MACDLine, opt(m.SignalLine), opt(m.Histogram))
	}
	if bb := snap.Bollinger; bb != nil {
		fmt.Fprintf(w, "Bollinger Bands: Upper: %s, Middle: %s, Lower: %s, %%B: %s\n",
			analyze.FormatPrice(bb.Upper), analyze.FormatPrice(bb.Middle), analyze.FormatPrice(bb.Lower), opt(bb.PB))
	}
	if dx := snap.ADX; dx != nil {
		fmt.Fprintf(w, "ADX: %.2f (+DI: %.2f, -DI: %.2f)\n", dx.ADX, dx.PDI, dx.MDI)
	}
	fmt.Fprintf(w, "ATR: %s | ROC: %s | Momentum: %s | VWAP: %s\n",
		opt(snap.ATR), opt(snap.ROC), opt(snap.Momentum), opt(snap.VWAP))
	if st := snap.Stochastic; st != nil {
		fmt.Fprintf(w, "Stochastic: K: %.2f, D: %s\n", st.K, opt(st.D))
	}

	fmt.Fprintf(w, "\nOrder Flow: %s | Volatility: %s | Expected Move (ATR5): %s\n",
		mc.Flow, mc.Volatility, analyze.FormatPrice(mc.Expected))
	fmt.Fprintf(w, "Regime: %s %s (strength %.2f, momentum %.2f, volatility %s, structure %s)\n",
		mc.Regime.Direction, mc.Regime.Type, mc.Regime.Strength, mc.Regime.MomentumStrength,
		mc.Regime.VolatilityLevel, mc.Regime.PriceStructure)
	if mc.Anomaly.IsAnomaly {
		fmt.Fprintf(w, "ANOMALY: %s (score %.2f) %s\n", mc.Anomaly.AnomalyType, mc.Anomaly.AnomalyScore, mc.Anomaly.Details)
		fmt.Fprintf(w, "Flags: %s\n", strings.Join(mc.Anomaly.RecommendedFlags, ", "))
	}

	fmt.Fprintln(w, "\n===== SIGNAL =====")
	fmt.Fprintln(w, analyze.Summary(symbol, v))
	for _, r := range v.Reasons {
		fmt.Fprintf(w, "- %s\n", r)
	}
	fmt.Fprintln(w)
}

// runConsensus scores the symbol on several timeframes and combines them
func runConsensus(ctx context.Context, client *binance.Client, analyzer *indicators.Analyzer, cfg *config.Config, symbol string) {
	data, err := signals.FetchMultiTimeframe(ctx, client, symbol, signals.DefaultTimeframes, cfg.KlineLimit)
	if err != nil {
		log.Warn().Err(err).Msg("Multi-timeframe data fetch failed")
		return
	}

	verdicts := make(map[string]models.SignalVerdict, len(data))
	for tf, candles := range data {
		v, err := analyzer.Analyze(ctx, symbol, tf, candles)
		if err != nil {
			log.Debug().Err(err).Str("timeframe", tf).Msg("Analysis cache unavailable")
		}
		verdicts[tf] = v
	}

	timeframes := make([]string, 0, len(verdicts))
	for tf := range verdicts {
		timeframes = append(timeframes, tf)
	}
	sort.Slice(timeframes, func(i, j int) bool {
		return models.IntervalDuration(timeframes[i]) < models.IntervalDuration(timeframes[j])
	})

	fmt.Println("===== MULTI-TIMEFRAME =====")
	for _, tf := range timeframes {
		v := verdicts[tf]
		fmt.Printf("%-4s %-12s score %+d\n", tf, v.Signal, v.Score)
	}
	signal, score := analyze.Consensus(verdicts)
	fmt.Printf("Consensus: %s (score %+d)\n\n", signal, score)
}

// runOpenAIAnalysis sends the verdict to OpenAI for a written analysis
func runOpenAIAnalysis(ctx context.Context, cfg *config.Config, symbol, interval string, v models.SignalVerdict, candles []models.Candle) {
	client := bootstrap.NewOpenAI(cfg)

	response, err := client.TechnicalSummary(ctx, symbol, interval, v, analyze.DescribeMarket(candles))
	if err != nil {
		log.Error().Err(err).Msg("OpenAI API error")
		return
	}

	fmt.Println("===== AI ANALYSIS =====")
	fmt.Println(response)
}

func opt(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return analyze.FormatPrice(*v)
}
