package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/bootstrap"
	"github.com/Alias1177/CryptoPredictor/internal/config"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
	"github.com/Alias1177/CryptoPredictor/internal/signals"
)

func main() {
	once := flag.Bool("once", false, "run a single batch and exit")
	flag.Parse()

	ctx, cancel := bootstrap.SignalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	bootstrap.SetupLogging(cfg.LogLevel)

	db, err := bootstrap.OpenStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	analyzer, closeCache := bootstrap.NewAnalyzer(ctx, cfg)
	defer closeCache()

	job := signals.NewJob(bootstrap.NewBinance(cfg), analyzer, db, signals.Options{
		Interval:   cfg.Interval,
		KlineLimit: cfg.KlineLimit,
		TopSymbols: cfg.TopSymbols,
		QuoteAsset: cfg.QuoteAsset,
		Workers:    cfg.SignalWorkers,
	})

	if *once {
		res, err := job.Run(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Signal batch failed")
		}
		log.Info().Str("batch_id", res.BatchID).Int("signals", len(res.Signals)).Int("failed", res.Failed).Msg("Done")
		return
	}

	metricsSrv := metrics.Serve(cfg.MetricsAddr)

	log.Info().
		Dur("every", cfg.SignalInterval).
		Int("top", cfg.TopSymbols).
		Str("interval", cfg.Interval).
		Msg("Starting signal scheduler")
	job.Schedule(ctx, cfg.SignalInterval, cfg.SignalRunOnStart)

	shutdownCtx, done := bootstrap.ShutdownContext()
	defer done()
	metrics.Shutdown(shutdownCtx, metricsSrv)
}
