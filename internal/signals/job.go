package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CryptoPredictor/internal/indicators"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
	"github.com/Alias1177/CryptoPredictor/models"
)

// ErrNoSignals is returned when every symbol of a run failed; the stored batch is left untouched.
var ErrNoSignals = errors.New("no signals produced")

// Store persists a finished batch.
type Store interface {
	ReplaceTradingSignals(ctx context.Context, signals []models.TradingSignal, now time.Time) error
}

// Options configures a Job.
type Options struct {
	Interval   string
	KlineLimit int
	TopSymbols int
	QuoteAsset string
	Workers    int
}

// Job computes a verdict for each of the top symbols and replaces the stored batch.
type Job struct {
	client   models.CandleClient
	analyzer *indicators.Analyzer
	store    Store
	opts     Options
	logger   zerolog.Logger

	now   func() time.Time
	newID func() string
}

// Result describes one finished run.
type Result struct {
	BatchID string
	Signals []models.TradingSignal
	Failed  int
}

// NewJob creates a batch job. A nil analyzer computes verdicts without caching.
func NewJob(client models.CandleClient, analyzer *indicators.Analyzer, store Store, opts Options) *Job {
	if analyzer == nil {
		analyzer = indicators.NewAnalyzer(nil)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Interval == "" {
		opts.Interval = "1h"
	}
	if opts.KlineLimit <= 0 {
		opts.KlineLimit = 500
	}
	if opts.QuoteAsset == "" {
		opts.QuoteAsset = "USDT"
	}

	return &Job{
		client:   client,
		analyzer: analyzer,
		store:    store,
		opts:     opts,
		logger:   log.With().Str("component", "signal_job").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Run executes one batch.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	defer metrics.ObserveSince(metrics.SignalJobDur, start)

	res, err := j.run(ctx)
	if err != nil {
		metrics.SignalJobRuns.WithLabelValues("error").Inc()
		return res, err
	}
	metrics.SignalJobRuns.WithLabelValues("ok").Inc()
	return res, nil
}

func (j *Job) run(ctx context.Context) (*Result, error) {
	tickers, err := j.client.GetTopSymbols(ctx, j.opts.QuoteAsset, j.opts.TopSymbols)
	if err != nil {
		return nil, fmt.Errorf("get top symbols: %w", err)
	}

	res := &Result{BatchID: j.newID()}
	j.logger.Info().
		Str("batch_id", res.BatchID).
		Int("symbols", len(tickers)).
		Str("interval", j.opts.Interval).
		Msg("Starting signal batch")

	// Slots keep the volume ranking of the tickers
	slots := make([]*models.TradingSignal, len(tickers))

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, j.opts.Workers)
	)

	for i, t := range tickers {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				res.Failed++
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			sig, err := j.signalFor(ctx, symbol, res.BatchID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				metrics.SignalJobFailures.Inc()
				j.logger.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol")
				return
			}
			slots[i] = sig
		}(i, t.Symbol)
	}
	wg.Wait()

	for _, s := range slots {
		if s != nil {
			res.Signals = append(res.Signals, *s)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if len(res.Signals) == 0 {
		return res, ErrNoSignals
	}

	if err := j.store.ReplaceTradingSignals(ctx, res.Signals, j.now()); err != nil {
		return res, fmt.Errorf("store batch %s: %w", res.BatchID, err)
	}

	j.logger.Info().
		Str("batch_id", res.BatchID).
		Int("stored", len(res.Signals)).
		Int("failed", res.Failed).
		Msg("Signal batch stored")
	return res, nil
}

func (j *Job) signalFor(ctx context.Context, symbol, batchID string) (*models.TradingSignal, error) {
	candles, err := j.client.GetKlines(ctx, symbol, j.opts.Interval, j.opts.KlineLimit)
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles for %s", symbol)
	}

	v, err := j.analyzer.Analyze(ctx, symbol, j.opts.Interval, candles)
	if err != nil {
		j.logger.Debug().Err(err).Str("symbol", symbol).Msg("Analysis cache unavailable")
	}

	snapshot, err := json.Marshal(v.Indicators)
	if err != nil {
		return nil, fmt.Errorf("encode indicators: %w", err)
	}

	price := candles[len(candles)-1].Close
	if v.Indicators.CurrentPrice != nil {
		price = *v.Indicators.CurrentPrice
	}

	return &models.TradingSignal{
		BatchID:    batchID,
		Symbol:     symbol,
		SignalType: v.Signal.Lower(),
		Price:      price,
		Score:      v.Score,
		Reasons:    v.Reasons,
		Indicators: snapshot,
	}, nil
}

// Schedule runs the job every interval until ctx is done.
func (j *Job) Schedule(ctx context.Context, every time.Duration, runOnStart bool) {
	if runOnStart {
		j.runLogged(ctx)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("Signal scheduler stopped")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *Job) runLogged(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		j.logger.Error().Err(err).Msg("Signal batch failed")
	}
}
