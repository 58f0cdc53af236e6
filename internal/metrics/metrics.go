package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	// ExchangeRequests counts Binance REST calls by endpoint and outcome.
	ExchangeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cryptopredictor_exchange_requests_total", Help: "Exchange REST requests"},
		[]string{"endpoint", "status"},
	)
	ExchangeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cryptopredictor_exchange_request_seconds",
			Help:    "Exchange REST request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	IndicatorComputeDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cryptopredictor_indicator_compute_seconds",
		Help:    "Time to compute one indicator snapshot",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cryptopredictor_signals_total", Help: "Verdicts produced by signal"},
		[]string{"signal"},
	)
	SignalJobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cryptopredictor_signal_job_runs_total", Help: "Batch signal job runs"},
		[]string{"result"},
	)
	SignalJobDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cryptopredictor_signal_job_seconds",
		Help:    "Batch signal job duration",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	SignalJobFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cryptopredictor_signal_job_symbol_failures_total",
		Help: "Symbols skipped by the batch job because of an error",
	})
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cryptopredictor_cache_lookups_total", Help: "Analysis cache lookups"},
		[]string{"backend", "result"},
	)
	AIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cryptopredictor_ai_requests_total", Help: "LLM summary requests"},
		[]string{"result"},
	)
	AIQuota = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cryptopredictor_ai_quota_total", Help: "Daily AI quota outcomes"},
		[]string{"result"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cryptopredictor_http_requests_total", Help: "Mini-app API requests"},
		[]string{"route", "code"},
	)
	BotCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cryptopredictor_bot_commands_total", Help: "Telegram commands handled"},
		[]string{"bot", "command"},
	)
)

func init() {
	prometheus.MustRegister(
		ExchangeRequests, ExchangeLatency,
		IndicatorComputeDur,
		SignalsTotal, SignalJobRuns, SignalJobDur, SignalJobFailures,
		CacheLookups,
		AIRequests, AIQuota,
		HTTPRequests,
		BotCommands,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a /metrics listener in the background. An empty addr disables it.
func Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return srv
}

// Shutdown stops a server returned by Serve; nil is a no-op.
func Shutdown(ctx context.Context, srv *http.Server) {
	if srv == nil {
		return
	}
	_ = srv.Shutdown(ctx)
}

// ObserveSince records the seconds elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
