package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	httpClient "github.com/Alias1177/CryptoPredictor/internal/platform/http"
	"github.com/Alias1177/CryptoPredictor/internal/metrics"
	"github.com/Alias1177/CryptoPredictor/models"
)

// MaxKlineLimit is the largest page the klines endpoint returns.
const MaxKlineLimit = 1000

// Client is the Binance spot REST client
type Client struct {
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Binance client
type ClientOptions struct {
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new Binance API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetries:      options.MaxRetries,
		MaxRetryTimeout: options.MaxRetryTimeout,
	}

	baseURL := strings.TrimRight(options.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "binance_client").Logger(),
	}
}

// GetKlines fetches the latest limit klines for symbol, oldest first.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if limit <= 0 || limit > MaxKlineLimit {
		return nil, fmt.Errorf("limit %d out of range 1..%d", limit, MaxKlineLimit)
	}
	if !models.ValidInterval(interval) {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}

	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "klines", "/api/v3/klines", q)
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		c.logger.Error().Err(err).Str("symbol", symbol).Msg("Error parsing klines JSON")
		return nil, fmt.Errorf("parsing klines: %w", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("kline %d of %s: %w", i, symbol, err)
		}
		candles = append(candles, candle)
	}

	// The endpoint already returns ascending order; keep the invariant explicit
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})

	c.logger.Debug().Str("symbol", symbol).Str("interval", interval).Int("count", len(candles)).Msg("Fetched klines")
	return candles, nil
}

// GetKlinesForDays fetches enough klines to cover days, capped at one page.
func (c *Client) GetKlinesForDays(ctx context.Context, symbol, interval string, days int) ([]models.Candle, error) {
	limit := models.CandlesForDays(interval, days)
	if limit > MaxKlineLimit {
		c.logger.Warn().Int("wanted", limit).Msg("Requested history exceeds one page, truncating")
		limit = MaxKlineLimit
	}
	if limit <= 0 {
		return nil, fmt.Errorf("no klines for interval %q over %d days", interval, days)
	}
	return c.GetKlines(ctx, symbol, interval, limit)
}

type ticker24h struct {
	Symbol             string          `json:"symbol"`
	LastPrice          decimal.Decimal `json:"lastPrice"`
	PriceChange        decimal.Decimal `json:"priceChange"`
	PriceChangePercent decimal.Decimal `json:"priceChangePercent"`
	Volume             decimal.Decimal `json:"volume"`
	QuoteVolume        decimal.Decimal `json:"quoteVolume"`
}

// GetTopSymbols returns the n most traded pairs quoted in quote, by 24h quote volume.
func (c *Client) GetTopSymbols(ctx context.Context, quote string, n int) ([]models.TickerStat, error) {
	body, err := c.get(ctx, "ticker_24hr", "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}

	var tickers []ticker24h
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("parsing 24h tickers: %w", err)
	}

	return topByQuoteVolume(tickers, strings.ToUpper(quote), n), nil
}

func topByQuoteVolume(tickers []ticker24h, quote string, n int) []models.TickerStat {
	filtered := make([]ticker24h, 0, len(tickers))
	for _, t := range tickers {
		if strings.HasSuffix(t.Symbol, quote) && t.Symbol != quote {
			filtered = append(filtered, t)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].QuoteVolume.GreaterThan(filtered[j].QuoteVolume)
	})

	if n > 0 && len(filtered) > n {
		filtered = filtered[:n]
	}

	out := make([]models.TickerStat, len(filtered))
	for i, t := range filtered {
		out[i] = models.TickerStat{
			Symbol:             t.Symbol,
			LastPrice:          t.LastPrice.InexactFloat64(),
			PriceChange:        t.PriceChange.InexactFloat64(),
			PriceChangePercent: t.PriceChangePercent.InexactFloat64(),
			Volume:             t.Volume.InexactFloat64(),
			QuoteVolume:        t.QuoteVolume.InexactFloat64(),
		}
	}
	return out
}

func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.DoRequest(ctx, req)
	metrics.ObserveSince(metrics.ExchangeLatency.WithLabelValues(endpoint), start)
	if err != nil {
		metrics.ExchangeRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ExchangeRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	metrics.ExchangeRequests.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

// parseKline decodes one row of the klines array:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, takerBase, takerQuote, ignore]
func parseKline(row []json.RawMessage) (models.Candle, error) {
	if len(row) < 11 {
		return models.Candle{}, fmt.Errorf("expected at least 11 fields, got %d", len(row))
	}

	var c models.Candle
	var err error
	if c.OpenTime, err = parseInt(row[0]); err != nil {
		return c, fmt.Errorf("open time: %w", err)
	}
	if c.CloseTime, err = parseInt(row[6]); err != nil {
		return c, fmt.Errorf("close time: %w", err)
	}
	if c.NumberOfTrades, err = parseInt(row[8]); err != nil {
		return c, fmt.Errorf("trades: %w", err)
	}

	fields := []struct {
		dst  *float64
		raw  json.RawMessage
		name string
	}{
		{&c.Open, row[1], "open"},
		{&c.High, row[2], "high"},
		{&c.Low, row[3], "low"},
		{&c.Close, row[4], "close"},
		{&c.Volume, row[5], "volume"},
		{&c.QuoteAssetVolume, row[7], "quote volume"},
		{&c.TakerBuyBaseAssetVolume, row[9], "taker base volume"},
		{&c.TakerBuyQuoteAssetVolume, row[10], "taker quote volume"},
	}
	for _, f := range fields {
		var d decimal.Decimal
		if err := json.Unmarshal(f.raw, &d); err != nil {
			return c, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d.InexactFloat64()
	}

	return c, nil
}

func parseInt(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}
