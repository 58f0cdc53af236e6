package models

import "context"

type CandleClient interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	GetTopSymbols(ctx context.Context, quote string, n int) ([]TickerStat, error)
}
