package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Alias1177/CryptoPredictor/models"
)

// ReplaceTradingSignals swaps the whole signal table for one batch in a single transaction,
// so readers never see a half-written run.
func (db *DB) ReplaceTradingSignals(ctx context.Context, signals []models.TradingSignal, now time.Time) error {
	now = dbTime(now)
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM trading_signals`); err != nil {
			return fmt.Errorf("clear trading signals: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trading_signals (
				batch_id, symbol, signal_type, price, score, reasons, indicators, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, s := range signals {
			reasons, err := json.Marshal(nonNil(s.Reasons))
			if err != nil {
				return fmt.Errorf("encode reasons for %s: %w", s.Symbol, err)
			}
			indicators := s.Indicators
			if len(indicators) == 0 {
				indicators = []byte("{}")
			}
			if _, err := stmt.ExecContext(ctx,
				s.BatchID, s.Symbol, s.SignalType, s.Price, s.Score, string(reasons), string(indicators), now,
			); err != nil {
				return fmt.Errorf("insert signal %s: %w", s.Symbol, err)
			}
		}
		return nil
	})
}

// LatestTradingSignals returns up to limit signals, newest first.
func (db *DB) LatestTradingSignals(ctx context.Context, limit int) ([]models.TradingSignal, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, batch_id, symbol, signal_type, price, score, reasons, indicators, created_at
		FROM trading_signals
		ORDER BY created_at DESC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trading signals: %w", err)
	}
	defer rows.Close()

	var out []models.TradingSignal
	for rows.Next() {
		var s models.TradingSignal
		var reasons, indicators string
		if err := rows.Scan(&s.ID, &s.BatchID, &s.Symbol, &s.SignalType, &s.Price, &s.Score,
			&reasons, &indicators, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trading signal: %w", err)
		}
		if err := json.Unmarshal([]byte(reasons), &s.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons for %s: %w", s.Symbol, err)
		}
		s.Indicators = []byte(indicators)
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
