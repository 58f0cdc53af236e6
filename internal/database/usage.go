package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UsageWindow is how long a daily AI quota lasts after its last reset.
const UsageWindow = 24 * time.Hour

// ErrQuotaExceeded is returned when the user has no AI requests left in the window.
var ErrQuotaExceeded = errors.New("daily AI quota exceeded")

// AnalysisRecord is one technical analysis served to a user.
type AnalysisRecord struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	SignalType string    `json:"signal_type"`
	Score      int       `json:"score"`
	Analysis   string    `json:"analysis"`
	CreatedAt  time.Time `json:"created_at"`
}

// RemainingAIQuota reports how many AI requests the user has left at now, without consuming one.
func (db *DB) RemainingAIQuota(ctx context.Context, telegramID int64, limit int, now time.Time) (int, error) {
	var used int
	var reset time.Time
	err := db.QueryRowContext(ctx,
		`SELECT daily_openai_usage, last_usage_reset FROM users WHERE telegram_id = $1`,
		telegramID).Scan(&used, &reset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("load usage for %d: %w", telegramID, err)
	}

	if now.Sub(reset) >= UsageWindow {
		used = 0
	}
	return max(limit-used, 0), nil
}

// ConsumeAIQuota takes one AI request from the user's daily quota, resetting the
// counter first when the window has passed. It returns the requests left afterwards.
func (db *DB) ConsumeAIQuota(ctx context.Context, telegramID int64, limit int, now time.Time) (int, error) {
	now = dbTime(now)
	var remaining int

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var used int
		var reset time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT daily_openai_usage, last_usage_reset FROM users WHERE telegram_id = $1`,
			telegramID).Scan(&used, &reset)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load usage for %d: %w", telegramID, err)
		}

		if now.Sub(reset) >= UsageWindow {
			used = 0
			reset = now
		}
		if used >= limit {
			return ErrQuotaExceeded
		}

		used++
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET daily_openai_usage = $1, last_usage_reset = $2 WHERE telegram_id = $3`,
			used, dbTime(reset), telegramID); err != nil {
			return fmt.Errorf("update usage for %d: %w", telegramID, err)
		}

		remaining = limit - used
		return nil
	})

	return remaining, err
}

// SaveAnalysis appends to the technical analysis history.
func (db *DB) SaveAnalysis(ctx context.Context, rec AnalysisRecord, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO technical_analysis_history (
			telegram_id, symbol, timeframe, signal_type, score, analysis, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.TelegramID, rec.Symbol, rec.Timeframe, rec.SignalType, rec.Score, rec.Analysis, dbTime(now))
	if err != nil {
		return fmt.Errorf("save analysis for %d: %w", rec.TelegramID, err)
	}
	return nil
}

// ListAnalysisHistory returns the user's latest analyses, newest first.
func (db *DB) ListAnalysisHistory(ctx context.Context, telegramID int64, limit int) ([]AnalysisRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, telegram_id, symbol, timeframe, signal_type, score, analysis, created_at
		FROM technical_analysis_history
		WHERE telegram_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, telegramID, limit)
	if err != nil {
		return nil, fmt.Errorf("query analysis history for %d: %w", telegramID, err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		if err := rows.Scan(&rec.ID, &rec.TelegramID, &rec.Symbol, &rec.Timeframe,
			&rec.SignalType, &rec.Score, &rec.Analysis, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis history: %w", err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
