package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Alias1177/CryptoPredictor/models"
)

const userColumns = `telegram_id, username, first_name, last_name, is_active,
	subscription_start, subscription_end, daily_openai_usage, last_usage_reset,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var start, end sql.NullTime
	if err := row.Scan(
		&u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.IsActive,
		&start, &end, &u.DailyAIUsage, &u.LastUsageReset,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.SubscriptionStart = timePtr(start)
	u.SubscriptionEnd = timePtr(end)
	u.LastUsageReset = u.LastUsageReset.UTC()
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// RegisterUser inserts the user if missing and refreshes the profile names otherwise.
// Subscription state is never touched here.
func (db *DB) RegisterUser(ctx context.Context, u models.User, now time.Time) (*models.User, error) {
	now = dbTime(now)
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (
			telegram_id, username, first_name, last_name, is_active,
			daily_openai_usage, last_usage_reset, created_at, updated_at
		) VALUES ($1, $2, $3, $4, FALSE, 0, $5, $5, $5)
		ON CONFLICT (telegram_id)
		DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = EXCLUDED.updated_at
	`, u.TelegramID, u.Username, u.FirstName, u.LastName, now)
	if err != nil {
		return nil, fmt.Errorf("register user %d: %w", u.TelegramID, err)
	}

	return db.GetUser(ctx, u.TelegramID)
}

// GetUser retrieves a user by Telegram id
func (db *DB) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", telegramID, err)
	}
	return u, nil
}

// ListUsers returns users, most recently created first.
func (db *DB) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	return db.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, telegram_id DESC LIMIT $1`, limit)
}

// ListActiveUsers returns users whose subscription is active at now.
func (db *DB) ListActiveUsers(ctx context.Context, now time.Time) ([]models.User, error) {
	return db.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users
		WHERE is_active = TRUE AND subscription_end > $1
		ORDER BY telegram_id`, dbTime(now))
}

func (db *DB) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user. Returns ErrNotFound when nothing was deleted.
func (db *DB) DeleteUser(ctx context.Context, telegramID int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", telegramID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateExpired flips is_active off for every subscription that ended before now.
func (db *DB) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	now = dbTime(now)
	res, err := db.ExecContext(ctx, `
		UPDATE users
		SET is_active = FALSE, updated_at = $1
		WHERE is_active = TRUE AND subscription_end <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired: %w", err)
	}
	return res.RowsAffected()
}

// extendSubscription activates the user for days, counting from the current
// end when the subscription is still running and from now otherwise.
func extendSubscription(ctx context.Context, tx *sql.Tx, u models.User, days int, now time.Time) (*models.User, error) {
	now = dbTime(now)

	var end sql.NullTime
	err := tx.QueryRowContext(ctx,
		`SELECT subscription_end FROM users WHERE telegram_id = $1`, u.TelegramID).Scan(&end)
	exists := true
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return nil, fmt.Errorf("load subscription %d: %w", u.TelegramID, err)
	}

	start := now
	base := now
	if end.Valid && end.Time.After(now) {
		base = end.Time.UTC()
	}
	newEnd := dbTime(base.AddDate(0, 0, days))

	if exists {
		_, err = tx.ExecContext(ctx, `
			UPDATE users
			SET is_active = TRUE,
				subscription_start = COALESCE(CASE WHEN subscription_end > $1 THEN subscription_start END, $1),
				subscription_end = $2,
				updated_at = $1
			WHERE telegram_id = $3
		`, start, newEnd, u.TelegramID)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (
				telegram_id, username, first_name, last_name, is_active,
				subscription_start, subscription_end, daily_openai_usage,
				last_usage_reset, created_at, updated_at
			) VALUES ($1, $2, $3, $4, TRUE, $5, $6, 0, $5, $5, $5)
		`, u.TelegramID, u.Username, u.FirstName, u.LastName, start, newEnd)
	}
	if err != nil {
		return nil, fmt.Errorf("activate user %d: %w", u.TelegramID, err)
	}

	return scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, u.TelegramID))
}
