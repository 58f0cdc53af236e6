package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Alias1177/CryptoPredictor/models"
)

// ErrAlreadyProcessed is returned when approving or rejecting a request that is not pending.
var ErrAlreadyProcessed = errors.New("payment request already processed")

const paymentColumns = `id, telegram_id, username, first_name, last_name, screenshot_url, status, reason, created_at`

func scanPayment(row rowScanner) (*models.PaymentRequest, error) {
	var p models.PaymentRequest
	var reason sql.NullString
	if err := row.Scan(
		&p.ID, &p.TelegramID, &p.Username, &p.FirstName, &p.LastName,
		&p.ScreenshotURL, &p.Status, &reason, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if reason.Valid {
		p.Reason = reason.String
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// CreatePaymentRequest stores a pending request and returns it with its id.
func (db *DB) CreatePaymentRequest(ctx context.Context, p models.PaymentRequest, now time.Time) (*models.PaymentRequest, error) {
	p.Status = models.PaymentStatusPending
	p.CreatedAt = dbTime(now)

	err := db.QueryRowContext(ctx, `
		INSERT INTO payment_requests (
			telegram_id, username, first_name, last_name, screenshot_url, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.TelegramID, p.Username, p.FirstName, p.LastName, p.ScreenshotURL, p.Status, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("create payment request for %d: %w", p.TelegramID, err)
	}
	return &p, nil
}

// GetPaymentRequest loads a request by id.
func (db *DB) GetPaymentRequest(ctx context.Context, id int64) (*models.PaymentRequest, error) {
	p, err := scanPayment(db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get payment request %d: %w", id, err)
	}
	return p, nil
}

// ListPendingPayments returns pending requests, oldest first.
func (db *DB) ListPendingPayments(ctx context.Context) ([]models.PaymentRequest, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_requests WHERE status = $1 ORDER BY created_at, id`,
		models.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	var out []models.PaymentRequest
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment request: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// HasPendingPayment reports whether the user already has a request awaiting review.
func (db *DB) HasPendingPayment(ctx context.Context, telegramID int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_requests WHERE telegram_id = $1 AND status = $2`,
		telegramID, models.PaymentStatusPending).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count pending payments for %d: %w", telegramID, err)
	}
	return n > 0, nil
}

// PendingPaymentFor returns the user's oldest pending request or ErrNotFound.
func (db *DB) PendingPaymentFor(ctx context.Context, telegramID int64) (*models.PaymentRequest, error) {
	p, err := scanPayment(db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_requests
		WHERE telegram_id = $1 AND status = $2
		ORDER BY created_at, id
		LIMIT 1`, telegramID, models.PaymentStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get pending payment for %d: %w", telegramID, err)
	}
	return p, nil
}

// ApprovePayment marks a pending request approved and activates or extends the
// user's subscription by days, atomically.
func (db *DB) ApprovePayment(ctx context.Context, id int64, days int, now time.Time) (*models.PaymentRequest, *models.User, error) {
	var (
		req  *models.PaymentRequest
		user *models.User
	)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		req, err = claimPending(ctx, tx, id, models.PaymentStatusApproved, "")
		if err != nil {
			return err
		}

		user, err = extendSubscription(ctx, tx, models.User{
			TelegramID: req.TelegramID,
			Username:   req.Username,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
		}, days, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return req, user, nil
}

// RejectPayment marks a pending request rejected with an optional reason.
func (db *DB) RejectPayment(ctx context.Context, id int64, reason string) (*models.PaymentRequest, error) {
	var req *models.PaymentRequest
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		req, err = claimPending(ctx, tx, id, models.PaymentStatusRejected, reason)
		return err
	})
	return req, err
}

func claimPending(ctx context.Context, tx *sql.Tx, id int64, status, reason string) (*models.PaymentRequest, error) {
	p, err := scanPayment(tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load payment request %d: %w", id, err)
	}
	if p.Status != models.PaymentStatusPending {
		return nil, ErrAlreadyProcessed
	}

	var nullReason sql.NullString
	if reason != "" {
		nullReason = sql.NullString{String: reason, Valid: true}
	}

	// Guarded on status: only one concurrent reviewer wins
	res, err := tx.ExecContext(ctx,
		`UPDATE payment_requests SET status = $1, reason = $2 WHERE id = $3 AND status = $4`,
		status, nullReason, id, models.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("update payment request %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrAlreadyProcessed
	}

	p.Status = status
	p.Reason = reason
	return p, nil
}
